package translate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/job"
)

type fakeEngine struct {
	name  string
	calls []string
	fn    func(text string, opts Options) (string, error)
}

func (f *fakeEngine) Name() string { return f.name }

func (f *fakeEngine) Translate(_ context.Context, text string, opts Options) (string, error) {
	f.calls = append(f.calls, text)
	return f.fn(text, opts)
}

type memCache map[string]string

func (m memCache) GetCachedTranslation(key string) (string, bool, error) {
	v, ok := m[key]
	return v, ok, nil
}

func (m memCache) PutCachedTranslation(key, _, _, _, translated string) error {
	m[key] = translated
	return nil
}

func TestServiceHandleUsesDefaultAndCache(t *testing.T) {
	eng := &fakeEngine{name: "fake", fn: func(text string, opts Options) (string, error) {
		return "[" + opts.TargetLang + "] " + text, nil
	}}
	s := NewService("fake", memCache{}, nil)
	s.Register(eng)

	resp := s.Handle(context.Background(), Request{Text: " hello ", TargetLang: "zh-CN"})
	if !resp.Success || resp.Translated != "[zh] hello" || resp.Cached {
		t.Fatalf("resp = %+v", resp)
	}
	resp = s.Handle(context.Background(), Request{Text: "hello", TargetLang: "zh"})
	if !resp.Cached || resp.Translated != "[zh] hello" {
		t.Errorf("second call not served from cache: %+v", resp)
	}
	if len(eng.calls) != 1 {
		t.Errorf("engine called %d times", len(eng.calls))
	}
}

func TestServiceHandleErrors(t *testing.T) {
	s := NewService("missing", nil, nil)
	s.Register(&fakeEngine{name: "broken", fn: func(string, Options) (string, error) {
		return "", errors.New("401 invalid key")
	}})

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{"empty text", Request{Text: "  "}, ErrEmptyText.Error()},
		{"unknown default", Request{Text: "x"}, "unknown translation engine"},
		{"engine failure", Request{Text: "x", Provider: "broken"}, "401 invalid key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := s.Handle(context.Background(), tc.req)
			if resp.Success || !strings.Contains(resp.Message, tc.want) {
				t.Errorf("resp = %+v, want message containing %q", resp, tc.want)
			}
		})
	}
}

func TestServiceFunc(t *testing.T) {
	s := NewService("fake", nil, nil)
	s.Register(&fakeEngine{name: "fake", fn: func(text string, opts Options) (string, error) {
		if opts.Model != "m1" {
			return "", fmt.Errorf("model = %q", opts.Model)
		}
		return strings.ToUpper(text), nil
	}})
	fn := s.Func("", "m1")
	out, err := fn(context.Background(), "a wolf.", "en")
	if err != nil || out != "A WOLF." {
		t.Errorf("got %q, %v", out, err)
	}
	if got := s.Engines(); len(got) != 1 || got[0] != "fake" {
		t.Errorf("engines = %v", got)
	}
}

func TestTranslateCaptionAligned(t *testing.T) {
	eng := &fakeEngine{name: "fake", fn: func(text string, _ Options) (string, error) {
		return "一只猫。/ 一只狗。/", nil
	}}
	s := NewService("fake", nil, nil)
	s.Register(eng)

	c := &models.Caption{ID: "c1", Text: "A cat. A dog."}
	if err := s.TranslateCaption(context.Background(), c, "", ""); err != nil {
		t.Fatal(err)
	}
	if c.TranslatedText != "一只猫。 / 一只狗。" || c.TargetLang != "zh" {
		t.Errorf("caption = %+v", c)
	}
	if len(eng.calls) != 1 {
		t.Errorf("calls = %q", eng.calls)
	}
}

func TestTranslateCaptionFallsBackPerSentence(t *testing.T) {
	eng := &fakeEngine{name: "fake", fn: func(text string, _ Options) (string, error) {
		switch text {
		case "A cat. A dog.":
			return "一只猫和一只狗。", nil
		case "A cat.":
			return "一只猫。/", nil
		default:
			return "一只狗。", nil
		}
	}}
	s := NewService("fake", nil, nil)
	s.Register(eng)

	c := &models.Caption{ID: "c1", Text: "A cat. A dog.", TargetLang: "zh"}
	if err := s.TranslateCaption(context.Background(), c, "", ""); err != nil {
		t.Fatal(err)
	}
	if c.TranslatedText != "一只猫。 / 一只狗。" {
		t.Errorf("translated = %q", c.TranslatedText)
	}
	if len(eng.calls) != 3 {
		t.Errorf("calls = %q", eng.calls)
	}
}

type memCaptions map[string]*models.Caption

func (m memCaptions) GetCaption(id string) (*models.Caption, error) {
	c, ok := m[id]
	if !ok {
		return nil, errors.New("not found")
	}
	cp := *c
	return &cp, nil
}

func (m memCaptions) UpdateCaption(c *models.Caption) error {
	m[c.ID] = c
	return nil
}

func TestHandleJob(t *testing.T) {
	store := memCaptions{
		"a": {ID: "a", Text: "A cat."},
		"b": {ID: "b", Text: "A dog.", TranslatedText: "旧的。"},
	}
	s := NewService("fake", nil, store)
	s.Register(&fakeEngine{name: "fake", fn: func(text string, _ Options) (string, error) {
		return "译：" + text, nil
	}})

	params, _ := json.Marshal(job.TranslateParams{CaptionIDs: []string{"a", "b", "zz"}, TargetLang: "zh"})
	j := &job.Job{ID: "j1", Params: params}
	var last float64
	if err := s.HandleJob(context.Background(), j, func(p float64) { last = p }); err != nil {
		t.Fatal(err)
	}
	if last != 1.0 {
		t.Errorf("final progress = %v", last)
	}

	var res job.TranslateResult
	json.Unmarshal(j.Result, &res)
	if res.Translated != 1 || res.Skipped != 1 || len(res.Failed) != 1 || res.Failed[0] != "zz" {
		t.Errorf("result = %+v", res)
	}
	if store["a"].TranslatedText != "译：A cat." {
		t.Errorf("caption a = %+v", store["a"])
	}
	if store["b"].TranslatedText != "旧的。" {
		t.Error("existing translation overwritten without overwrite flag")
	}
}

func TestNormalizeLangAndPrompt(t *testing.T) {
	for in, want := range map[string]string{"zh-CN": "zh", "ZH_tw": "zh", " en ": "en", "auto": "", "ja": "ja"} {
		if got := NormalizeLang(in); got != want {
			t.Errorf("NormalizeLang(%q) = %q, want %q", in, got, want)
		}
	}
	if p := GetSystemPrompt("en", "zh"); !strings.Contains(p, "/") {
		t.Error("zh prompt must ask for separators")
	}
	if p := GetSystemPrompt("zh", "en-US"); !strings.Contains(p, "English") {
		t.Errorf("en prompt = %q", p)
	}
	if p := GetSystemPrompt("en", "ja"); !strings.Contains(p, "Japanese") {
		t.Errorf("ja prompt = %q", p)
	}
	if CacheKey("p", "m", "zh-CN", " x ") != CacheKey("p", "m", "zh", "x") {
		t.Error("cache key must normalize language and whitespace")
	}
}

type mapSettings map[string]string

func (m mapSettings) GetSetting(key, defaultVal string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return defaultVal
}

func TestConfigure(t *testing.T) {
	s := NewService("", nil, nil)
	custom := []Provider{{Name: "local", BaseURL: "http://127.0.0.1:11434/v1", DefaultModel: "qwen2.5"}}
	settings := mapSettings{
		APIKeySetting("deepl"): "dk",
		SettingDefaultProvider: "tuzi",
	}

	names := s.Configure(map[string]string{"tuzi": "tk", "local": "lk"}, custom, settings, "siliconflow")
	want := []string{"deepl", "local", "tuzi"}
	if len(names) != len(want) {
		t.Fatalf("engines = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("engines = %v, want %v", names, want)
		}
	}
	if s.Default() != "tuzi" {
		t.Errorf("Default() = %q, want tuzi", s.Default())
	}

	settings[APIKeySetting("deepl")] = ""
	if names := s.Configure(nil, nil, settings, "tuzi"); len(names) != 0 {
		t.Errorf("engines after clearing keys = %v", names)
	}
}

func TestConfiguredModelFollowsSettings(t *testing.T) {
	var gotModel string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"ok"}}]}`))
	}))
	defer srv.Close()

	s := NewService("", nil, nil)
	s.SetDefaultModel("local", "env-model")
	settings := mapSettings{}
	custom := []Provider{{Name: "local", BaseURL: srv.URL, DefaultModel: "builtin"}}
	s.Configure(map[string]string{"local": "k"}, custom, settings, "local")

	translate := s.Func("", "")
	if _, err := translate(context.Background(), "one", "en"); err != nil {
		t.Fatal(err)
	}
	if gotModel != "env-model" {
		t.Errorf("model = %q, want the configured default", gotModel)
	}

	settings[ModelSetting("local")] = "picked"
	if _, err := translate(context.Background(), "two", "en"); err != nil {
		t.Fatal(err)
	}
	if gotModel != "picked" {
		t.Errorf("model = %q, want the model from settings", gotModel)
	}
}
