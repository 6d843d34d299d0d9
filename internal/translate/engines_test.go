package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenAITranslator(t *testing.T) {
	var gotModel, gotSystem, gotUser, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			http.NotFound(w, r)
			return
		}
		gotAuth = r.Header.Get("Authorization")
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		gotModel = body.Model
		if len(body.Messages) == 2 {
			gotSystem, gotUser = body.Messages[0].Content, body.Messages[1].Content
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  一只狼。/ "},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranslator("siliconflow", srv.URL+"/v1", "sk-test", "", nil)
	out, err := tr.Translate(context.Background(), "A wolf.", Options{TargetLang: "zh"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "一只狼。/" {
		t.Errorf("out = %q", out)
	}
	if gotModel != Providers["siliconflow"].DefaultModel {
		t.Errorf("model = %q", gotModel)
	}
	if gotAuth != "Bearer sk-test" || gotUser != "A wolf." || !strings.Contains(gotSystem, "/") {
		t.Errorf("auth=%q user=%q system=%q", gotAuth, gotUser, gotSystem)
	}
}

func TestOpenAITranslatorAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"invalid api key","type":"auth"}}`))
	}))
	defer srv.Close()

	tr := NewOpenAITranslator("tuzi", srv.URL, "bad", "gpt-4o-mini", nil)
	_, err := tr.Translate(context.Background(), "x", Options{TargetLang: "en"})
	if err == nil || !strings.Contains(err.Error(), "invalid api key") {
		t.Errorf("err = %v", err)
	}
	if isTransientError(err) {
		t.Error("401 must not be retried")
	}
}

func TestOpenAITranslatorModelResolver(t *testing.T) {
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

	tr := NewOpenAITranslator("custom", srv.URL, "k", "fallback", func() string { return "from-settings" })
	tr.Translate(context.Background(), "x", Options{})
	if gotModel != "from-settings" {
		t.Errorf("model = %q", gotModel)
	}
	tr.Translate(context.Background(), "x", Options{Model: "explicit"})
	if gotModel != "explicit" {
		t.Errorf("model = %q", gotModel)
	}
}

func TestDeepLTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if r.Header.Get("Authorization") != "DeepL-Auth-Key key:fx" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		if r.Form.Get("target_lang") != "ZH-HANS" || r.Form.Get("text") != "A cat." {
			t.Errorf("form = %v", r.Form)
		}
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"一只猫。"}]}`))
	}))
	defer srv.Close()

	d := NewDeepLTranslator("key:fx")
	if d.endpoint != deeplFreeURL {
		t.Errorf("free key endpoint = %q", d.endpoint)
	}
	d.endpoint = srv.URL
	out, err := d.Translate(context.Background(), "A cat.", Options{TargetLang: "zh-CN"})
	if err != nil || out != "一只猫。" {
		t.Errorf("got %q, %v", out, err)
	}

	d.apiKey = "other"
	if _, err := d.Translate(context.Background(), "A cat.", Options{TargetLang: "zh"}); err == nil {
		t.Error("expected status error")
	}
}

func TestGeminiTranslator(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/gemini-test:generateContent" || r.Header.Get("x-goog-api-key") != "g-key" {
			t.Errorf("path=%s key=%s", r.URL.Path, r.Header.Get("x-goog-api-key"))
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"A cat. "},{"text":"/ A dog."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g := NewGeminiTranslator("g-key", func() string { return "gemini-test" })
	g.baseURL = srv.URL
	out, err := g.Translate(context.Background(), "一只猫。/ 一只狗。", Options{TargetLang: "en"})
	if err != nil || out != "A cat. / A dog." {
		t.Errorf("got %q, %v", out, err)
	}

	if _, err := NewGeminiTranslator("", nil).Translate(context.Background(), "x", Options{}); err == nil {
		t.Error("expected missing key error")
	}
}

func TestGeminiModels(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.Header.Get("x-goog-api-key") != "g-key" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Write([]byte(`{"models":[
			{"name":"models/gemini-2.0-flash","displayName":"Gemini 2.0 Flash","supportedGenerationMethods":["generateContent"]},
			{"name":"models/gemini-2.5-flash","displayName":"Gemini 2.5 Flash","supportedGenerationMethods":["generateContent","countTokens"]},
			{"name":"models/gemini-embedding-001","supportedGenerationMethods":["embedContent"]},
			{"name":"models/imagen-3.0","supportedGenerationMethods":["predict"]}
		]}`))
	}))
	defer srv.Close()

	g := NewGeminiModels()
	g.baseURL = srv.URL
	models, err := g.List(context.Background(), "g-key")
	if err != nil {
		t.Fatal(err)
	}
	if len(models) != 2 || models[0].ID != "gemini-2.5-flash" || models[1].ID != "gemini-2.0-flash" {
		t.Errorf("models = %+v", models)
	}

	g.List(context.Background(), "g-key")
	if calls != 1 {
		t.Errorf("calls = %d, want the second list served from cache", calls)
	}

	if _, err := g.List(context.Background(), "other"); err == nil {
		t.Error("expected status error for a rejected key")
	}
	if models, err := g.List(context.Background(), ""); err != nil || len(models) != 0 {
		t.Errorf("no key = %v, %v", models, err)
	}
}
