package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/captionsync/backend/internal/config"
	"github.com/captionsync/backend/internal/db"
	"github.com/captionsync/backend/internal/db/models"
	"github.com/captionsync/backend/internal/i18n"
	"github.com/captionsync/backend/internal/job"
	"github.com/captionsync/backend/internal/session"
	"github.com/captionsync/backend/internal/translate"
)

// dictEngine translates from a fixed dictionary.
type dictEngine map[string]string

func (dictEngine) Name() string { return "dict" }

func (d dictEngine) Translate(_ context.Context, text string, _ translate.Options) (string, error) {
	if out, ok := d[text]; ok {
		return out, nil
	}
	return "", fmt.Errorf("cannot translate %q", text)
}

type testServer struct {
	handler         http.Handler
	database        *db.Database
	imageDir        string
	settingsChanged int
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()
	imageDir := filepath.Join(dir, "images")
	if err := os.MkdirAll(imageDir, 0755); err != nil {
		t.Fatal(err)
	}

	database, err := db.NewSQLite(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { database.Close() })

	svc := translate.NewService("dict", database, database)
	svc.Register(dictEngine{
		"A cat. A dog.": "一只猫。/ 一只狗。",
		"一只狼。":          "A wolf.",
	})

	queue := job.NewJobQueue(database.DB())
	queue.RegisterHandler(job.JobTranslateCaptions, svc.HandleJob)
	t.Cleanup(queue.Stop)

	catalog := i18n.New("en")
	sessions := session.NewManager(database, svc.Func("", ""), nil, catalog)
	sessions.ImageRoot = imageDir

	ts := &testServer{database: database, imageDir: imageDir}
	cfg := &config.Config{ImagePath: imageDir, TargetLang: "zh", CORSOrigins: []string{"*"}}
	ts.handler = NewRouter(cfg, Services{
		Database:        database,
		Translator:      svc,
		Sessions:        sessions,
		Jobs:            queue,
		Catalog:         catalog,
		SettingsChanged: func() { ts.settingsChanged++ },
	})
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	if out != nil && rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	var body map[string]string
	if code := ts.do(t, http.MethodGet, "/api/health", nil, &body); code != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", code, body)
	}
}

func TestCaptionSyncFlow(t *testing.T) {
	ts := newTestServer(t)

	var c models.Caption
	code := ts.do(t, http.MethodPost, "/api/captions", map[string]string{
		"kind": "image", "image_path": "cat.png", "text": "A cat. A dog.",
	}, &c)
	if code != http.StatusCreated || c.ID == "" || c.TargetLang != "zh" {
		t.Fatalf("create = %d %+v", code, c)
	}
	if code := ts.do(t, http.MethodPost, "/api/captions", map[string]string{
		"kind": "image", "image_path": "cat.png",
	}, nil); code != http.StatusConflict {
		t.Errorf("duplicate create = %d, want 409", code)
	}

	if code := ts.do(t, http.MethodPost, "/api/captions/"+c.ID+"/translate", nil, &c); code != http.StatusOK {
		t.Fatalf("translate = %d", code)
	}
	if c.TranslatedText != "一只猫。 / 一只狗。" {
		t.Fatalf("translated = %q", c.TranslatedText)
	}

	var bare models.Caption
	ts.do(t, http.MethodPost, "/api/captions", map[string]string{
		"kind": "image", "image_path": "bare.png", "text": "A bird.",
	}, &bare)
	if code := ts.do(t, http.MethodPost, "/api/session", map[string]string{"caption_id": bare.ID}, nil); code != http.StatusConflict {
		t.Errorf("open untranslated = %d, want 409", code)
	}

	var st session.State
	if code := ts.do(t, http.MethodGet, "/api/session", nil, nil); code != http.StatusNotFound {
		t.Errorf("session before open = %d, want 404", code)
	}
	if code := ts.do(t, http.MethodPost, "/api/session", map[string]string{"caption_id": c.ID}, &st); code != http.StatusOK {
		t.Fatalf("open = %d", code)
	}
	if len(st.Units) != 2 || !st.Aligned {
		t.Fatalf("state = %+v", st)
	}

	edit := `{"kind":"input","focus":1,"snapshot":{"regions":[{"index":0,"text":"一只猫。"},{"index":1,"text":"一只狼。"}]}}`
	var er struct {
		Report struct {
			Mode    string `json:"mode"`
			Updated []int  `json:"updated"`
		} `json:"report"`
		State session.State `json:"state"`
	}
	if code := ts.do(t, http.MethodPost, "/api/session/edit", edit, &er); code != http.StatusOK {
		t.Fatalf("edit = %d", code)
	}
	if er.Report.Mode != "localized" || len(er.State.Dirty) != 1 || er.State.Dirty[0] != 1 {
		t.Errorf("edit response = %+v", er)
	}

	var payload session.Payload
	ts.do(t, http.MethodGet, "/api/session/payload", nil, &payload)
	if len(payload.Updates) != 1 || payload.Updates[0].Index != 1 || payload.Updates[0].NewContent != "一只狼。" {
		t.Errorf("payload = %+v", payload)
	}

	var out session.Outcome
	if code := ts.do(t, http.MethodPost, "/api/session/sync", nil, &out); code != http.StatusOK {
		t.Fatalf("sync = %d %+v", code, out)
	}
	if out.Summary != "Sentences updated: 1 synced" || out.Result.SourceText != "A cat. A wolf." {
		t.Errorf("outcome = %+v", out)
	}

	ts.do(t, http.MethodGet, "/api/captions/"+c.ID, nil, &c)
	if c.Text != "A cat. A wolf." || c.TranslatedText != "一只猫。 / 一只狼。" {
		t.Errorf("stored caption = %+v", c)
	}
	if data, err := os.ReadFile(filepath.Join(ts.imageDir, "cat.txt")); err != nil || string(data) != "A cat. A wolf." {
		t.Errorf("sidecar = %q, %v", data, err)
	}

	var history []models.SyncRecord
	ts.do(t, http.MethodGet, "/api/captions/"+c.ID+"/history", nil, &history)
	if len(history) != 1 || history[0].Synced != 1 {
		t.Errorf("history = %+v", history)
	}

	edit = `{"kind":"input","focus":0,"snapshot":{"regions":[{"index":0,"text":"一只虎。"},{"index":1,"text":"一只狼。"}]}}`
	ts.do(t, http.MethodPost, "/api/session/edit", edit, nil)
	out = session.Outcome{}
	if code := ts.do(t, http.MethodPost, "/api/session/sync", nil, &out); code != http.StatusBadGateway {
		t.Errorf("failing sync = %d, want 502", code)
	}
	if out.Error == "" || len(out.State.Dirty) != 1 || out.State.Dirty[0] != 0 {
		t.Errorf("failed outcome = %+v", out)
	}

	if code := ts.do(t, http.MethodPost, "/api/session/sync/9", nil, nil); code != http.StatusNotFound {
		t.Errorf("sync out of range = %d, want 404", code)
	}
	if code := ts.do(t, http.MethodPost, "/api/session/reset", nil, &st); code != http.StatusOK || len(st.Dirty) != 0 {
		t.Errorf("reset = %d %+v", code, st.Dirty)
	}
	if code := ts.do(t, http.MethodDelete, "/api/session/units/0", nil, &st); code != http.StatusOK || st.SourceText != "A wolf." {
		t.Errorf("delete unit = %d %q", code, st.SourceText)
	}

	if code := ts.do(t, http.MethodDelete, "/api/session", nil, nil); code != http.StatusNoContent {
		t.Errorf("close = %d", code)
	}
	if code := ts.do(t, http.MethodGet, "/api/session", nil, nil); code != http.StatusNotFound {
		t.Errorf("session after close = %d", code)
	}
}

func TestImportAndFiles(t *testing.T) {
	ts := newTestServer(t)
	os.WriteFile(filepath.Join(ts.imageDir, "wolf.png"), []byte("img"), 0644)
	os.WriteFile(filepath.Join(ts.imageDir, "wolf.txt"), []byte("A wolf."), 0644)

	var res struct {
		Imported int               `json:"imported"`
		Captions []*models.Caption `json:"captions"`
	}
	if code := ts.do(t, http.MethodPost, "/api/captions/import", map[string]any{"path": ""}, &res); code != http.StatusOK {
		t.Fatalf("import = %d", code)
	}
	if res.Imported != 1 || res.Captions[0].Text != "A wolf." {
		t.Errorf("import = %+v", res)
	}
	if code := ts.do(t, http.MethodPost, "/api/captions/import", map[string]any{"path": "../.."}, nil); code != http.StatusForbidden {
		t.Errorf("traversal import = %d, want 403", code)
	}

	var tree struct {
		Entries []map[string]any `json:"entries"`
	}
	ts.do(t, http.MethodGet, "/api/files/tree", nil, &tree)
	if len(tree.Entries) != 1 || tree.Entries[0]["has_caption"] != true {
		t.Errorf("tree = %+v", tree)
	}

	var search struct {
		Results []map[string]any `json:"results"`
	}
	ts.do(t, http.MethodGet, "/api/files/search?q=wol", nil, &search)
	if len(search.Results) != 1 {
		t.Errorf("search = %+v", search)
	}
}

func TestTranslateEndpoint(t *testing.T) {
	ts := newTestServer(t)

	var resp translate.Response
	code := ts.do(t, http.MethodPost, "/api/translate", translate.Request{Text: "一只狼。", TargetLang: "en"}, &resp)
	if code != http.StatusOK || !resp.Success || resp.Translated != "A wolf." {
		t.Errorf("translate = %d %+v", code, resp)
	}
	ts.do(t, http.MethodPost, "/api/translate", translate.Request{Text: "一只狼。", TargetLang: "en"}, &resp)
	if !resp.Cached {
		t.Error("second request should be served from the cache")
	}

	resp = translate.Response{}
	code = ts.do(t, http.MethodPost, "/api/translate", translate.Request{Text: "  ", TargetLang: "en"}, &resp)
	if code != http.StatusBadRequest || resp.Success || resp.Message == "" {
		t.Errorf("empty text = %d %+v", code, resp)
	}
	code = ts.do(t, http.MethodPost, "/api/translate", translate.Request{Text: "?", TargetLang: "en"}, &resp)
	if code != http.StatusBadGateway || resp.Success {
		t.Errorf("engine failure = %d %+v", code, resp)
	}

	var providers struct {
		Default string   `json:"default"`
		Engines []string `json:"engines"`
	}
	ts.do(t, http.MethodGet, "/api/translate/providers", nil, &providers)
	if providers.Default != "dict" || len(providers.Engines) != 1 {
		t.Errorf("providers = %+v", providers)
	}

	var models []translate.GeminiModel
	if code := ts.do(t, http.MethodGet, "/api/translate/gemini/models", nil, &models); code != http.StatusOK || len(models) != 0 {
		t.Errorf("gemini models without key = %d %v", code, models)
	}
}

func TestTemplatesCRUD(t *testing.T) {
	ts := newTestServer(t)

	var created struct {
		ID int64 `json:"id"`
	}
	code := ts.do(t, http.MethodPost, "/api/templates", map[string]string{
		"name": "Detailed", "system_prompt": "Describe the image.",
	}, &created)
	if code != http.StatusCreated || created.ID == 0 {
		t.Fatalf("create = %d", code)
	}
	if code := ts.do(t, http.MethodPost, "/api/templates", map[string]string{"name": "x"}, nil); code != http.StatusBadRequest {
		t.Errorf("missing prompt = %d", code)
	}

	path := fmt.Sprintf("/api/templates/%d", created.ID)
	if code := ts.do(t, http.MethodPut, path, map[string]string{
		"name": "Edit pair", "mode": "pair", "user_prompt": "What changed?",
	}, nil); code != http.StatusOK {
		t.Errorf("update = %d", code)
	}
	if code := ts.do(t, http.MethodPut, "/api/templates/999", map[string]string{
		"name": "x", "user_prompt": "y",
	}, nil); code != http.StatusNotFound {
		t.Errorf("update missing = %d", code)
	}

	var list []models.Template
	ts.do(t, http.MethodGet, "/api/templates", nil, &list)
	if len(list) != 1 || list[0].Mode != "pair" || list[0].Name != "Edit pair" {
		t.Errorf("list = %+v", list)
	}

	if code := ts.do(t, http.MethodDelete, path, nil, nil); code != http.StatusNoContent {
		t.Errorf("delete = %d", code)
	}
}

func TestSettingsMasked(t *testing.T) {
	ts := newTestServer(t)

	code := ts.do(t, http.MethodPut, "/api/settings", map[string]string{
		translate.APIKeySetting("openai"): "sk-abcdef123456",
		"unknown_key":                     "ignored",
	}, nil)
	if code != http.StatusNoContent || ts.settingsChanged != 1 {
		t.Fatalf("update = %d, changed = %d", code, ts.settingsChanged)
	}

	var settings []struct {
		Key      string `json:"key"`
		Value    string `json:"value"`
		HasValue bool   `json:"has_value"`
	}
	ts.do(t, http.MethodGet, "/api/settings", nil, &settings)
	var found bool
	for _, s := range settings {
		if s.Key == "unknown_key" {
			t.Error("unknown key was stored")
		}
		if s.Key == translate.APIKeySetting("openai") {
			found = true
			if !s.HasValue || !strings.HasSuffix(s.Value, "3456") || strings.Contains(s.Value, "abcdef") {
				t.Errorf("masked value = %q", s.Value)
			}
			ts.do(t, http.MethodPut, "/api/settings", map[string]string{s.Key: s.Value}, nil)
		}
	}
	if !found {
		t.Fatal("openai key missing from settings")
	}
	if got := ts.database.GetSetting(translate.APIKeySetting("openai"), ""); got != "sk-abcdef123456" {
		t.Errorf("stored key = %q, masked value must not overwrite it", got)
	}
}

func TestTranslateJob(t *testing.T) {
	ts := newTestServer(t)

	var c models.Caption
	ts.do(t, http.MethodPost, "/api/captions", map[string]string{
		"kind": "image", "image_path": "cat.png", "text": "A cat. A dog.",
	}, &c)

	var j job.Job
	code := ts.do(t, http.MethodPost, "/api/jobs/translate", map[string]any{"caption_ids": []string{c.ID}}, &j)
	if code != http.StatusAccepted || j.ID == "" {
		t.Fatalf("enqueue = %d %+v", code, j)
	}
	if code := ts.do(t, http.MethodPost, "/api/jobs/translate", map[string]any{}, nil); code != http.StatusBadRequest {
		t.Errorf("empty job = %d", code)
	}

	deadline := time.Now().Add(5 * time.Second)
	for j.Status != job.StatusCompleted && time.Now().Before(deadline) {
		time.Sleep(20 * time.Millisecond)
		ts.do(t, http.MethodGet, "/api/jobs/"+j.ID, nil, &j)
	}
	if j.Status != job.StatusCompleted {
		t.Fatalf("job status = %s (%s)", j.Status, j.Error)
	}
	ts.do(t, http.MethodGet, "/api/captions/"+c.ID, nil, &c)
	if c.TranslatedText != "一只猫。 / 一只狗。" {
		t.Errorf("translated = %q", c.TranslatedText)
	}
	if code := ts.do(t, http.MethodPost, "/api/jobs/"+j.ID+"/retry", nil, nil); code != http.StatusConflict {
		t.Errorf("retry completed job = %d, want 409", code)
	}
	if code := ts.do(t, http.MethodGet, "/api/jobs/missing", nil, nil); code != http.StatusNotFound {
		t.Errorf("missing job = %d", code)
	}
}
