package api_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/folio/internal/api"
	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/infrastructure"
	"github.com/JaimeStill/folio/internal/workflow"
)

const testPrompts = `
writer: "stage:writer"
reviewer: "stage:reviewer"
manager: "stage:manager"
quality: "stage:quality"
`

var stageReplies = map[string]string{
	"stage:writer":   "The edited chapter.",
	"stage:reviewer": "Reads well.",
	"stage:manager":  "approved",
	"stage:quality":  `{"score": 9, "summary": "clean"}`,
}

// fakeProvider answers chat completions by the stage marker in the prompt.
func fakeProvider(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Messages) == 0 {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		reply, ok := stageReplies[body.Messages[0].Content]
		if !ok {
			http.Error(w, "unknown stage", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"id":      "chatcmpl-test",
			"object":  "chat.completion",
			"created": 1,
			"model":   "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func validConfig(t *testing.T, providerURL string) *config.Config {
	t.Helper()
	dir := t.TempDir()

	promptsFile := filepath.Join(dir, "prompts.yaml")
	if err := os.WriteFile(promptsFile, []byte(testPrompts), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	doc := fmt.Sprintf(`
[api]
base_path = "/api"

[generation]
base_url = %q
token = "test-key"
model = "test-model"

[stages]
max_iterations = 3
prompts_file = %q

[checkpoints]
backend = "memory"

[content]
dir = %q

[workflow]
lock_dir = %q
`, providerURL+"/v1", promptsFile, filepath.Join(dir, "content"), filepath.Join(dir, "locks"))

	path := filepath.Join(dir, config.BaseConfigFile)
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("config.LoadFile() error = %v", err)
	}
	return cfg
}

func setupInfra(t *testing.T, cfg *config.Config) *infrastructure.Infrastructure {
	t.Helper()
	infra, err := infrastructure.NewWithLogger(cfg, infrastructure.NewLogger(&cfg.Logging, &bytes.Buffer{}))
	if err != nil {
		t.Fatalf("infrastructure.New() error = %v", err)
	}
	return infra
}

func TestNewModule(t *testing.T) {
	srv := fakeProvider(t)
	cfg := validConfig(t, srv.URL)
	infra := setupInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	if m.Prefix() != "/api" {
		t.Errorf("Prefix() = %q, want /api", m.Prefix())
	}
}

func TestModuleRoutes(t *testing.T) {
	srv := fakeProvider(t)
	cfg := validConfig(t, srv.URL)
	infra := setupInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	do := func(method, path, body string) *httptest.ResponseRecorder {
		t.Helper()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		m.Serve(rec, req)
		return rec
	}

	start := `{"thread_id": "t1", "content": {"text": "A rough chapter.", "source": {"chapter_id": "ch-1"}}}`
	rec := do(http.MethodPost, "/api/threads", start)
	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /threads status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var cp workflow.Checkpoint
	if err := json.Unmarshal(rec.Body.Bytes(), &cp); err != nil {
		t.Fatalf("decode checkpoint: %v", err)
	}
	if !cp.Terminal() {
		t.Errorf("pending node = %q, want end", cp.PendingNode)
	}
	if cp.State.QualityReport == nil || cp.State.QualityReport.Score == nil || *cp.State.QualityReport.Score != 9 {
		t.Errorf("quality report = %+v, want score 9", cp.State.QualityReport)
	}

	rec = do(http.MethodGet, "/api/threads/t1", "")
	if rec.Code != http.StatusOK {
		t.Errorf("GET /threads/t1 status = %d", rec.Code)
	}

	rec = do(http.MethodGet, "/api/threads/missing", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /threads/missing status = %d, want 404", rec.Code)
	}

	rec = do(http.MethodGet, "/api/chapters/ch-1/versions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET versions status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var versions []artifacts.Artifact
	if err := json.Unmarshal(rec.Body.Bytes(), &versions); err != nil {
		t.Fatalf("decode versions: %v", err)
	}
	if len(versions) != 1 || versions[0].Metadata.Version != "v0" {
		t.Errorf("versions = %+v, want a single v0", versions)
	}

	rec = do(http.MethodGet, "/api/openapi.json", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /openapi.json status = %d", rec.Code)
	}
	var spec struct {
		Paths map[string]json.RawMessage `json:"paths"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &spec); err != nil {
		t.Fatalf("decode openapi: %v", err)
	}
	for _, path := range []string{"/threads", "/threads/{id}/resume", "/chapters/{chapter}/versions"} {
		if _, ok := spec.Paths[path]; !ok {
			t.Errorf("openapi paths missing %s", path)
		}
	}

	rec = do(http.MethodGet, "/api/replica", "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /replica without storage status = %d, want 404", rec.Code)
	}
}

func TestModuleBodyLimit(t *testing.T) {
	srv := fakeProvider(t)
	cfg := validConfig(t, srv.URL)
	cfg.API.MaxBodySize = "1KB"
	infra := setupInfra(t, cfg)

	m, err := api.NewModule(cfg, infra)
	if err != nil {
		t.Fatalf("NewModule() error = %v", err)
	}

	body := fmt.Sprintf(`{"content": {"text": %q}}`, strings.Repeat("x", 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/threads", strings.NewReader(body))
	rec := httptest.NewRecorder()
	m.Serve(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized body status = %d, want 400", rec.Code)
	}
}

func TestNewDomainClose(t *testing.T) {
	srv := fakeProvider(t)
	cfg := validConfig(t, srv.URL)
	cfg.Checkpoints.Backend = "sqlite"
	cfg.Checkpoints.Dir = t.TempDir()
	infra := setupInfra(t, cfg)

	runtime := api.NewRuntime(cfg, infra)
	domain, err := api.NewDomain(t.Context(), runtime)
	if err != nil {
		t.Fatalf("NewDomain() error = %v", err)
	}

	if _, err := domain.Engine.Start(t.Context(), "t-sqlite", workflow.StartInput{
		Content: workflow.Content{Text: "Draft.", Source: workflow.Source{ChapterID: "ch-2"}},
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if err := domain.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestNewDomainBadPrompts(t *testing.T) {
	srv := fakeProvider(t)
	cfg := validConfig(t, srv.URL)
	cfg.Stages.PromptsFile = filepath.Join(t.TempDir(), "missing.yaml")
	infra := setupInfra(t, cfg)

	if _, err := api.NewDomain(t.Context(), api.NewRuntime(cfg, infra)); err == nil {
		t.Error("NewDomain() with missing prompts file expected error")
	}
}
