package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/workflow"
)

const testPrompts = `
writer: "stage:writer"
reviewer: "stage:reviewer"
manager: "stage:manager"
quality: "stage:quality"
`

// fakeProvider serves chat completions, answering each stage from replies.
func fakeProvider(t *testing.T, replies map[string]string) *httptest.Server {
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

		reply, ok := replies[body.Messages[0].Content]
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

type cliTestEnv struct {
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T, replies map[string]string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	srv := fakeProvider(t, replies)

	promptsFile := filepath.Join(base, "prompts.yaml")
	if err := os.WriteFile(promptsFile, []byte(testPrompts), 0o644); err != nil {
		t.Fatalf("write prompts: %v", err)
	}

	doc := fmt.Sprintf(`
[logging]
level = "error"
format = "text"

[generation]
base_url = %q
token = "test-key"
model = "test-model"

[stages]
prompts_file = %q

[checkpoints]
backend = "file"
dir = %q

[content]
dir = %q

[workflow]
lock_dir = %q
`,
		srv.URL+"/v1",
		promptsFile,
		filepath.Join(base, "checkpoints"),
		filepath.Join(base, "content"),
		filepath.Join(base, "locks"),
	)

	configPath := filepath.Join(base, "config.toml")
	if err := os.WriteFile(configPath, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	return &cliTestEnv{configPath: configPath, baseDir: base}
}

func (e *cliTestEnv) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()

	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--config", e.configPath}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (e *cliTestEnv) writeChapter(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(e.baseDir, "chapter.md")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("write chapter: %v", err)
	}
	return path
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected output to contain %q\noutput:\n%s", substr, output)
	}
}

func decodeCheckpoint(t *testing.T, out string) workflow.Checkpoint {
	t.Helper()
	var cp workflow.Checkpoint
	if err := json.Unmarshal([]byte(out), &cp); err != nil {
		t.Fatalf("decode checkpoint: %v\n%s", err, out)
	}
	return cp
}

func TestStartRunsToCompletion(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{
		"stage:writer":   "Polished chapter.",
		"stage:reviewer": "Good.",
		"stage:manager":  "approved",
		"stage:quality":  `{"score": 8, "summary": "tight"}`,
	})
	chapter := env.writeChapter(t, "Rough chapter.")

	out, _, err := env.run(t, "--json", "start", "--file", chapter, "--thread", "t1", "--chapter", "ch-1", "--status", "initialized")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	cp := decodeCheckpoint(t, out)
	if !cp.Terminal() {
		t.Errorf("pending node = %q, want end", cp.PendingNode)
	}
	if cp.State.CurrentContent != "Polished chapter." {
		t.Errorf("current content = %q", cp.State.CurrentContent)
	}

	out, _, err = env.run(t, "threads")
	if err != nil {
		t.Fatalf("threads: %v", err)
	}
	requireContains(t, out, "t1")
	requireContains(t, out, "ch-1")

	out, _, err = env.run(t, "versions", "ch-1")
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	requireContains(t, out, "v0")
	requireContains(t, out, "17.0 B")

	out, _, err = env.run(t, "export", "ch-1")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	requireContains(t, out, "Polished chapter.")

	out, _, err = env.run(t, "export", "ch-1", "--html")
	if err != nil {
		t.Fatalf("export --html: %v", err)
	}
	requireContains(t, out, "<p>Polished chapter.</p>")
}

func TestResumeAfterHumanReview(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{
		"stage:writer":   "Draft one.",
		"stage:reviewer": "Unsure about tone.",
		"stage:manager":  "human_review",
		"stage:quality":  `{"score": 7, "summary": "ok"}`,
	})
	chapter := env.writeChapter(t, "Rough chapter.")

	out, _, err := env.run(t, "start", "--file", chapter, "--thread", "t2", "--chapter", "ch-2")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	requireContains(t, out, "waiting for review")

	out, _, err = env.run(t, "threads", "--suspended")
	if err != nil {
		t.Fatalf("threads --suspended: %v", err)
	}
	requireContains(t, out, "t2")

	if _, _, err := env.run(t, "resume", "t2", "--verdict", "pending"); !errors.Is(err, workflow.ErrInvalidVerdict) {
		t.Errorf("resume with pending verdict error = %v, want ErrInvalidVerdict", err)
	}

	out, _, err = env.run(t, "--json", "resume", "t2", "--verdict", "approved", "--feedback", "Ship it.")
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	cp := decodeCheckpoint(t, out)
	if !cp.Terminal() {
		t.Errorf("pending node = %q, want end", cp.PendingNode)
	}
	if cp.State.QualityReport == nil {
		t.Error("quality report missing after approval")
	}

	out, _, err = env.run(t, "show", "t2", "--messages")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	requireContains(t, out, "Human: Ship it.")

	if _, _, err := env.run(t, "resume", "t2", "--verdict", "approved"); !errors.Is(err, workflow.ErrThreadTerminal) {
		t.Errorf("resume ended thread error = %v, want ErrThreadTerminal", err)
	}
}

func TestShowMissingThread(t *testing.T) {
	env := setupCLITestEnv(t, map[string]string{})

	_, _, err := env.run(t, "show", "missing")
	if !errors.Is(err, workflow.ErrCheckpointNotFound) {
		t.Errorf("show missing error = %v, want ErrCheckpointNotFound", err)
	}
}

func TestPickVersion(t *testing.T) {
	versions := []artifacts.Artifact{
		{Content: "zero", Metadata: artifacts.Metadata{Version: "v0"}},
		{Content: "one", Metadata: artifacts.Metadata{Version: "v1"}},
	}

	tests := []struct {
		name     string
		versions []artifacts.Artifact
		version  string
		want     string
		wantErr  bool
	}{
		{"latest", versions, "", "one", false},
		{"named", versions, "v0", "zero", false},
		{"unknown", versions, "v9", "", true},
		{"empty", nil, "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := pickVersion(tt.versions, "ch", tt.version)
			if tt.wantErr {
				if !errors.Is(err, artifacts.ErrNotFound) {
					t.Errorf("error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.Content != tt.want {
				t.Errorf("content = %q, want %q", got.Content, tt.want)
			}
		})
	}
}

func TestExcerpt(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"line one\nline two", 40, "line one line two"},
		{"abcdefghij", 5, "abcd…"},
	}

	for _, tt := range tests {
		if got := excerpt(tt.in, tt.width); got != tt.want {
			t.Errorf("excerpt(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
