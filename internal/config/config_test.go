package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/JaimeStill/folio/internal/checkpoints"
	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/generation"
)

const baseConfig = `
shutdown_timeout = "30s"
version = "0.1.0"

[server]
host = "0.0.0.0"
port = 8080

[api]
base_path = "/api"
max_body_size = "4MB"

[api.pagination]
default_page_size = 25
max_page_size = 50

[logging]
level = "debug"
format = "json"

[stages]
max_iterations = 3

[stages.writer]
temperature = 0.0

[stages.reviewer]
temperature = 0.4

[generation]
base_url = "http://localhost:11434/v1"
model = "llama3.1:8b"

[checkpoints]
backend = "sqlite"
sqlite_path = ".folio/checkpoints.db"

[content]
dir = ".folio/content_store"

[storage]
container_name = "folio"
`

const overlayConfig = `
[server]
port = 9090

[checkpoints]
backend = "postgres"

[database]
host = "prodhost"
`

func writeConfig(t *testing.T, dir, filename, content string) string {
	t.Helper()
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", filename, err)
	}
	return path
}

func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { os.Chdir(orig) })
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	chdir(t, dir)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.API.MaxBodySizeBytes() != 4*1024*1024 {
		t.Errorf("max body size: got %d, want 4MB", cfg.API.MaxBodySizeBytes())
	}
	if cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("pagination max_page_size: got %d, want 50", cfg.API.Pagination.MaxPageSize)
	}
	if cfg.Logging.SlogLevel() != slog.LevelDebug || cfg.Logging.Format != config.LogFormatJSON {
		t.Errorf("logging: got %s %s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Stages.MaxIterations != 3 {
		t.Errorf("max iterations: got %d, want 3", cfg.Stages.MaxIterations)
	}
	if *cfg.Stages.Writer.Temperature != 0 || *cfg.Stages.Reviewer.Temperature != 0.4 {
		t.Errorf("temperatures: got %v %v", *cfg.Stages.Writer.Temperature, *cfg.Stages.Reviewer.Temperature)
	}
	if *cfg.Stages.Manager.Temperature != 0.7 {
		t.Errorf("manager temperature default: got %v, want 0.7", *cfg.Stages.Manager.Temperature)
	}
	if cfg.Generation.Provider != generation.ProviderOpenAI || cfg.Generation.Model != "llama3.1:8b" {
		t.Errorf("generation: got %s %s", cfg.Generation.Provider, cfg.Generation.Model)
	}
	if cfg.Checkpoints.Backend != checkpoints.BackendSQLite {
		t.Errorf("checkpoints backend: got %s, want sqlite", cfg.Checkpoints.Backend)
	}
	if cfg.Storage.Enabled() {
		t.Error("storage enabled without a connection string or service url")
	}
	if cfg.Workflow.StepLimit != 64 || cfg.Workflow.LockRetryDuration() != 100*time.Millisecond {
		t.Errorf("workflow defaults: got %d %s", cfg.Workflow.StepLimit, cfg.Workflow.LockRetry)
	}
}

func TestLoadWithOverlay(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, config.BaseConfigFile, baseConfig)
	writeConfig(t, dir, "config.staging.toml", overlayConfig)

	t.Setenv("FOLIO_ENV", "staging")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("server port: got %d, want 9090 (from overlay)", cfg.Server.Port)
	}
	if cfg.Checkpoints.Backend != checkpoints.BackendPostgres {
		t.Errorf("checkpoints backend: got %s, want postgres (from overlay)", cfg.Checkpoints.Backend)
	}
	if cfg.Database.Host != "prodhost" || cfg.Database.Port != 5432 {
		t.Errorf("database: got %s:%d, want prodhost:5432", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Stages.MaxIterations != 3 {
		t.Errorf("max iterations: got %d, want 3 (from base)", cfg.Stages.MaxIterations)
	}
}

func TestLoadEnvVarOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, config.BaseConfigFile, baseConfig)

	t.Setenv("FOLIO_VERSION", "2.0.0")
	t.Setenv("FOLIO_SERVER_PORT", "3000")
	t.Setenv("FOLIO_STAGES_MAX_ITERATIONS", "7")
	t.Setenv("FOLIO_GENERATION_MODEL", "gpt-4o")
	t.Setenv("FOLIO_CHECKPOINTS_BACKEND", "file")
	t.Setenv("FOLIO_STORAGE_CONNECTION_STRING", "UseDevelopmentStorage=true")
	t.Setenv("FOLIO_LOG_LEVEL", "warn")

	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Version != "2.0.0" {
		t.Errorf("version: got %s, want 2.0.0", cfg.Version)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("server port: got %d, want 3000", cfg.Server.Port)
	}
	if cfg.Stages.MaxIterations != 7 {
		t.Errorf("max iterations: got %d, want 7", cfg.Stages.MaxIterations)
	}
	if cfg.Generation.Model != "gpt-4o" {
		t.Errorf("model: got %s, want gpt-4o", cfg.Generation.Model)
	}
	if cfg.Checkpoints.Backend != checkpoints.BackendFile {
		t.Errorf("checkpoints backend: got %s, want file", cfg.Checkpoints.Backend)
	}
	if !cfg.Storage.Enabled() {
		t.Error("storage not enabled by connection string env")
	}
	if cfg.Logging.SlogLevel() != slog.LevelWarn {
		t.Errorf("log level: got %s, want warn", cfg.Logging.Level)
	}
}

func TestLoadNoConfigFile(t *testing.T) {
	dir := t.TempDir()

	cfg, err := config.LoadFile(filepath.Join(dir, config.BaseConfigFile))
	if err != nil {
		t.Fatalf("load without config.toml failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("server port default: got %d, want 8080", cfg.Server.Port)
	}
	if cfg.Checkpoints.Backend != checkpoints.BackendFile {
		t.Errorf("checkpoints backend default: got %s, want file", cfg.Checkpoints.Backend)
	}
	if cfg.Stages.MaxIterations != 5 {
		t.Errorf("max iterations default: got %d, want 5", cfg.Stages.MaxIterations)
	}
	if cfg.Env() != "local" {
		t.Errorf("env: got %s, want local", cfg.Env())
	}
	if cfg.ShutdownTimeoutDuration() != 30*time.Second {
		t.Errorf("shutdown timeout: got %s, want 30s", cfg.ShutdownTimeoutDuration())
	}
}

func TestLoadFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "folio.toml", baseConfig)
	t.Setenv("FOLIO_CONFIG", path)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Stages.MaxIterations != 3 {
		t.Errorf("max iterations: got %d, want 3 from FOLIO_CONFIG file", cfg.Stages.MaxIterations)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{name: "malformed toml", content: `[server`},
		{name: "bad shutdown timeout", content: `shutdown_timeout = "soon"`},
		{name: "bad port", content: "[server]\nport = 70000"},
		{name: "unknown backend", content: "[checkpoints]\nbackend = \"redis\""},
		{name: "bad log level", content: "[logging]\nlevel = \"loud\""},
		{name: "bad body size", content: "[api]\nmax_body_size = \"lots\""},
		{name: "negative iterations", content: "[stages]\nmax_iterations = -1"},
		{name: "azure without endpoint", content: "[generation]\nprovider = \"azure\""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, t.TempDir(), config.BaseConfigFile, tt.content)
			if _, err := config.LoadFile(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}
