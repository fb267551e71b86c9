// Package config loads the Folio configuration from config.toml, an
// optional config.<FOLIO_ENV>.toml overlay, and FOLIO_* environment
// variables, in that order of precedence.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/checkpoints"
	"github.com/JaimeStill/folio/internal/generation"
	"github.com/JaimeStill/folio/internal/stages"
	"github.com/JaimeStill/folio/pkg/database"
	"github.com/JaimeStill/folio/pkg/storage"
)

const (
	BaseConfigFile       = "config.toml"
	OverlayConfigPattern = "config.%s.toml"

	EnvFolioEnv             = "FOLIO_ENV"
	EnvFolioConfig          = "FOLIO_CONFIG"
	EnvFolioShutdownTimeout = "FOLIO_SHUTDOWN_TIMEOUT"
	EnvFolioVersion         = "FOLIO_VERSION"
)

// DatabaseEnv maps database settings to FOLIO_DB_* variables.
var DatabaseEnv = &database.Env{
	Host:            "FOLIO_DB_HOST",
	Port:            "FOLIO_DB_PORT",
	Name:            "FOLIO_DB_NAME",
	User:            "FOLIO_DB_USER",
	Password:        "FOLIO_DB_PASSWORD",
	Schema:          "FOLIO_DB_SCHEMA",
	SSLMode:         "FOLIO_DB_SSL_MODE",
	MaxOpenConns:    "FOLIO_DB_MAX_OPEN_CONNS",
	MaxIdleConns:    "FOLIO_DB_MAX_IDLE_CONNS",
	ConnMaxLifetime: "FOLIO_DB_CONN_MAX_LIFETIME",
	ConnTimeout:     "FOLIO_DB_CONN_TIMEOUT",
}

var storageEnv = &storage.Env{
	ContainerName:    "FOLIO_STORAGE_CONTAINER_NAME",
	ConnectionString: "FOLIO_STORAGE_CONNECTION_STRING",
	ServiceURL:       "FOLIO_STORAGE_SERVICE_URL",
	Concurrency:      "FOLIO_STORAGE_CONCURRENCY",
}

var checkpointsEnv = &checkpoints.Env{
	Backend:    "FOLIO_CHECKPOINTS_BACKEND",
	Dir:        "FOLIO_CHECKPOINTS_DIR",
	SQLitePath: "FOLIO_CHECKPOINTS_SQLITE_PATH",
	Prefix:     "FOLIO_CHECKPOINTS_PREFIX",
}

var contentEnv = &artifacts.Env{
	Dir:         "FOLIO_CONTENT_DIR",
	Prefix:      "FOLIO_CONTENT_PREFIX",
	Dimensions:  "FOLIO_CONTENT_DIMENSIONS",
	SearchLimit: "FOLIO_CONTENT_SEARCH_LIMIT",
}

var generationEnv = &generation.Env{
	Provider:       "FOLIO_GENERATION_PROVIDER",
	BaseURL:        "FOLIO_GENERATION_BASE_URL",
	Token:          "FOLIO_GENERATION_TOKEN",
	AuthType:       "FOLIO_GENERATION_AUTH_TYPE",
	APIVersion:     "FOLIO_GENERATION_API_VERSION",
	Model:          "FOLIO_GENERATION_MODEL",
	EmbeddingModel: "FOLIO_GENERATION_EMBEDDING_MODEL",
	Timeout:        "FOLIO_GENERATION_TIMEOUT",
	MaxRetries:     "FOLIO_GENERATION_MAX_RETRIES",
}

var stagesEnv = &stages.Env{
	MaxIterations: "FOLIO_STAGES_MAX_ITERATIONS",
	PromptsFile:   "FOLIO_STAGES_PROMPTS_FILE",
	MaxTokens:     "FOLIO_STAGES_MAX_TOKENS",
}

// Config is the root configuration for the Folio service and CLI.
type Config struct {
	Server          ServerConfig       `toml:"server"`
	API             APIConfig          `toml:"api"`
	Logging         LoggingConfig      `toml:"logging"`
	Workflow        WorkflowConfig     `toml:"workflow"`
	Stages          stages.Config      `toml:"stages"`
	Generation      generation.Config  `toml:"generation"`
	Checkpoints     checkpoints.Config `toml:"checkpoints"`
	Content         artifacts.Config   `toml:"content"`
	Storage         storage.Config     `toml:"storage"`
	Database        database.Config    `toml:"database"`
	ShutdownTimeout string             `toml:"shutdown_timeout"`
	Version         string             `toml:"version"`
}

// Env returns the FOLIO_ENV value, defaulting to "local".
func (c *Config) Env() string {
	if env := os.Getenv(EnvFolioEnv); env != "" {
		return env
	}
	return "local"
}

// ShutdownTimeoutDuration returns ShutdownTimeout as a time.Duration.
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.ShutdownTimeout)
	return d
}

// Load reads the base config (if present), applies any environment overlay,
// and finalizes all values. If no config.toml exists, defaults and environment
// variables provide all configuration. FOLIO_CONFIG names an alternate base file.
func Load() (*Config, error) {
	return LoadFile(baseFile())
}

// LoadFile is Load with an explicit base file path. The overlay is looked
// up beside it.
func LoadFile(path string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat(path); err == nil {
		loaded, err := load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if overlay := overlayPath(path); overlay != "" {
		o, err := load(overlay)
		if err != nil {
			return nil, fmt.Errorf("load overlay %s: %w", overlay, err)
		}
		cfg.Merge(o)
	}

	if err := cfg.finalize(); err != nil {
		return nil, fmt.Errorf("finalize config: %w", err)
	}

	return cfg, nil
}

// Merge overwrites non-zero fields from overlay across all sub-configs.
func (c *Config) Merge(overlay *Config) {
	if overlay.ShutdownTimeout != "" {
		c.ShutdownTimeout = overlay.ShutdownTimeout
	}
	if overlay.Version != "" {
		c.Version = overlay.Version
	}
	c.Server.Merge(&overlay.Server)
	c.API.Merge(&overlay.API)
	c.Logging.Merge(&overlay.Logging)
	c.Workflow.Merge(&overlay.Workflow)
	c.Stages.Merge(&overlay.Stages)
	c.Generation.Merge(&overlay.Generation)
	c.Checkpoints.Merge(&overlay.Checkpoints)
	c.Content.Merge(&overlay.Content)
	c.Storage.Merge(&overlay.Storage)
	c.Database.Merge(&overlay.Database)
}

func (c *Config) finalize() error {
	c.loadDefaults()
	c.loadEnv()

	if err := c.validate(); err != nil {
		return err
	}
	if err := c.Server.Finalize(); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	if err := c.API.Finalize(); err != nil {
		return fmt.Errorf("api: %w", err)
	}
	if err := c.Logging.Finalize(); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Workflow.Finalize(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}
	if err := c.Stages.Finalize(stagesEnv); err != nil {
		return fmt.Errorf("stages: %w", err)
	}
	if err := c.Generation.Finalize(generationEnv); err != nil {
		return fmt.Errorf("generation: %w", err)
	}
	if err := c.Checkpoints.Finalize(checkpointsEnv); err != nil {
		return fmt.Errorf("checkpoints: %w", err)
	}
	if err := c.Content.Finalize(contentEnv); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	if err := c.Storage.Finalize(storageEnv); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	if err := c.Database.Finalize(DatabaseEnv); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.ShutdownTimeout == "" {
		c.ShutdownTimeout = "30s"
	}
	if c.Version == "" {
		c.Version = "0.1.0"
	}
}

func (c *Config) loadEnv() {
	if v := os.Getenv(EnvFolioShutdownTimeout); v != "" {
		c.ShutdownTimeout = v
	}
	if v := os.Getenv(EnvFolioVersion); v != "" {
		c.Version = v
	}
}

func (c *Config) validate() error {
	if _, err := time.ParseDuration(c.ShutdownTimeout); err != nil {
		return fmt.Errorf("invalid shutdown_timeout: %w", err)
	}
	return nil
}

func load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func baseFile() string {
	if path := os.Getenv(EnvFolioConfig); path != "" {
		return path
	}
	return BaseConfigFile
}

func overlayPath(base string) string {
	env := os.Getenv(EnvFolioEnv)
	if env == "" {
		return ""
	}

	path := filepath.Join(filepath.Dir(base), fmt.Sprintf(OverlayConfigPattern, env))
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}
