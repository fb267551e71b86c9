package checkpoints

import (
	"fmt"
	"os"
	"slices"
)

// Backend names accepted by Config.Backend.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

var backends = []string{BackendFile, BackendSQLite, BackendPostgres, BackendMemory}

// Config selects and configures the checkpoint backend.
type Config struct {
	Backend    string `toml:"backend"`
	Dir        string `toml:"dir"`
	SQLitePath string `toml:"sqlite_path"`
	Prefix     string `toml:"prefix"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Backend    string
	Dir        string
	SQLitePath string
	Prefix     string
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *Config) Finalize(env *Env) error {
	c.loadDefaults()
	if env != nil {
		c.loadEnv(env)
	}
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *Config) Merge(overlay *Config) {
	if overlay.Backend != "" {
		c.Backend = overlay.Backend
	}
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.SQLitePath != "" {
		c.SQLitePath = overlay.SQLitePath
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
}

func (c *Config) loadDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Dir == "" {
		c.Dir = ".folio/checkpoints"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = ".folio/checkpoints.db"
	}
	if c.Prefix == "" {
		c.Prefix = "checkpoints"
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Backend != "" {
		if v := os.Getenv(env.Backend); v != "" {
			c.Backend = v
		}
	}
	if env.Dir != "" {
		if v := os.Getenv(env.Dir); v != "" {
			c.Dir = v
		}
	}
	if env.SQLitePath != "" {
		if v := os.Getenv(env.SQLitePath); v != "" {
			c.SQLitePath = v
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
}

func (c *Config) validate() error {
	if !slices.Contains(backends, c.Backend) {
		return fmt.Errorf("unknown backend %q (want one of %v)", c.Backend, backends)
	}
	return nil
}
