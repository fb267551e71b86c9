package storage

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds Azure Blob Storage connection parameters for the remote replica.
// The replica is disabled when neither ConnectionString nor ServiceURL is set.
type Config struct {
	ContainerName    string `toml:"container_name"`
	ConnectionString string `toml:"connection_string"`
	ServiceURL       string `toml:"service_url"`
	Concurrency      int    `toml:"concurrency"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	ContainerName    string
	ConnectionString string
	ServiceURL       string
	Concurrency      string
}

// Enabled reports whether a remote replica is configured.
func (c *Config) Enabled() bool {
	return c.ConnectionString != "" || c.ServiceURL != ""
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
	if overlay.ContainerName != "" {
		c.ContainerName = overlay.ContainerName
	}
	if overlay.ConnectionString != "" {
		c.ConnectionString = overlay.ConnectionString
	}
	if overlay.ServiceURL != "" {
		c.ServiceURL = overlay.ServiceURL
	}
	if overlay.Concurrency != 0 {
		c.Concurrency = overlay.Concurrency
	}
}

func (c *Config) loadDefaults() {
	if c.ContainerName == "" {
		c.ContainerName = "folio"
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.ContainerName != "" {
		if v := os.Getenv(env.ContainerName); v != "" {
			c.ContainerName = v
		}
	}
	if env.ConnectionString != "" {
		if v := os.Getenv(env.ConnectionString); v != "" {
			c.ConnectionString = v
		}
	}
	if env.ServiceURL != "" {
		if v := os.Getenv(env.ServiceURL); v != "" {
			c.ServiceURL = v
		}
	}
	if env.Concurrency != "" {
		if v := os.Getenv(env.Concurrency); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				c.Concurrency = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.ContainerName == "" {
		return fmt.Errorf("container_name required")
	}
	if c.ServiceURL != "" && !strings.HasPrefix(c.ServiceURL, "http") {
		return fmt.Errorf("invalid service_url: %s", c.ServiceURL)
	}
	return nil
}
