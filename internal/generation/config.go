package generation

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// Provider names accepted by Config.Provider.
const (
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

// Auth types for the azure provider.
const (
	AuthAPIKey   = "api_key"
	AuthIdentity = "identity"
)

// Config holds generation provider settings.
type Config struct {
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"base_url"`
	Token          string `toml:"token"`
	AuthType       string `toml:"auth_type"`
	APIVersion     string `toml:"api_version"`
	Model          string `toml:"model"`
	EmbeddingModel string `toml:"embedding_model"`
	Timeout        string `toml:"timeout"`
	MaxRetries     int    `toml:"max_retries"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Provider       string
	BaseURL        string
	Token          string
	AuthType       string
	APIVersion     string
	Model          string
	EmbeddingModel string
	Timeout        string
	MaxRetries     string
}

// TimeoutDuration returns Timeout as a time.Duration.
func (c *Config) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
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
	if overlay.Provider != "" {
		c.Provider = overlay.Provider
	}
	if overlay.BaseURL != "" {
		c.BaseURL = overlay.BaseURL
	}
	if overlay.Token != "" {
		c.Token = overlay.Token
	}
	if overlay.AuthType != "" {
		c.AuthType = overlay.AuthType
	}
	if overlay.APIVersion != "" {
		c.APIVersion = overlay.APIVersion
	}
	if overlay.Model != "" {
		c.Model = overlay.Model
	}
	if overlay.EmbeddingModel != "" {
		c.EmbeddingModel = overlay.EmbeddingModel
	}
	if overlay.Timeout != "" {
		c.Timeout = overlay.Timeout
	}
	if overlay.MaxRetries != 0 {
		c.MaxRetries = overlay.MaxRetries
	}
}

func (c *Config) loadDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderOpenAI
	}
	if c.AuthType == "" {
		c.AuthType = AuthAPIKey
	}
	if c.Provider == ProviderAzure && c.APIVersion == "" {
		c.APIVersion = "2024-10-21"
	}
	if c.Model == "" {
		c.Model = "gpt-4o-mini"
	}
	if c.Timeout == "" {
		c.Timeout = "2m"
	}
	if c.MaxRetries == 0 {
		c.MaxRetries = 2
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Provider != "" {
		if v := os.Getenv(env.Provider); v != "" {
			c.Provider = v
		}
	}
	if env.BaseURL != "" {
		if v := os.Getenv(env.BaseURL); v != "" {
			c.BaseURL = v
		}
	}
	if env.Token != "" {
		if v := os.Getenv(env.Token); v != "" {
			c.Token = v
		}
	}
	if env.AuthType != "" {
		if v := os.Getenv(env.AuthType); v != "" {
			c.AuthType = v
		}
	}
	if env.APIVersion != "" {
		if v := os.Getenv(env.APIVersion); v != "" {
			c.APIVersion = v
		}
	}
	if env.Model != "" {
		if v := os.Getenv(env.Model); v != "" {
			c.Model = v
		}
	}
	if env.EmbeddingModel != "" {
		if v := os.Getenv(env.EmbeddingModel); v != "" {
			c.EmbeddingModel = v
		}
	}
	if env.Timeout != "" {
		if v := os.Getenv(env.Timeout); v != "" {
			c.Timeout = v
		}
	}
	if env.MaxRetries != "" {
		if v := os.Getenv(env.MaxRetries); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxRetries = n
			}
		}
	}
}

func (c *Config) validate() error {
	if !slices.Contains([]string{ProviderOpenAI, ProviderAzure}, c.Provider) {
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if !slices.Contains([]string{AuthAPIKey, AuthIdentity}, c.AuthType) {
		return fmt.Errorf("unknown auth_type %q", c.AuthType)
	}
	if c.Provider == ProviderAzure && c.BaseURL == "" {
		return fmt.Errorf("base_url required for azure provider")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative")
	}
	if _, err := time.ParseDuration(c.Timeout); err != nil {
		return fmt.Errorf("invalid timeout: %w", err)
	}
	return nil
}
