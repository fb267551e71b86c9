package artifacts

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds content store settings.
type Config struct {
	Dir          string `toml:"dir"`
	Prefix       string `toml:"prefix"`
	Dimensions   int    `toml:"dimensions"`
	SearchLimit  int    `toml:"search_limit"`
	ExcerptWidth int    `toml:"excerpt_width"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	Dir         string
	Prefix      string
	Dimensions  string
	SearchLimit string
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
	if overlay.Dir != "" {
		c.Dir = overlay.Dir
	}
	if overlay.Prefix != "" {
		c.Prefix = overlay.Prefix
	}
	if overlay.Dimensions != 0 {
		c.Dimensions = overlay.Dimensions
	}
	if overlay.SearchLimit != 0 {
		c.SearchLimit = overlay.SearchLimit
	}
	if overlay.ExcerptWidth != 0 {
		c.ExcerptWidth = overlay.ExcerptWidth
	}
}

func (c *Config) loadDefaults() {
	if c.Dir == "" {
		c.Dir = ".folio/content_store"
	}
	if c.Prefix == "" {
		c.Prefix = "content_store"
	}
	if c.Dimensions <= 0 {
		c.Dimensions = 512
	}
	if c.SearchLimit <= 0 {
		c.SearchLimit = 5
	}
	if c.ExcerptWidth <= 0 {
		c.ExcerptWidth = 160
	}
}

func (c *Config) loadEnv(env *Env) {
	if env.Dir != "" {
		if v := os.Getenv(env.Dir); v != "" {
			c.Dir = v
		}
	}
	if env.Prefix != "" {
		if v := os.Getenv(env.Prefix); v != "" {
			c.Prefix = v
		}
	}
	if env.Dimensions != "" {
		if v := os.Getenv(env.Dimensions); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Dimensions = n
			}
		}
	}
	if env.SearchLimit != "" {
		if v := os.Getenv(env.SearchLimit); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.SearchLimit = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.Dimensions < 1 {
		return fmt.Errorf("dimensions must be positive, got %d", c.Dimensions)
	}
	if c.SearchLimit < 1 {
		return fmt.Errorf("search_limit must be positive, got %d", c.SearchLimit)
	}
	return nil
}
