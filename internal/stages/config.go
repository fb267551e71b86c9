package stages

import (
	"fmt"
	"os"
	"strconv"
)

// Sampling holds generation settings for one stage. Temperature is a
// pointer so an explicit zero survives defaulting.
type Sampling struct {
	Temperature *float64 `toml:"temperature"`
	MaxTokens   int      `toml:"max_tokens"`
}

// Config holds stage executor settings.
type Config struct {
	MaxIterations int      `toml:"max_iterations"`
	PromptsFile   string   `toml:"prompts_file"`
	Writer        Sampling `toml:"writer"`
	Reviewer      Sampling `toml:"reviewer"`
	Manager       Sampling `toml:"manager"`
	Quality       Sampling `toml:"quality"`
}

// Env maps config fields to environment variable names for override injection.
type Env struct {
	MaxIterations string
	PromptsFile   string
	MaxTokens     string
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
	if overlay.MaxIterations != 0 {
		c.MaxIterations = overlay.MaxIterations
	}
	if overlay.PromptsFile != "" {
		c.PromptsFile = overlay.PromptsFile
	}
	c.Writer.merge(overlay.Writer)
	c.Reviewer.merge(overlay.Reviewer)
	c.Manager.merge(overlay.Manager)
	c.Quality.merge(overlay.Quality)
}

func (s *Sampling) merge(overlay Sampling) {
	if overlay.Temperature != nil {
		t := *overlay.Temperature
		s.Temperature = &t
	}
	if overlay.MaxTokens != 0 {
		s.MaxTokens = overlay.MaxTokens
	}
}

func (s *Sampling) defaults(temperature float64) {
	if s.Temperature == nil {
		s.Temperature = &temperature
	}
	if s.MaxTokens == 0 {
		s.MaxTokens = 8192
	}
}

func (s Sampling) validate(stage string) error {
	if t := *s.Temperature; t < 0 || t > 2 {
		return fmt.Errorf("%s temperature must be between 0 and 2, got %g", stage, t)
	}
	if s.MaxTokens < 0 {
		return fmt.Errorf("%s max_tokens cannot be negative", stage)
	}
	return nil
}

func (c *Config) loadDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = 5
	}
	c.Writer.defaults(0)
	c.Reviewer.defaults(0.2)
	c.Manager.defaults(0.7)
	c.Quality.defaults(0.7)
}

func (c *Config) loadEnv(env *Env) {
	if env.MaxIterations != "" {
		if v := os.Getenv(env.MaxIterations); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.MaxIterations = n
			}
		}
	}
	if env.PromptsFile != "" {
		if v := os.Getenv(env.PromptsFile); v != "" {
			c.PromptsFile = v
		}
	}
	if env.MaxTokens != "" {
		if v := os.Getenv(env.MaxTokens); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.Writer.MaxTokens = n
				c.Reviewer.MaxTokens = n
				c.Manager.MaxTokens = n
				c.Quality.MaxTokens = n
			}
		}
	}
}

func (c *Config) validate() error {
	if c.MaxIterations < 1 {
		return fmt.Errorf("max_iterations must be positive")
	}
	for stage, s := range map[string]Sampling{
		"writer":   c.Writer,
		"reviewer": c.Reviewer,
		"manager":  c.Manager,
		"quality":  c.Quality,
	} {
		if err := s.validate(stage); err != nil {
			return err
		}
	}
	return nil
}
