package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// WorkflowConfig holds engine and thread locking settings.
type WorkflowConfig struct {
	// StepLimit caps the stages a single drive may run. Zero means the default.
	StepLimit int `toml:"step_limit"`
	// LockDir holds the per-thread lock files the CLI takes so it cannot race
	// another process driving the same thread.
	LockDir   string `toml:"lock_dir"`
	LockRetry string `toml:"lock_retry"`
}

// LockRetryDuration returns LockRetry as a time.Duration.
func (c *WorkflowConfig) LockRetryDuration() time.Duration {
	d, _ := time.ParseDuration(c.LockRetry)
	return d
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *WorkflowConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *WorkflowConfig) Merge(overlay *WorkflowConfig) {
	if overlay.StepLimit != 0 {
		c.StepLimit = overlay.StepLimit
	}
	if overlay.LockDir != "" {
		c.LockDir = overlay.LockDir
	}
	if overlay.LockRetry != "" {
		c.LockRetry = overlay.LockRetry
	}
}

func (c *WorkflowConfig) loadDefaults() {
	if c.StepLimit == 0 {
		c.StepLimit = 64
	}
	if c.LockDir == "" {
		c.LockDir = ".folio/locks"
	}
	if c.LockRetry == "" {
		c.LockRetry = "100ms"
	}
}

func (c *WorkflowConfig) loadEnv() {
	if v := os.Getenv("FOLIO_WORKFLOW_STEP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.StepLimit = n
		}
	}
	if v := os.Getenv("FOLIO_WORKFLOW_LOCK_DIR"); v != "" {
		c.LockDir = v
	}
	if v := os.Getenv("FOLIO_WORKFLOW_LOCK_RETRY"); v != "" {
		c.LockRetry = v
	}
}

func (c *WorkflowConfig) validate() error {
	if c.StepLimit < 0 {
		return fmt.Errorf("step_limit cannot be negative")
	}
	if d, err := time.ParseDuration(c.LockRetry); err != nil || d <= 0 {
		return fmt.Errorf("invalid lock_retry: %q", c.LockRetry)
	}
	return nil
}
