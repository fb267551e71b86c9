package config

import (
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
)

// Log formats. Auto picks text on a terminal and JSON otherwise.
const (
	LogFormatAuto = "auto"
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// SlogLevel returns Level as a slog.Level.
func (c *LoggingConfig) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Finalize applies defaults, environment variable overrides, and validation.
func (c *LoggingConfig) Finalize() error {
	c.loadDefaults()
	c.loadEnv()
	return c.validate()
}

// Merge overwrites non-zero fields from overlay.
func (c *LoggingConfig) Merge(overlay *LoggingConfig) {
	if overlay.Level != "" {
		c.Level = overlay.Level
	}
	if overlay.Format != "" {
		c.Format = overlay.Format
	}
}

func (c *LoggingConfig) loadDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = LogFormatAuto
	}
}

func (c *LoggingConfig) loadEnv() {
	if v := os.Getenv("FOLIO_LOG_LEVEL"); v != "" {
		c.Level = v
	}
	if v := os.Getenv("FOLIO_LOG_FORMAT"); v != "" {
		c.Format = v
	}
}

func (c *LoggingConfig) validate() error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Level)); err != nil {
		return fmt.Errorf("invalid level %q", c.Level)
	}
	c.Format = strings.ToLower(c.Format)
	if !slices.Contains([]string{LogFormatAuto, LogFormatText, LogFormatJSON}, c.Format) {
		return fmt.Errorf("invalid format %q", c.Format)
	}
	return nil
}
