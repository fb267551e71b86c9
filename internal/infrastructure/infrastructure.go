// Package infrastructure provides core service initialization for application startup.
// It assembles common dependencies (logging, blob storage, database, generation) that
// domain systems require. Optional systems are nil when their configuration leaves
// them disabled.
package infrastructure

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"

	"github.com/JaimeStill/folio/internal/checkpoints"
	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/generation"
	"github.com/JaimeStill/folio/pkg/database"
	"github.com/JaimeStill/folio/pkg/lifecycle"
	"github.com/JaimeStill/folio/pkg/storage"
)

// Infrastructure holds the core systems required by all domain modules.
type Infrastructure struct {
	Lifecycle *lifecycle.Coordinator
	Logger    *slog.Logger
	// Storage is the remote replica, nil when none is configured.
	Storage storage.System
	// Database is set only for the postgres checkpoint backend.
	Database  database.System
	Generator *generation.Client
}

// New creates an Infrastructure from the application configuration.
// It initializes all systems but does not start them; call Start separately.
func New(cfg *config.Config) (*Infrastructure, error) {
	return NewWithLogger(cfg, NewLogger(&cfg.Logging, os.Stderr))
}

// NewWithLogger is New with a caller-supplied logger.
func NewWithLogger(cfg *config.Config, logger *slog.Logger) (*Infrastructure, error) {
	lc := lifecycle.New()

	store, err := newStorage(&cfg.Storage, logger)
	if err != nil {
		return nil, fmt.Errorf("storage init failed: %w", err)
	}

	var db database.System
	if cfg.Checkpoints.Backend == checkpoints.BackendPostgres {
		db, err = database.New(&cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("database init failed: %w", err)
		}
	}

	gen, err := generation.New(&cfg.Generation, logger)
	if err != nil {
		return nil, fmt.Errorf("generation init failed: %w", err)
	}

	return &Infrastructure{
		Lifecycle: lc,
		Logger:    logger,
		Storage:   store,
		Database:  db,
		Generator: gen,
	}, nil
}

// Start registers infrastructure systems with the lifecycle coordinator.
func (i *Infrastructure) Start() error {
	if i.Database != nil {
		if err := i.Database.Start(i.Lifecycle); err != nil {
			return fmt.Errorf("database start failed: %w", err)
		}
		i.Lifecycle.Track("database", i.Database)
	}
	return nil
}

// NewLogger builds the process logger. The auto format writes text to a
// terminal and JSON everywhere else.
func NewLogger(cfg *config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}

	switch cfg.Format {
	case config.LogFormatText:
		return slog.New(slog.NewTextHandler(w, opts))
	case config.LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	if f, ok := w.(*os.File); ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())) {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// newStorage returns an untyped nil when no replica is configured so callers
// can compare the interface against nil.
func newStorage(cfg *storage.Config, logger *slog.Logger) (storage.System, error) {
	store, err := storage.New(cfg, logger)
	if errors.Is(err, storage.ErrDisabled) {
		logger.Info("remote replica disabled, running local-only")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}
