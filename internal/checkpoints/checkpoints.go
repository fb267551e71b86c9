// Package checkpoints provides the persistence backends for workflow
// checkpoints: JSON files with an optional blob replica, SQLite,
// PostgreSQL, and an in-memory map.
package checkpoints

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/database"
	"github.com/JaimeStill/folio/pkg/mirror"
	"github.com/JaimeStill/folio/pkg/storage"
)

// ErrNoDatabase indicates the postgres backend was selected without a
// configured database.
var ErrNoDatabase = errors.New("postgres backend requires a database")

// Deps carries the optional systems a backend may need.
type Deps struct {
	// Replica mirrors the file backend. Nil keeps it local-only.
	Replica storage.System
	// Database backs the postgres backend.
	Database database.System
	// Concurrency bounds parallel replica transfers.
	Concurrency int
}

// Open builds the backend selected by cfg. Stores holding resources
// implement io.Closer.
func Open(ctx context.Context, cfg *Config, deps Deps, logger *slog.Logger) (workflow.CheckpointStore, error) {
	switch cfg.Backend {
	case BackendMemory:
		return NewMemory(), nil
	case BackendSQLite:
		store, err := NewSQLite(ctx, cfg.SQLitePath, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	case BackendPostgres:
		if deps.Database == nil {
			return nil, ErrNoDatabase
		}
		return NewPostgres(deps.Database, logger), nil
	case BackendFile:
		var m *mirror.Mirror
		if deps.Replica != nil {
			m = mirror.New(deps.Replica, cfg.Dir, cfg.Prefix, deps.Concurrency, logger)
		}
		return NewFile(ctx, cfg.Dir, m, logger)
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.Backend)
	}
}
