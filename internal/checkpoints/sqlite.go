package checkpoints

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/query"
	"github.com/JaimeStill/folio/pkg/repository"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id    TEXT PRIMARY KEY,
	state        TEXT NOT NULL,
	pending_node TEXT NOT NULL,
	suspended    INTEGER NOT NULL DEFAULT 0,
	step         INTEGER NOT NULL DEFAULT 0,
	status       TEXT NOT NULL DEFAULT '',
	chapter_id   TEXT NOT NULL DEFAULT '',
	created_at   TEXT NOT NULL,
	updated_at   TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_checkpoints_updated_at ON checkpoints(updated_at);
CREATE INDEX IF NOT EXISTS idx_checkpoints_chapter_id ON checkpoints(chapter_id);
`

// SQLite is a checkpoint store backed by a single SQLite database file.
type SQLite struct {
	*sqlStore
}

// NewSQLite opens (creating if needed) the database at path and ensures
// the checkpoints table exists.
func NewSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init sqlite schema: %w", err)
	}

	return &SQLite{
		sqlStore: &sqlStore{
			db:         db,
			dialect:    query.SQLite,
			projection: projection(""),
			encodeTime: textTime,
			retry:      repository.RetryOnBusy,
			logger:     logger.With("system", "checkpoints", "backend", BackendSQLite),
		},
	}, nil
}

// Close closes the underlying database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

var _ workflow.CheckpointStore = (*SQLite)(nil)
