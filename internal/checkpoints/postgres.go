package checkpoints

import (
	"log/slog"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/database"
	"github.com/JaimeStill/folio/pkg/query"
)

// NewPostgres returns a checkpoint store over the database system's pool.
// The checkpoints table is created by cmd/migrate.
func NewPostgres(db database.System, logger *slog.Logger) workflow.CheckpointStore {
	return &sqlStore{
		db:         db.Connection(),
		dialect:    query.Postgres,
		schema:     db.Schema(),
		projection: projection(db.Schema()),
		encodeTime: nativeTime,
		retry:      noRetry,
		logger:     logger.With("system", "checkpoints", "backend", BackendPostgres),
	}
}
