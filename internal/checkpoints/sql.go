package checkpoints

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/query"
	"github.com/JaimeStill/folio/pkg/repository"
)

const table = "checkpoints"

// sqlStore implements the checkpoint contract over database/sql. The
// sqlite and postgres backends differ only in dialect, timestamp encoding
// and retry policy.
type sqlStore struct {
	db         *sql.DB
	dialect    query.Dialect
	schema     string
	projection *query.ProjectionMap
	encodeTime func(time.Time) any
	retry      func(ctx context.Context, op func() error) error
	logger     *slog.Logger
}

func projection(schema string) *query.ProjectionMap {
	return query.NewProjectionMap(schema, table, "c").
		Project("thread_id", workflow.SortThreadID).
		Project("state", "state").
		Project("pending_node", "pending_node").
		Project("suspended", "suspended").
		Project("step", workflow.SortStep).
		Project("status", "status").
		Project("chapter_id", "chapter_id").
		Project("created_at", workflow.SortCreatedAt).
		Project("updated_at", workflow.SortUpdatedAt)
}

func (s *sqlStore) qualifiedTable() string {
	if s.schema == "" {
		return table
	}
	return fmt.Sprintf("%s.%s", s.schema, table)
}

func (s *sqlStore) builder() *query.Builder {
	return query.NewBuilder(
		s.projection,
		workflow.DefaultSort,
		query.SortField{Field: workflow.SortThreadID},
	).Dialect(s.dialect)
}

func (s *sqlStore) Get(ctx context.Context, threadID string) (workflow.Checkpoint, error) {
	q, args := s.builder().BuildSingle(workflow.SortThreadID, threadID)

	var cp workflow.Checkpoint
	err := s.retry(ctx, func() error {
		var err error
		cp, err = repository.QueryOne(ctx, s.db, q, args, scanCheckpoint)
		return err
	})
	if err != nil {
		return workflow.Checkpoint{}, repository.MapError(err, workflow.ErrCheckpointNotFound, workflow.ErrThreadExists)
	}
	return cp, nil
}

func (s *sqlStore) Put(ctx context.Context, cp workflow.Checkpoint) error {
	state, err := json.Marshal(cp.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	q := fmt.Sprintf(`
		INSERT INTO %s (thread_id, state, pending_node, suspended, step, status, chapter_id, created_at, updated_at)
		VALUES (%s)
		ON CONFLICT (thread_id) DO UPDATE SET
			state = excluded.state,
			pending_node = excluded.pending_node,
			suspended = excluded.suspended,
			step = excluded.step,
			status = excluded.status,
			chapter_id = excluded.chapter_id,
			updated_at = excluded.updated_at`,
		s.qualifiedTable(), s.dialect.Placeholders(9),
	)

	args := []any{
		cp.ThreadID,
		string(state),
		string(cp.PendingNode),
		cp.Suspended,
		cp.Step,
		cp.State.Status,
		cp.State.ChapterID(),
		s.encodeTime(cp.CreatedAt),
		s.encodeTime(cp.UpdatedAt),
	}

	err = s.retry(ctx, func() error {
		_, err := s.db.ExecContext(ctx, q, args...)
		return err
	})
	if err != nil {
		return fmt.Errorf("upsert checkpoint %s: %w", cp.ThreadID, err)
	}

	s.logger.Debug("checkpoint stored", "thread_id", cp.ThreadID, "step", cp.Step)
	return nil
}

func (s *sqlStore) Exists(ctx context.Context, threadID string) (bool, error) {
	q := fmt.Sprintf(
		"SELECT EXISTS(SELECT 1 FROM %s WHERE thread_id = %s)",
		s.qualifiedTable(), s.dialect.Placeholders(1),
	)

	var exists bool
	err := s.retry(ctx, func() error {
		return s.db.QueryRowContext(ctx, q, threadID).Scan(&exists)
	})
	return exists, err
}

func (s *sqlStore) List(ctx context.Context, page pagination.PageRequest, filters workflow.Filters) ([]workflow.Checkpoint, int, error) {
	b := s.builder().
		WhereEquals("suspended", filters.Suspended).
		WhereEquals("status", filters.Status).
		WhereEquals("chapter_id", filters.ChapterID).
		WhereContains(workflow.SortThreadID, page.Search)

	if filters.PendingNode != nil {
		b.WhereEquals("pending_node", string(*filters.PendingNode))
	}
	if len(page.Sort) > 0 {
		b.OrderByFields(page.Sort)
	}

	countSQL, countArgs := b.BuildCount()
	pageSQL, pageArgs := b.BuildPage(page.Page, page.PageSize)

	var (
		total int
		items []workflow.Checkpoint
	)
	err := s.retry(ctx, func() error {
		var err error
		if total, err = repository.Count(ctx, s.db, countSQL, countArgs); err != nil {
			return fmt.Errorf("count checkpoints: %w", err)
		}
		if items, err = repository.QueryMany(ctx, s.db, pageSQL, pageArgs, scanCheckpoint); err != nil {
			return fmt.Errorf("query checkpoints: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func scanCheckpoint(sc repository.Scanner) (workflow.Checkpoint, error) {
	var (
		cp        workflow.Checkpoint
		state     []byte
		node      string
		status    sql.NullString
		chapterID sql.NullString
		created   timestamp
		updated   timestamp
	)

	err := sc.Scan(
		&cp.ThreadID,
		&state,
		&node,
		&cp.Suspended,
		&cp.Step,
		&status,
		&chapterID,
		&created,
		&updated,
	)
	if err != nil {
		return workflow.Checkpoint{}, err
	}

	if err := json.Unmarshal(state, &cp.State); err != nil {
		return workflow.Checkpoint{}, fmt.Errorf("decode state %s: %w", cp.ThreadID, err)
	}

	cp.PendingNode = workflow.Node(node)
	cp.CreatedAt = created.Time
	cp.UpdatedAt = updated.Time
	return cp, nil
}

// timestampLayout is fixed-width so lexical order matches time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z"

func textTime(t time.Time) any {
	return t.UTC().Format(timestampLayout)
}

func nativeTime(t time.Time) any {
	return t.UTC()
}

// timestamp scans both native time values and the text encoding used by
// the sqlite backend.
type timestamp struct {
	time.Time
}

func (t *timestamp) Scan(v any) error {
	switch x := v.(type) {
	case time.Time:
		t.Time = x.UTC()
		return nil
	case string:
		return t.parse(x)
	case []byte:
		return t.parse(string(x))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported timestamp type %T", v)
	}
}

func (t *timestamp) parse(s string) error {
	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	t.Time = parsed.UTC()
	return nil
}

func noRetry(ctx context.Context, op func() error) error {
	return op()
}
