package artifacts

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/folio/pkg/fileutil"
	"github.com/JaimeStill/folio/pkg/formatting"
	"github.com/JaimeStill/folio/pkg/mirror"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/query"
)

const ext = ".md"

var defaultSort = query.SortField{Field: SortCreatedAt, Descending: true}

type entry struct {
	artifact Artifact
	vector   []float32
}

type repo struct {
	dir          string
	mirror       *mirror.Mirror
	embedder     Embedder
	clock        func() time.Time
	searchLimit  int
	excerptWidth int
	pagination   pagination.Config
	logger       *slog.Logger

	mu      sync.RWMutex
	entries map[uuid.UUID]entry
}

// Option customizes the store instance.
type Option func(*repo)

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(r *repo) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithEmbedder replaces the hashed bag-of-words embedder.
func WithEmbedder(e Embedder) Option {
	return func(r *repo) {
		if e != nil {
			r.embedder = e
		}
	}
}

// Open pulls the replica into cfg.Dir (when m is enabled), then indexes
// every artifact on disk. A nil mirror keeps the store local-only.
func Open(
	ctx context.Context,
	cfg *Config,
	m *mirror.Mirror,
	pagination pagination.Config,
	logger *slog.Logger,
	opts ...Option,
) (System, error) {
	r := &repo{
		dir:          cfg.Dir,
		mirror:       m,
		embedder:     NewHashEmbedder(cfg.Dimensions),
		clock:        time.Now,
		searchLimit:  cfg.SearchLimit,
		excerptWidth: cfg.ExcerptWidth,
		pagination:   pagination,
		logger:       logger.With("system", "artifacts"),
		entries:      make(map[uuid.UUID]entry),
	}
	for _, opt := range opts {
		opt(r)
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}

	if m != nil {
		if err := m.Pull(ctx); err != nil {
			return nil, fmt.Errorf("pull content store: %w", err)
		}
	}

	if err := r.load(ctx); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) load(ctx context.Context) error {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return fmt.Errorf("read content dir: %w", err)
	}

	for _, f := range files {
		name := f.Name()
		if f.IsDir() || fileutil.IsTemp(name) || !strings.HasSuffix(name, ext) {
			continue
		}

		a, err := r.readFile(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("skipping unreadable artifact", "file", name, "error", err)
			continue
		}
		if a.ID.String() != strings.TrimSuffix(name, ext) {
			r.logger.Warn("skipping artifact with mismatched id", "file", name, "id", a.ID)
			continue
		}

		if err := r.index(ctx, a); err != nil {
			return err
		}
	}

	r.logger.Info("content store loaded", "artifacts", len(r.entries), "dir", r.dir)
	return nil
}

func (r *repo) readFile(path string) (Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Artifact{}, err
	}
	return decode(data)
}

func (r *repo) index(ctx context.Context, a Artifact) error {
	vec, err := r.embedder.Embed(ctx, a.Content)
	if err != nil {
		return fmt.Errorf("embed artifact %s: %w", a.ID, err)
	}

	r.mu.Lock()
	r.entries[a.ID] = entry{artifact: a, vector: vec}
	r.mu.Unlock()
	return nil
}

func (r *repo) path(id uuid.UUID) string {
	return filepath.Join(r.dir, id.String()+ext)
}

func (r *repo) Store(ctx context.Context, content string, meta Metadata) (Artifact, error) {
	if strings.TrimSpace(content) == "" {
		return Artifact{}, ErrEmptyContent
	}

	meta.CreatedAt = r.clock().UTC()
	meta.Extra = maps.Clone(meta.Extra)

	a := Artifact{
		ID:       uuid.New(),
		Content:  content,
		Metadata: meta,
	}

	data, err := encode(a)
	if err != nil {
		return Artifact{}, err
	}

	if err := fileutil.WriteFileAtomic(r.path(a.ID), data, 0o644); err != nil {
		return Artifact{}, fmt.Errorf("write artifact %s: %w", a.ID, err)
	}

	if err := r.index(ctx, a); err != nil {
		return Artifact{}, err
	}

	r.logger.Info(
		"artifact stored",
		"id", a.ID,
		"chapter_id", meta.ChapterID,
		"version", meta.Version,
		"type", meta.Type,
	)

	if r.mirror != nil {
		if err := r.mirror.Push(ctx); err != nil {
			return a, fmt.Errorf("%w: %w", ErrReplicaSync, err)
		}
	}

	return a, nil
}

func (r *repo) Get(ctx context.Context, id uuid.UUID) (Artifact, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if ok {
		return e.artifact, nil
	}

	// Another process sharing the directory may have written it.
	a, err := r.readFile(r.path(id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Artifact{}, ErrNotFound
		}
		return Artifact{}, fmt.Errorf("read artifact %s: %w", id, err)
	}
	if err := r.index(ctx, a); err != nil {
		return Artifact{}, err
	}
	return a, nil
}

func (r *repo) Search(ctx context.Context, q string, maxResults int) ([]SearchResult, error) {
	if strings.TrimSpace(q) == "" {
		return nil, ErrEmptyQuery
	}
	if maxResults <= 0 {
		maxResults = r.searchLimit
	}

	vec, err := r.embedder.Embed(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	r.mu.RLock()
	results := make([]SearchResult, 0)
	for _, e := range r.entries {
		score := cosine(vec, e.vector)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			Artifact: e.artifact,
			Score:    score,
			Distance: 1 - score,
		})
	}
	r.mu.RUnlock()

	slices.SortFunc(results, func(a, b SearchResult) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return compareCreated(a.Artifact, b.Artifact)
	})

	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

func (r *repo) Versions(ctx context.Context, chapterID string) ([]Artifact, error) {
	r.mu.RLock()
	versions := make([]Artifact, 0)
	for _, e := range r.entries {
		if e.artifact.Metadata.ChapterID == chapterID {
			versions = append(versions, e.artifact)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(versions, compareCreated)
	return versions, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Summary], error) {
	page.Normalize(r.pagination)

	var needle string
	if page.Search != nil {
		needle = strings.ToLower(*page.Search)
	}

	r.mu.RLock()
	matched := make([]Artifact, 0)
	for _, e := range r.entries {
		a := e.artifact
		if !filters.Match(a.Metadata) {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(a.Content), needle) &&
			!strings.Contains(strings.ToLower(a.Metadata.ChapterID), needle) {
			continue
		}
		matched = append(matched, a)
	}
	r.mu.RUnlock()

	sortArtifacts(matched, page.Sort)

	start, end := page.Window(len(matched))
	summaries := make([]Summary, 0, end-start)
	for _, a := range matched[start:end] {
		summaries = append(summaries, Summary{
			ID:       a.ID,
			Metadata: a.Metadata,
			Excerpt:  formatting.Excerpt(a.Content, r.excerptWidth),
			Size:     len(a.Content),
		})
	}

	result := pagination.NewPageResult(summaries, len(matched), page.Page, page.PageSize)
	return &result, nil
}

func (r *repo) Render(ctx context.Context, id uuid.UUID) (string, error) {
	a, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return renderHTML(a.Content)
}

func compareCreated(a, b Artifact) int {
	if c := a.Metadata.CreatedAt.Compare(b.Metadata.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID.String(), b.ID.String())
}

func sortArtifacts(items []Artifact, fields []query.SortField) {
	known := make([]query.SortField, 0, len(fields))
	for _, f := range fields {
		if compareBy(f.Field) != nil {
			known = append(known, f)
		}
	}
	if len(known) == 0 {
		known = []query.SortField{defaultSort}
	}

	slices.SortFunc(items, func(a, b Artifact) int {
		for _, f := range known {
			c := compareBy(f.Field)(a, b)
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}

func compareBy(field string) func(a, b Artifact) int {
	switch field {
	case SortCreatedAt:
		return func(a, b Artifact) int { return a.Metadata.CreatedAt.Compare(b.Metadata.CreatedAt) }
	case SortChapterID:
		return func(a, b Artifact) int { return cmp.Compare(a.Metadata.ChapterID, b.Metadata.ChapterID) }
	case SortIteration:
		return func(a, b Artifact) int { return cmp.Compare(a.Metadata.Iteration, b.Metadata.Iteration) }
	case SortVersion:
		return func(a, b Artifact) int { return cmp.Compare(a.Metadata.Version, b.Metadata.Version) }
	default:
		return nil
	}
}
