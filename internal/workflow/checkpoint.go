package workflow

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/query"
)

// Checkpoint is the persisted position of one thread. PendingNode is the
// node that runs next; NodeEnd marks a finished thread.
type Checkpoint struct {
	ThreadID    string    `json:"thread_id"`
	State       State     `json:"state"`
	PendingNode Node      `json:"pending_node"`
	Suspended   bool      `json:"suspended"`
	Step        int       `json:"step"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Terminal reports whether the thread has reached the end of the graph.
func (c Checkpoint) Terminal() bool {
	return c.PendingNode == NodeEnd
}

// Summary is the listing view of a checkpoint.
type Summary struct {
	ThreadID       string    `json:"thread_id"`
	ChapterID      string    `json:"chapter_id,omitempty"`
	PendingNode    Node      `json:"pending_node"`
	Suspended      bool      `json:"suspended"`
	Terminal       bool      `json:"terminal"`
	Status         string    `json:"status"`
	IterationCount int       `json:"iteration_count"`
	Step           int       `json:"step"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Summarize projects c into its listing view.
func (c Checkpoint) Summarize() Summary {
	return Summary{
		ThreadID:       c.ThreadID,
		ChapterID:      c.State.ChapterID(),
		PendingNode:    c.PendingNode,
		Suspended:      c.Suspended,
		Terminal:       c.Terminal(),
		Status:         c.State.Status,
		IterationCount: c.State.IterationCount,
		Step:           c.Step,
		UpdatedAt:      c.UpdatedAt,
	}
}

// CheckpointStore persists one active checkpoint per thread. Put is an
// atomic replace. Get returns ErrCheckpointNotFound for unknown threads.
type CheckpointStore interface {
	Get(ctx context.Context, threadID string) (Checkpoint, error)
	Put(ctx context.Context, cp Checkpoint) error
	Exists(ctx context.Context, threadID string) (bool, error)
	// List returns the requested page and the total number of matches.
	// page.Search matches thread ids by substring.
	List(ctx context.Context, page pagination.PageRequest, filters Filters) ([]Checkpoint, int, error)
}

// Sortable checkpoint fields accepted by List.
const (
	SortThreadID  = "thread_id"
	SortStep      = "step"
	SortCreatedAt = "created_at"
	SortUpdatedAt = "updated_at"
)

// DefaultSort lists the most recently updated threads first.
var DefaultSort = query.SortField{Field: SortUpdatedAt, Descending: true}

// Filters narrows checkpoint listings. Nil fields are ignored.
type Filters struct {
	Suspended   *bool   `json:"suspended,omitempty"`
	PendingNode *Node   `json:"pending_node,omitempty"`
	Status      *string `json:"status,omitempty"`
	ChapterID   *string `json:"chapter_id,omitempty"`
}

// Match reports whether c satisfies every set filter.
func (f Filters) Match(c Checkpoint) bool {
	if f.Suspended != nil && c.Suspended != *f.Suspended {
		return false
	}
	if f.PendingNode != nil && c.PendingNode != *f.PendingNode {
		return false
	}
	if f.Status != nil && c.State.Status != *f.Status {
		return false
	}
	if f.ChapterID != nil && c.State.ChapterID() != *f.ChapterID {
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if s := values.Get("suspended"); s != "" {
		if v, err := strconv.ParseBool(s); err == nil {
			f.Suspended = &v
		}
	}

	if n := values.Get("pending_node"); n != "" {
		node := Node(n)
		f.PendingNode = &node
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if c := values.Get("chapter_id"); c != "" {
		f.ChapterID = &c
	}

	return f
}
