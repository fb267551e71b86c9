// Package artifacts implements the versioned content store. Every stored
// draft is an immutable Markdown file with YAML front matter, indexed for
// similarity search and chapter lineage, and mirrored to blob storage.
package artifacts

import (
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Artifact types written by the pipeline.
const (
	TypeWriterOutput = "writer_output"
)

// Artifact is one immutable stored version of content.
type Artifact struct {
	ID       uuid.UUID `json:"id"`
	Content  string    `json:"content"`
	Metadata Metadata  `json:"metadata"`
}

// Metadata describes where an artifact sits in a chapter's lineage.
// CreatedAt is stamped by the store; any caller value is overwritten.
type Metadata struct {
	Type      string            `json:"type" yaml:"type"`
	Version   string            `json:"version" yaml:"version"`
	Status    string            `json:"status" yaml:"status"`
	ChapterID string            `json:"chapter_id" yaml:"chapter_id"`
	Iteration int               `json:"iteration" yaml:"iteration"`
	SourceURL string            `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	ThreadID  string            `json:"thread_id,omitempty" yaml:"thread_id,omitempty"`
	CreatedAt time.Time         `json:"created_at" yaml:"-"`
	Extra     map[string]string `json:"extra,omitempty" yaml:"extra,omitempty"`
}

// Summary is the listing view of an artifact without its body.
type Summary struct {
	ID       uuid.UUID `json:"id"`
	Metadata Metadata  `json:"metadata"`
	Excerpt  string    `json:"excerpt"`
	Size     int       `json:"size"`
}

// SearchResult is one similarity match. Score is cosine similarity in
// (0, 1]; Distance is 1 - Score.
type SearchResult struct {
	Artifact Artifact `json:"artifact"`
	Score    float64  `json:"score"`
	Distance float64  `json:"distance"`
}

// Sortable artifact fields accepted by List.
const (
	SortCreatedAt = "created_at"
	SortChapterID = "chapter_id"
	SortIteration = "iteration"
	SortVersion   = "version"
)

// Filters narrows artifact listings. Nil fields are ignored and set fields
// match exactly.
type Filters struct {
	Type      *string `json:"type,omitempty"`
	Status    *string `json:"status,omitempty"`
	ChapterID *string `json:"chapter_id,omitempty"`
	ThreadID  *string `json:"thread_id,omitempty"`
	Iteration *int    `json:"iteration,omitempty"`
}

// Match reports whether m satisfies every set filter.
func (f Filters) Match(m Metadata) bool {
	switch {
	case f.Type != nil && m.Type != *f.Type:
		return false
	case f.Status != nil && m.Status != *f.Status:
		return false
	case f.ChapterID != nil && m.ChapterID != *f.ChapterID:
		return false
	case f.ThreadID != nil && m.ThreadID != *f.ThreadID:
		return false
	case f.Iteration != nil && m.Iteration != *f.Iteration:
		return false
	}
	return true
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if t := values.Get("type"); t != "" {
		f.Type = &t
	}

	if s := values.Get("status"); s != "" {
		f.Status = &s
	}

	if c := values.Get("chapter_id"); c != "" {
		f.ChapterID = &c
	}

	if th := values.Get("thread_id"); th != "" {
		f.ThreadID = &th
	}

	if it := values.Get("iteration"); it != "" {
		if v, err := strconv.Atoi(it); err == nil {
			f.Iteration = &v
		}
	}

	return f
}
