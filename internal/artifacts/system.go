package artifacts

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/folio/pkg/pagination"
)

// System defines the public contract for content store operations.
type System interface {
	Handler() *Handler

	// Store writes a new immutable artifact and mirrors the store before
	// returning. A replica failure returns the stored artifact together with
	// an error wrapping ErrReplicaSync.
	Store(ctx context.Context, content string, meta Metadata) (Artifact, error)
	Get(ctx context.Context, id uuid.UUID) (Artifact, error)
	// Search returns at most maxResults artifacts by descending similarity.
	// A non-positive maxResults uses the configured limit.
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
	// Versions returns a chapter's artifacts oldest first.
	Versions(ctx context.Context, chapterID string) ([]Artifact, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Summary], error)
	// Render returns the artifact body as an HTML fragment.
	Render(ctx context.Context, id uuid.UUID) (string, error)
}
