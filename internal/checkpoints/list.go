package checkpoints

import (
	"cmp"
	"slices"
	"strings"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/query"
)

// paginate filters, sorts and windows checkpoints held in memory, matching
// the ordering the SQL backends produce.
func paginate(all []workflow.Checkpoint, page pagination.PageRequest, filters workflow.Filters) ([]workflow.Checkpoint, int) {
	matched := make([]workflow.Checkpoint, 0, len(all))
	for _, cp := range all {
		if !filters.Match(cp) {
			continue
		}
		if page.Search != nil && *page.Search != "" &&
			!strings.Contains(strings.ToLower(cp.ThreadID), strings.ToLower(*page.Search)) {
			continue
		}
		matched = append(matched, cp)
	}

	sortFields := make([]query.SortField, 0, len(page.Sort))
	for _, f := range page.Sort {
		if compareBy(f.Field) != nil {
			sortFields = append(sortFields, f)
		}
	}
	if len(sortFields) == 0 {
		sortFields = []query.SortField{workflow.DefaultSort}
	}

	slices.SortStableFunc(matched, func(a, b workflow.Checkpoint) int {
		for _, f := range sortFields {
			c := compareBy(f.Field)(a, b)
			if f.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ThreadID, b.ThreadID)
	})

	start, end := page.Window(len(matched))
	return matched[start:end], len(matched)
}

func compareBy(field string) func(a, b workflow.Checkpoint) int {
	switch field {
	case workflow.SortThreadID:
		return func(a, b workflow.Checkpoint) int { return cmp.Compare(a.ThreadID, b.ThreadID) }
	case workflow.SortStep:
		return func(a, b workflow.Checkpoint) int { return cmp.Compare(a.Step, b.Step) }
	case workflow.SortCreatedAt:
		return func(a, b workflow.Checkpoint) int { return a.CreatedAt.Compare(b.CreatedAt) }
	case workflow.SortUpdatedAt:
		return func(a, b workflow.Checkpoint) int { return a.UpdatedAt.Compare(b.UpdatedAt) }
	default:
		return nil
	}
}
