package stages

import (
	"context"
	"fmt"
	"strings"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/formatting"
)

type qualityResponse struct {
	Score   *float64 `json:"score"`
	Summary string   `json:"summary"`
}

// Quality returns the final assessment stage. Output that does not parse as
// the requested JSON is kept verbatim as the report summary.
func Quality(rt *Runtime) workflow.Stage {
	return workflow.StageFunc(func(ctx context.Context, s workflow.State) workflow.Result {
		raw, err := rt.generate(ctx, StageQuality, s, rt.Config.Quality)
		if err != nil {
			next := rt.failed(ctx, s, StageQuality, StatusQualityError, err)
			next.QualityReport = &workflow.QualityReport{
				Summary: fmt.Sprintf("quality check could not run: %v", err),
			}
			return workflow.Continued(next)
		}

		next := s.Append(workflow.Message{
			Role: workflow.RoleAssistant,
			Text: "Quality: check completed",
		})
		next.QualityReport = parseReport(raw)
		next.Status = StatusCompleted
		next.Error = ""

		rt.Logger.InfoContext(
			ctx, "quality stage complete",
			"thread_id", workflow.ThreadID(ctx),
			"scored", next.QualityReport.Score != nil,
		)
		return workflow.Continued(next)
	})
}

func parseReport(raw string) *workflow.QualityReport {
	parsed, err := formatting.Parse[qualityResponse](raw)
	if err != nil || strings.TrimSpace(parsed.Summary) == "" {
		return &workflow.QualityReport{Summary: strings.TrimSpace(raw), Raw: raw}
	}
	return &workflow.QualityReport{Score: parsed.Score, Summary: parsed.Summary, Raw: raw}
}
