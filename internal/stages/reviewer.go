package stages

import (
	"context"

	"github.com/JaimeStill/folio/internal/workflow"
)

// Reviewer returns the stage that critiques the current draft. Each
// successful pass advances the iteration count by exactly one. An error
// left by the writer is kept so the manager escalates it.
func Reviewer(rt *Runtime) workflow.Stage {
	return workflow.StageFunc(func(ctx context.Context, s workflow.State) workflow.Result {
		feedback, err := rt.generate(ctx, StageReviewer, s, rt.Config.Reviewer)
		if err != nil {
			return workflow.Continued(rt.failed(ctx, s, StageReviewer, StatusReviewerError, err))
		}

		next := s.Append(workflow.Message{
			Role: workflow.RoleAssistant,
			Text: "Reviewer: feedback received",
		})
		next.ReviewerFeedback = feedback
		next.IterationCount = s.IterationCount + 1
		next.Status = StatusReviewerCompleted

		rt.Logger.InfoContext(
			ctx, "reviewer stage complete",
			"thread_id", workflow.ThreadID(ctx),
			"iteration", next.IterationCount,
		)
		return workflow.Continued(next)
	})
}
