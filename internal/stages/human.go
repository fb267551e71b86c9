package stages

import (
	"context"

	"github.com/JaimeStill/folio/internal/workflow"
)

// HumanGate returns the suspension point. Without feedback and a verdict it
// suspends; once both are present it records the feedback and routes on the
// verdict.
func HumanGate(rt *Runtime) workflow.Stage {
	return workflow.StageFunc(func(ctx context.Context, s workflow.State) workflow.Result {
		if s.AwaitingFeedback() {
			next := s.Clone()
			next.Status = StatusAwaitingHuman
			rt.Logger.InfoContext(ctx, "awaiting human feedback", "thread_id", workflow.ThreadID(ctx))
			return workflow.Suspended(next)
		}

		next := s.Append(workflow.Message{
			Role: workflow.RoleHuman,
			Text: "Human: " + s.HumanFeedback,
		})
		next.Status = s.Verdict.String()

		rt.Logger.InfoContext(
			ctx, "human feedback received",
			"thread_id", workflow.ThreadID(ctx),
			"verdict", s.Verdict.String(),
		)
		return workflow.Continued(next)
	})
}
