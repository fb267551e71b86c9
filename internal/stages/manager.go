package stages

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/JaimeStill/folio/internal/workflow"
)

var decisionPatterns = func() []*regexp.Regexp {
	labels := workflow.DecisionLabels()
	out := make([]*regexp.Regexp, len(labels))
	for i, l := range labels {
		word := strings.ReplaceAll(regexp.QuoteMeta(l), "_", `[ _-]`)
		out[i] = regexp.MustCompile(`(^|[^a-z0-9_])` + word + `([^a-z0-9_]|$)`)
	}
	return out
}()

// Decide maps raw manager output to a routing label. Output naming no
// label, or more than one, yields human_review, as does reaching the
// iteration ceiling.
func Decide(raw string, iterations, max int) workflow.Decision {
	if iterations >= max {
		return workflow.DecisionHumanReview
	}

	text := strings.ToLower(raw)
	found := -1
	for i, p := range decisionPatterns {
		if !p.MatchString(text) {
			continue
		}
		if found >= 0 {
			return workflow.DecisionHumanReview
		}
		found = i
	}
	if found < 0 {
		return workflow.DecisionHumanReview
	}
	return workflow.Decision(found)
}

// Manager returns the decision stage. Routing to a human resets the
// feedback sentinel so the gate suspends until new input arrives. A state
// carrying an earlier stage error goes to a human without a model call.
func Manager(rt *Runtime) workflow.Stage {
	return workflow.StageFunc(func(ctx context.Context, s workflow.State) workflow.Result {
		if s.Error != "" {
			next := s.Append(workflow.Message{
				Role: workflow.RoleAssistant,
				Text: "Manager: escalating to human review after stage error",
			})
			next.Status = "manager_" + workflow.DecisionHumanReview.String()

			rt.Logger.WarnContext(
				ctx, "stage error escalated to human review",
				"thread_id", workflow.ThreadID(ctx),
				"error", s.Error,
			)
			return workflow.Continued(awaitHuman(next))
		}

		raw, err := rt.generate(ctx, StageManager, s, rt.Config.Manager)
		if err != nil {
			next := rt.failed(ctx, s, StageManager, StatusManagerError, err)
			return workflow.Continued(awaitHuman(next))
		}

		d := Decide(raw, s.IterationCount, rt.Config.MaxIterations)

		next := s.Append(workflow.Message{
			Role: workflow.RoleAssistant,
			Text: fmt.Sprintf("Manager: decision %s", d),
		})
		next.Decision = d
		next.Status = "manager_" + d.String()
		next.Error = ""
		if d == workflow.DecisionHumanReview {
			next = awaitHuman(next)
		}

		rt.Logger.InfoContext(
			ctx, "manager stage complete",
			"thread_id", workflow.ThreadID(ctx),
			"decision", d.String(),
			"iteration", s.IterationCount,
			"max_iterations", rt.Config.MaxIterations,
		)
		return workflow.Continued(next)
	})
}

func awaitHuman(s workflow.State) workflow.State {
	s.Decision = workflow.DecisionHumanReview
	s.HumanFeedback = workflow.NoFeedback
	s.Verdict = workflow.VerdictPending
	return s
}
