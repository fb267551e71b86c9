package stages

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/workflow"
)

// Writer returns the stage that rewrites the current draft and stores the
// result as a new chapter version. The version label is the iteration count
// at the time of writing.
func Writer(rt *Runtime) workflow.Stage {
	return workflow.StageFunc(func(ctx context.Context, s workflow.State) workflow.Result {
		text, err := rt.generate(ctx, StageWriter, s, rt.Config.Writer)
		if err != nil {
			return workflow.Continued(rt.failed(ctx, s, StageWriter, StatusWriterError, err))
		}

		meta := artifacts.Metadata{
			Type:      artifacts.TypeWriterOutput,
			Version:   "v" + strconv.Itoa(s.IterationCount),
			Status:    StatusWriterCompleted,
			ChapterID: s.ChapterID(),
			Iteration: s.IterationCount,
			SourceURL: s.OriginalContent.Source.URL,
			ThreadID:  workflow.ThreadID(ctx),
		}

		a, err := rt.Artifacts.Store(ctx, text, meta)
		switch {
		case errors.Is(err, artifacts.ErrReplicaSync):
			rt.Logger.WarnContext(ctx, "writer output stored locally only", "artifact_id", a.ID, "error", err)
		case err != nil:
			return workflow.Failed(fmt.Errorf("%w: %w", ErrStoreFailed, err))
		}

		next := s.Append(workflow.Message{
			Role: workflow.RoleAssistant,
			Text: fmt.Sprintf("Writer: produced %s of chapter %s", meta.Version, meta.ChapterID),
		})
		next.CurrentContent = text
		next.Status = StatusWriterCompleted
		next.Error = ""
		next.Metadata["last_artifact_id"] = a.ID.String()

		rt.Logger.InfoContext(
			ctx, "writer stage complete",
			"thread_id", meta.ThreadID,
			"artifact_id", a.ID,
			"version", meta.Version,
		)
		return workflow.Continued(next)
	})
}
