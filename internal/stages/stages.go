// Package stages implements the executors bound to each node of the
// editorial graph. Generation failures are recorded on the state rather
// than returned, so the engine always routes onward with an explanation.
package stages

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JaimeStill/folio/internal/artifacts"
	"github.com/JaimeStill/folio/internal/generation"
	"github.com/JaimeStill/folio/internal/workflow"
)

// Status labels written by the executors. They are display strings only.
const (
	StatusWriterCompleted   = "writer_completed"
	StatusWriterError       = "writer_error"
	StatusReviewerCompleted = "reviewer_completed"
	StatusReviewerError     = "reviewer_error"
	StatusManagerError      = "manager_error"
	StatusAwaitingHuman     = "awaiting_human_feedback"
	StatusCompleted         = "completed"
	StatusQualityError      = "quality_error"
)

// ArtifactStore is the part of the content store the writer needs.
type ArtifactStore interface {
	Store(ctx context.Context, content string, meta artifacts.Metadata) (artifacts.Artifact, error)
}

// Runtime carries the dependencies shared by every executor.
type Runtime struct {
	Generator generation.Generator
	Artifacts ArtifactStore
	Prompts   *Prompts
	Config    Config
	// Timeout bounds each generation call. Zero leaves the call unbounded.
	Timeout time.Duration
	Logger  *slog.Logger
}

// New binds an executor to every node of the graph.
func New(rt *Runtime) workflow.Stages {
	if rt.Prompts == nil {
		rt.Prompts = DefaultPrompts()
	}
	rt.Logger = rt.Logger.With("system", "stages")

	return workflow.Stages{
		Writer:   Writer(rt),
		Reviewer: Reviewer(rt),
		Manager:  Manager(rt),
		Human:    HumanGate(rt),
		Quality:  Quality(rt),
	}
}

func (rt *Runtime) sampling(s Sampling) generation.Sampling {
	out := generation.Sampling{MaxTokens: s.MaxTokens}
	if s.Temperature != nil {
		out.Temperature = *s.Temperature
	}
	return out
}

func (rt *Runtime) data(s workflow.State) PromptData {
	d := PromptData{
		State:         s,
		MaxIterations: rt.Config.MaxIterations,
		Labels:        workflow.DecisionLabels(),
	}
	if !s.AwaitingFeedback() {
		d.HumanFeedback = s.HumanFeedback
	}
	return d
}

// generate renders the stage prompt and calls the generator under the
// configured timeout.
func (rt *Runtime) generate(ctx context.Context, stage Stage, s workflow.State, sampling Sampling) (string, error) {
	prompt, err := rt.Prompts.Render(stage, rt.data(s))
	if err != nil {
		return "", err
	}

	if rt.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, rt.Timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := rt.Generator.Generate(ctx, prompt, rt.sampling(sampling))
	if err != nil {
		return "", fmt.Errorf("%s generation: %w", stage, err)
	}

	rt.Logger.DebugContext(
		ctx, "generation complete",
		"stage", stage,
		"thread_id", workflow.ThreadID(ctx),
		"duration", time.Since(start),
		"chars", len(text),
	)
	return text, nil
}

// failed records a generation failure on s.
func (rt *Runtime) failed(ctx context.Context, s workflow.State, stage Stage, status string, err error) workflow.State {
	rt.Logger.WarnContext(
		ctx, "stage generation failed",
		"stage", stage,
		"thread_id", workflow.ThreadID(ctx),
		"error", err,
	)

	next := s.Append(workflow.Message{
		Role: workflow.RoleAssistant,
		Text: fmt.Sprintf("%s: error: %v", label(stage), err),
	})
	next.Status = status
	next.Error = err.Error()
	return next
}

func label(stage Stage) string {
	switch stage {
	case StageWriter:
		return "Writer"
	case StageReviewer:
		return "Reviewer"
	case StageManager:
		return "Manager"
	case StageQuality:
		return "Quality"
	default:
		return string(stage)
	}
}
