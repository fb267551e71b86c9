// Package workflow drives editorial threads through the writer, reviewer,
// manager, human and quality stages, persisting a checkpoint after every
// step so a thread can suspend for human input and resume later.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/threadlock"
)

var threadIDPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidThreadID reports whether id is usable as a thread identifier.
func ValidThreadID(id string) bool {
	return threadIDPattern.MatchString(id)
}

type threadKey struct{}

// WithThreadID returns a context carrying the id of the thread being driven.
func WithThreadID(ctx context.Context, threadID string) context.Context {
	return context.WithValue(ctx, threadKey{}, threadID)
}

// ThreadID returns the thread id stored by WithThreadID, or "".
func ThreadID(ctx context.Context) string {
	id, _ := ctx.Value(threadKey{}).(string)
	return id
}

// StartInput seeds a new thread. Status defaults to StatusScraped.
type StartInput struct {
	Content      Content           `json:"content"`
	Instructions string            `json:"instructions,omitempty"`
	Status       string            `json:"status,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// ResumePayload carries the human reviewer's input into a suspended thread.
type ResumePayload struct {
	Feedback string  `json:"feedback"`
	Verdict  Verdict `json:"verdict"`
	Status   string  `json:"status,omitempty"`
}

// StateUpdate overwrites the set fields of a persisted state. Messages are
// appended and Metadata entries are merged.
type StateUpdate struct {
	CurrentContent   *string           `json:"current_content,omitempty"`
	Instructions     *string           `json:"instructions,omitempty"`
	ReviewerFeedback *string           `json:"reviewer_feedback,omitempty"`
	Decision         *Decision         `json:"decision,omitempty"`
	HumanFeedback    *string           `json:"human_feedback,omitempty"`
	Verdict          *Verdict          `json:"verdict,omitempty"`
	IterationCount   *int              `json:"iteration_count,omitempty"`
	Status           *string           `json:"status,omitempty"`
	Metadata         map[string]string `json:"metadata,omitempty"`
	Messages         []Message         `json:"messages,omitempty"`
}

// Apply returns s with u applied. Lowering IterationCount is rejected.
func (u StateUpdate) Apply(s State) (State, error) {
	next := s.Clone()

	if u.IterationCount != nil {
		if *u.IterationCount < s.IterationCount {
			return s, fmt.Errorf("%w: iteration_count cannot decrease from %d to %d",
				ErrInvalidUpdate, s.IterationCount, *u.IterationCount)
		}
		next.IterationCount = *u.IterationCount
	}
	if u.CurrentContent != nil {
		next.CurrentContent = *u.CurrentContent
	}
	if u.Instructions != nil {
		next.Instructions = *u.Instructions
	}
	if u.ReviewerFeedback != nil {
		next.ReviewerFeedback = *u.ReviewerFeedback
	}
	if u.Decision != nil {
		next.Decision = *u.Decision
	}
	if u.HumanFeedback != nil {
		next.HumanFeedback = *u.HumanFeedback
	}
	if u.Verdict != nil {
		next.Verdict = *u.Verdict
	}
	if u.Status != nil {
		next.Status = *u.Status
	}
	maps.Copy(next.Metadata, u.Metadata)
	next.Messages = append(next.Messages, u.Messages...)

	return next, nil
}

// Engine runs threads over a Graph and persists them in a CheckpointStore.
type Engine struct {
	graph     *Graph
	store     CheckpointStore
	locker    threadlock.Locker
	clock     func() time.Time
	stepLimit int
	logger    *slog.Logger
}

// Option customizes the engine instance.
type Option func(*Engine)

// WithLocker serializes writers per thread. Without one the caller must
// guarantee a single writer per thread.
func WithLocker(l threadlock.Locker) Option {
	return func(e *Engine) {
		e.locker = l
	}
}

// WithClock injects a deterministic clock (primarily for tests).
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithStepLimit caps the steps a single Drive may take. Zero disables the cap.
func WithStepLimit(n int) Option {
	return func(e *Engine) {
		e.stepLimit = n
	}
}

// New wires an engine to its graph and checkpoint store.
func New(graph *Graph, store CheckpointStore, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		graph:     graph,
		store:     store,
		clock:     time.Now,
		stepLimit: 64,
		logger:    logger.With("system", "workflow"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a thread and drives it until it suspends or ends. An empty
// threadID is replaced with a generated one.
func (e *Engine) Start(ctx context.Context, threadID string, in StartInput) (Checkpoint, error) {
	if strings.TrimSpace(in.Content.Text) == "" {
		return Checkpoint{}, ErrEmptyContent
	}
	if threadID == "" {
		threadID = uuid.NewString()
	}
	if !ValidThreadID(threadID) {
		return Checkpoint{}, fmt.Errorf("%w: %q", ErrInvalidThreadID, threadID)
	}

	return withLock(ctx, e, threadID, func() (Checkpoint, error) {
		exists, err := e.store.Exists(ctx, threadID)
		if err != nil {
			return Checkpoint{}, fmt.Errorf("check thread %s: %w", threadID, err)
		}
		if exists {
			return Checkpoint{}, fmt.Errorf("%w: %s", ErrThreadExists, threadID)
		}

		state := NewState(in.Content, in.Instructions)
		if in.Status != "" {
			state.Status = in.Status
		}
		maps.Copy(state.Metadata, in.Metadata)

		now := e.clock()
		cp := Checkpoint{
			ThreadID:    threadID,
			State:       state,
			PendingNode: NodeWriter,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := e.store.Put(ctx, cp); err != nil {
			return Checkpoint{}, fmt.Errorf("persist checkpoint: %w", err)
		}

		e.logger.Info("thread started", "thread_id", threadID, "chapter_id", state.ChapterID())
		return e.drive(ctx, cp)
	})
}

// Drive runs the thread from its pending node until it suspends, ends, or
// a stage fails. Driving a suspended or ended thread returns its checkpoint
// unchanged.
func (e *Engine) Drive(ctx context.Context, threadID string) (Checkpoint, error) {
	return withLock(ctx, e, threadID, func() (Checkpoint, error) {
		cp, err := e.store.Get(ctx, threadID)
		if err != nil {
			return Checkpoint{}, err
		}
		return e.drive(ctx, cp)
	})
}

// Resume injects human input into a suspended thread and drives it again
// from the node that suspended.
func (e *Engine) Resume(ctx context.Context, threadID string, p ResumePayload) (Checkpoint, error) {
	return withLock(ctx, e, threadID, func() (Checkpoint, error) {
		cp, err := e.store.Get(ctx, threadID)
		if err != nil {
			return Checkpoint{}, err
		}
		if cp.Terminal() {
			return cp, fmt.Errorf("%w: %s", ErrThreadTerminal, threadID)
		}
		if !cp.Suspended {
			return cp, fmt.Errorf("%w: %s", ErrNotSuspended, threadID)
		}

		next := cp
		next.State = cp.State.Clone()
		next.State.HumanFeedback = p.Feedback
		next.State.Verdict = p.Verdict
		if p.Status != "" {
			next.State.Status = p.Status
		}
		next.Suspended = false
		next.UpdatedAt = e.clock()

		if err := e.store.Put(ctx, next); err != nil {
			return cp, fmt.Errorf("persist checkpoint: %w", err)
		}

		e.logger.Info("thread resumed", "thread_id", threadID, "verdict", p.Verdict.String())
		return e.drive(ctx, next)
	})
}

// State returns the latest persisted state of a thread.
func (e *Engine) State(ctx context.Context, threadID string) (State, error) {
	cp, err := e.store.Get(ctx, threadID)
	if err != nil {
		return State{}, err
	}
	return cp.State, nil
}

// Checkpoint returns the latest checkpoint of a thread.
func (e *Engine) Checkpoint(ctx context.Context, threadID string) (Checkpoint, error) {
	return e.store.Get(ctx, threadID)
}

// UpdateState overwrites fields of the persisted state without moving the
// thread through the graph.
func (e *Engine) UpdateState(ctx context.Context, threadID string, u StateUpdate) (Checkpoint, error) {
	return withLock(ctx, e, threadID, func() (Checkpoint, error) {
		cp, err := e.store.Get(ctx, threadID)
		if err != nil {
			return Checkpoint{}, err
		}

		state, err := u.Apply(cp.State)
		if err != nil {
			return cp, err
		}

		next := cp
		next.State = state
		next.UpdatedAt = e.clock()
		if err := e.store.Put(ctx, next); err != nil {
			return cp, fmt.Errorf("persist checkpoint: %w", err)
		}
		return next, nil
	})
}

// List returns a page of thread summaries.
func (e *Engine) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Summary], error) {
	cps, total, err := e.store.List(ctx, page, filters)
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, len(cps))
	for i, cp := range cps {
		summaries[i] = cp.Summarize()
	}

	result := pagination.NewPageResult(summaries, total, page.Page, page.PageSize)
	return &result, nil
}

func (e *Engine) drive(ctx context.Context, cp Checkpoint) (Checkpoint, error) {
	logger := e.logger.With("thread_id", cp.ThreadID)
	ctx = WithThreadID(ctx, cp.ThreadID)

	for steps := 0; !cp.Suspended && !cp.Terminal(); steps++ {
		if e.stepLimit > 0 && steps >= e.stepLimit {
			return cp, fmt.Errorf("%w: %d steps at %s", ErrStepLimit, steps, cp.PendingNode)
		}
		if err := ctx.Err(); err != nil {
			return cp, err
		}

		node := cp.PendingNode
		res := e.run(ctx, node, cp.State.Clone())

		next := cp
		switch res.Outcome {
		case Fail:
			logger.Error("stage failed", "node", node, "error", res.Err)
			return cp, fmt.Errorf("%w: %s: %w", ErrStageFailed, node, res.Err)
		case Suspend:
			next.State = res.State
			next.Suspended = true
		default:
			next.State = res.State
			next.PendingNode = e.graph.Next(node, res.State)
		}
		next.Step = cp.Step + 1
		next.UpdatedAt = e.clock()

		if err := e.store.Put(ctx, next); err != nil {
			return cp, fmt.Errorf("persist checkpoint: %w", err)
		}

		logger.Debug(
			"step complete",
			"node", node,
			"outcome", res.Outcome.String(),
			"next", next.PendingNode,
			"status", next.State.Status,
			"iteration", next.State.IterationCount,
		)
		cp = next
	}

	switch {
	case cp.Terminal():
		logger.Info("thread ended", "status", cp.State.Status, "steps", cp.Step)
	case cp.Suspended:
		logger.Info("thread suspended", "node", cp.PendingNode, "status", cp.State.Status)
	}

	return cp, nil
}

func (e *Engine) run(ctx context.Context, node Node, s State) (res Result) {
	stage, err := e.graph.Stage(node)
	if err != nil {
		return Failed(err)
	}

	defer func() {
		if r := recover(); r != nil {
			res = Failed(fmt.Errorf("panic in %s: %v", node, r))
		}
	}()

	res = stage.Run(ctx, s)
	if res.Outcome == Fail && res.Err == nil {
		res.Err = errors.New("stage reported failure without an error")
	}
	return res
}

func withLock(ctx context.Context, e *Engine, threadID string, fn func() (Checkpoint, error)) (Checkpoint, error) {
	if e.locker == nil {
		return fn()
	}

	release, err := e.locker.Lock(ctx, threadID)
	if err != nil {
		return Checkpoint{}, err
	}
	defer release()

	return fn()
}
