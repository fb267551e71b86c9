package workflow_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/JaimeStill/folio/internal/checkpoints"
	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/threadlock"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func ptr[T any](v T) *T { return &v }

// script drives the fake stages. Decisions are consumed in order; once
// exhausted the last one repeats.
type script struct {
	mu          sync.Mutex
	decisions   []workflow.Decision
	calls       map[workflow.Node]int
	failNext    map[workflow.Node]error
	panicOn     workflow.Node
	managerSeen []int
	writerSeen  []string
}

func newScript(decisions ...workflow.Decision) *script {
	return &script{
		decisions: decisions,
		calls:     make(map[workflow.Node]int),
		failNext:  make(map[workflow.Node]error),
	}
}

func (s *script) count(n workflow.Node) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[n]
}

func (s *script) enter(n workflow.Node) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[n]++
	if s.panicOn == n {
		s.panicOn = ""
		panic("stage exploded")
	}
	if err, ok := s.failNext[n]; ok {
		delete(s.failNext, n)
		return err
	}
	return nil
}

func (s *script) stages() workflow.Stages {
	return workflow.Stages{
		Writer: workflow.StageFunc(func(ctx context.Context, st workflow.State) workflow.Result {
			if err := s.enter(workflow.NodeWriter); err != nil {
				return workflow.Failed(err)
			}
			s.mu.Lock()
			s.writerSeen = append(s.writerSeen, st.Status)
			s.mu.Unlock()
			st.CurrentContent = st.CurrentContent + " (revised)"
			st.Status = "writer_completed"
			return workflow.Continued(st.Append(workflow.Message{Role: workflow.RoleAssistant, Text: "draft"}))
		}),
		Reviewer: workflow.StageFunc(func(ctx context.Context, st workflow.State) workflow.Result {
			if err := s.enter(workflow.NodeReviewer); err != nil {
				return workflow.Failed(err)
			}
			st.ReviewerFeedback = "tighten the prose"
			st.IterationCount++
			st.Status = "reviewer_completed"
			return workflow.Continued(st)
		}),
		Manager: workflow.StageFunc(func(ctx context.Context, st workflow.State) workflow.Result {
			if err := s.enter(workflow.NodeManager); err != nil {
				return workflow.Failed(err)
			}
			s.mu.Lock()
			s.managerSeen = append(s.managerSeen, st.IterationCount)
			d := s.decisions[len(s.decisions)-1]
			if len(s.decisions) > 1 {
				d = s.decisions[0]
				s.decisions = s.decisions[1:]
			}
			s.mu.Unlock()

			st.Decision = d
			if d == workflow.DecisionHumanReview {
				st.HumanFeedback = workflow.NoFeedback
				st.Verdict = workflow.VerdictPending
			}
			return workflow.Continued(st)
		}),
		Human: workflow.StageFunc(func(ctx context.Context, st workflow.State) workflow.Result {
			if err := s.enter(workflow.NodeHuman); err != nil {
				return workflow.Failed(err)
			}
			if st.AwaitingFeedback() {
				st.Status = "awaiting_human_feedback"
				return workflow.Suspended(st)
			}
			st.Status = st.Verdict.String()
			return workflow.Continued(st.Append(workflow.Message{Role: workflow.RoleHuman, Text: "Human: " + st.HumanFeedback}))
		}),
		Quality: workflow.StageFunc(func(ctx context.Context, st workflow.State) workflow.Result {
			if err := s.enter(workflow.NodeQuality); err != nil {
				return workflow.Failed(err)
			}
			score := 0.9
			st.QualityReport = &workflow.QualityReport{Score: &score, Summary: "solid"}
			st.Status = "completed"
			return workflow.Continued(st)
		}),
	}
}

func newEngine(t *testing.T, s *script, max int, opts ...workflow.Option) (*workflow.Engine, workflow.CheckpointStore) {
	t.Helper()
	graph, err := workflow.NewGraph(s.stages(), max)
	if err != nil {
		t.Fatalf("NewGraph() error = %v", err)
	}

	store := checkpoints.NewMemory()
	tick := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time {
		tick = tick.Add(time.Second)
		return tick
	}

	opts = append([]workflow.Option{workflow.WithClock(clock)}, opts...)
	return workflow.New(graph, store, discard(), opts...), store
}

func input(text string) workflow.StartInput {
	return workflow.StartInput{
		Content: workflow.Content{
			Text:   text,
			Source: workflow.Source{ChapterID: "ch-7", Title: "Chapter 7"},
		},
		Instructions: "keep it short",
	}
}

func TestStartApprovedRunsQualityAndEnds(t *testing.T) {
	s := newScript(workflow.DecisionApproved)
	engine, _ := newEngine(t, s, 5)

	cp, err := engine.Start(context.Background(), "t1", input("once upon a time"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !cp.Terminal() {
		t.Fatalf("PendingNode = %s, want end", cp.PendingNode)
	}
	if cp.State.QualityReport == nil {
		t.Fatal("QualityReport is nil after approval")
	}
	if cp.State.Status != "completed" {
		t.Errorf("Status = %q, want completed", cp.State.Status)
	}
	if cp.Step != 4 {
		t.Errorf("Step = %d, want 4", cp.Step)
	}
	if cp.State.IterationCount != 1 {
		t.Errorf("IterationCount = %d, want 1", cp.State.IterationCount)
	}
	if s.count(workflow.NodeHuman) != 0 {
		t.Errorf("human gate ran %d times, want 0", s.count(workflow.NodeHuman))
	}
	if cp.State.Instructions != "keep it short" || cp.State.ChapterID() != "ch-7" {
		t.Errorf("initial input not carried: %+v", cp.State)
	}
}

func TestStartInitialStatus(t *testing.T) {
	tests := []struct {
		name   string
		status string
		want   string
	}{
		{name: "scraper default", want: workflow.StatusScraped},
		{name: "caller supplied", status: "initialized", want: "initialized"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newScript(workflow.DecisionApproved)
			engine, _ := newEngine(t, s, 5)

			in := input("draft v0")
			in.Status = tt.status
			if _, err := engine.Start(context.Background(), "t1", in); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if len(s.writerSeen) != 1 || s.writerSeen[0] != tt.want {
				t.Errorf("writer saw status %v, want [%s]", s.writerSeen, tt.want)
			}
		})
	}
}

func TestQualityCheckDecisionEnds(t *testing.T) {
	s := newScript(workflow.DecisionQualityCheck)
	engine, _ := newEngine(t, s, 5)

	cp, err := engine.Start(context.Background(), "t1", input("text"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !cp.Terminal() || s.count(workflow.NodeQuality) != 1 {
		t.Errorf("terminal = %v, quality runs = %d", cp.Terminal(), s.count(workflow.NodeQuality))
	}
}

func TestSuspendAndResume(t *testing.T) {
	tests := []struct {
		name       string
		verdict    workflow.Verdict
		wantNode   workflow.Node
		wantStatus string
		quality    int
	}{
		{"approved", workflow.VerdictApproved, workflow.NodeEnd, "completed", 1},
		{"rejected", workflow.VerdictRejected, workflow.NodeEnd, "rejected", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s := newScript(workflow.DecisionHumanReview)
			engine, _ := newEngine(t, s, 5)

			cp, err := engine.Start(ctx, "t1", input("text"))
			if err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			if !cp.Suspended || cp.PendingNode != workflow.NodeHuman {
				t.Fatalf("after start: suspended %v node %s", cp.Suspended, cp.PendingNode)
			}
			if cp.State.Status != "awaiting_human_feedback" {
				t.Errorf("Status = %q", cp.State.Status)
			}

			again, err := engine.Drive(ctx, "t1")
			if err != nil {
				t.Fatalf("Drive() on suspended error = %v", err)
			}
			if again.Step != cp.Step || s.count(workflow.NodeHuman) != 1 {
				t.Errorf("Drive() on suspended thread advanced it")
			}

			done, err := engine.Resume(ctx, "t1", workflow.ResumePayload{Feedback: "looks good", Verdict: tt.verdict})
			if err != nil {
				t.Fatalf("Resume() error = %v", err)
			}
			if done.PendingNode != tt.wantNode || done.Suspended {
				t.Errorf("after resume: node %s suspended %v", done.PendingNode, done.Suspended)
			}
			if done.State.Status != tt.wantStatus {
				t.Errorf("Status = %q, want %q", done.State.Status, tt.wantStatus)
			}
			if s.count(workflow.NodeQuality) != tt.quality {
				t.Errorf("quality runs = %d, want %d", s.count(workflow.NodeQuality), tt.quality)
			}

			last := done.State.Messages[len(done.State.Messages)-1]
			if last.Role != workflow.RoleHuman || last.Text != "Human: looks good" {
				t.Errorf("last message = %+v", last)
			}

			if _, err := engine.Resume(ctx, "t1", workflow.ResumePayload{Feedback: "x", Verdict: workflow.VerdictApproved}); !errors.Is(err, workflow.ErrThreadTerminal) {
				t.Errorf("Resume() on ended thread error = %v, want ErrThreadTerminal", err)
			}
		})
	}
}

func TestResumeRevisionLoopsToWriter(t *testing.T) {
	ctx := context.Background()
	s := newScript(workflow.DecisionHumanReview, workflow.DecisionApproved)
	engine, _ := newEngine(t, s, 5)

	if _, err := engine.Start(ctx, "t1", input("text")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cp, err := engine.Resume(ctx, "t1", workflow.ResumePayload{Feedback: "more dialogue", Verdict: workflow.VerdictRevisionNeeded})
	if err != nil {
		t.Fatalf("Resume() error = %v", err)
	}

	if !cp.Terminal() {
		t.Fatalf("PendingNode = %s, want end", cp.PendingNode)
	}
	if s.count(workflow.NodeWriter) != 2 {
		t.Errorf("writer runs = %d, want 2", s.count(workflow.NodeWriter))
	}
	if cp.State.IterationCount != 2 {
		t.Errorf("IterationCount = %d, want 2", cp.State.IterationCount)
	}
}

func TestIterationCeilingForcesHuman(t *testing.T) {
	s := newScript(workflow.DecisionRevisionNeeded)
	engine, _ := newEngine(t, s, 3)

	cp, err := engine.Start(context.Background(), "t1", input("text"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if !cp.Suspended || cp.PendingNode != workflow.NodeHuman {
		t.Fatalf("suspended %v node %s, want suspended at human", cp.Suspended, cp.PendingNode)
	}
	if cp.State.IterationCount != 3 {
		t.Errorf("IterationCount = %d, want 3", cp.State.IterationCount)
	}
	if s.count(workflow.NodeWriter) != 3 {
		t.Errorf("writer runs = %d, want 3", s.count(workflow.NodeWriter))
	}

	prev := -1
	for _, n := range s.managerSeen {
		if n < prev {
			t.Errorf("iteration count decreased: %v", s.managerSeen)
		}
		prev = n
	}
}

func TestStageFailureDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	s := newScript(workflow.DecisionApproved)
	s.failNext[workflow.NodeReviewer] = errors.New("model unavailable")
	engine, store := newEngine(t, s, 5)

	_, err := engine.Start(ctx, "t1", input("text"))
	if !errors.Is(err, workflow.ErrStageFailed) {
		t.Fatalf("Start() error = %v, want ErrStageFailed", err)
	}

	cp, err := store.Get(ctx, "t1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if cp.PendingNode != workflow.NodeReviewer || cp.Step != 1 {
		t.Errorf("checkpoint = node %s step %d, want reviewer step 1", cp.PendingNode, cp.Step)
	}

	done, err := engine.Drive(ctx, "t1")
	if err != nil {
		t.Fatalf("Drive() retry error = %v", err)
	}
	if !done.Terminal() {
		t.Errorf("retry did not finish: node %s", done.PendingNode)
	}
}

func TestStagePanicBecomesFailure(t *testing.T) {
	ctx := context.Background()
	s := newScript(workflow.DecisionApproved)
	s.panicOn = workflow.NodeManager
	engine, store := newEngine(t, s, 5)

	_, err := engine.Start(ctx, "t1", input("text"))
	if !errors.Is(err, workflow.ErrStageFailed) {
		t.Fatalf("Start() error = %v, want ErrStageFailed", err)
	}

	cp, _ := store.Get(ctx, "t1")
	if cp.PendingNode != workflow.NodeManager {
		t.Errorf("PendingNode = %s, want manager_agent", cp.PendingNode)
	}
}

func TestStepLimit(t *testing.T) {
	s := newScript(workflow.DecisionApproved)
	engine, store := newEngine(t, s, 5, workflow.WithStepLimit(2))

	_, err := engine.Start(context.Background(), "t1", input("text"))
	if !errors.Is(err, workflow.ErrStepLimit) {
		t.Fatalf("Start() error = %v, want ErrStepLimit", err)
	}

	cp, _ := store.Get(context.Background(), "t1")
	if cp.Step != 2 || cp.PendingNode != workflow.NodeManager {
		t.Errorf("checkpoint = step %d node %s", cp.Step, cp.PendingNode)
	}
}

func TestStartValidation(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t, newScript(workflow.DecisionHumanReview), 5)

	if _, err := engine.Start(ctx, "dup", input("text")); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	tests := []struct {
		name     string
		threadID string
		in       workflow.StartInput
		want     error
	}{
		{"existing thread", "dup", input("text"), workflow.ErrThreadExists},
		{"empty content", "fresh", input("   "), workflow.ErrEmptyContent},
		{"invalid id", "../etc", input("text"), workflow.ErrInvalidThreadID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := engine.Start(ctx, tt.threadID, tt.in); !errors.Is(err, tt.want) {
				t.Errorf("Start() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStartGeneratesThreadID(t *testing.T) {
	engine, _ := newEngine(t, newScript(workflow.DecisionApproved), 5)

	cp, err := engine.Start(context.Background(), "", input("text"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if !workflow.ValidThreadID(cp.ThreadID) {
		t.Errorf("generated thread id %q is not valid", cp.ThreadID)
	}
}

func TestResumeRequiresSuspension(t *testing.T) {
	ctx := context.Background()
	s := newScript(workflow.DecisionApproved)
	s.failNext[workflow.NodeWriter] = errors.New("boom")
	engine, _ := newEngine(t, s, 5)

	engine.Start(ctx, "t1", input("text"))

	_, err := engine.Resume(ctx, "t1", workflow.ResumePayload{Feedback: "ok", Verdict: workflow.VerdictApproved})
	if !errors.Is(err, workflow.ErrNotSuspended) {
		t.Errorf("Resume() error = %v, want ErrNotSuspended", err)
	}

	if _, err := engine.Resume(ctx, "missing", workflow.ResumePayload{}); !errors.Is(err, workflow.ErrCheckpointNotFound) {
		t.Errorf("Resume(missing) error = %v, want ErrCheckpointNotFound", err)
	}
}

func TestUpdateState(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t, newScript(workflow.DecisionHumanReview), 5)

	start, err := engine.Start(ctx, "t1", input("text"))
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cp, err := engine.UpdateState(ctx, "t1", workflow.StateUpdate{
		CurrentContent: ptr("edited by hand"),
		Metadata:       map[string]string{"editor": "sam"},
		Messages:       []workflow.Message{{Role: workflow.RoleUser, Text: "note"}},
	})
	if err != nil {
		t.Fatalf("UpdateState() error = %v", err)
	}

	if cp.State.CurrentContent != "edited by hand" {
		t.Errorf("CurrentContent = %q", cp.State.CurrentContent)
	}
	if cp.State.Metadata["editor"] != "sam" {
		t.Errorf("Metadata = %v", cp.State.Metadata)
	}
	if len(cp.State.Messages) != len(start.State.Messages)+1 {
		t.Errorf("messages = %d, want %d", len(cp.State.Messages), len(start.State.Messages)+1)
	}
	if cp.PendingNode != start.PendingNode || cp.Step != start.Step || !cp.Suspended {
		t.Errorf("UpdateState moved the thread: %+v", cp)
	}

	_, err = engine.UpdateState(ctx, "t1", workflow.StateUpdate{IterationCount: ptr(0)})
	if !errors.Is(err, workflow.ErrInvalidUpdate) {
		t.Errorf("UpdateState() lowering iterations error = %v, want ErrInvalidUpdate", err)
	}

	state, err := engine.State(ctx, "t1")
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if state.IterationCount != 1 {
		t.Errorf("IterationCount = %d after rejected update, want 1", state.IterationCount)
	}
}

func TestList(t *testing.T) {
	ctx := context.Background()
	engine, _ := newEngine(t, newScript(workflow.DecisionHumanReview), 5)

	for _, id := range []string{"a", "b", "c"} {
		if _, err := engine.Start(ctx, id, input("text")); err != nil {
			t.Fatalf("Start(%s) error = %v", id, err)
		}
	}

	result, err := engine.List(ctx, pagination.PageRequest{Page: 1, PageSize: 2}, workflow.Filters{Suspended: ptr(true)})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if result.Total != 3 || result.TotalPages != 2 || len(result.Data) != 2 {
		t.Errorf("List() = total %d pages %d len %d", result.Total, result.TotalPages, len(result.Data))
	}
	if result.Data[0].ThreadID != "c" || result.Data[0].ChapterID != "ch-7" {
		t.Errorf("first summary = %+v", result.Data[0])
	}
}

func TestLockerSerializesThread(t *testing.T) {
	ctx := context.Background()
	locker := threadlock.NewMemory()
	engine, _ := newEngine(t, newScript(workflow.DecisionHumanReview), 5, workflow.WithLocker(locker))

	release, err := locker.Lock(ctx, "t1")
	if err != nil {
		t.Fatalf("Lock() error = %v", err)
	}

	blocked, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := engine.Start(blocked, "t1", input("text")); err == nil {
		t.Fatal("Start() succeeded while the thread was locked")
	}

	release()
	if _, err := engine.Start(ctx, "t1", input("text")); err != nil {
		t.Fatalf("Start() after release error = %v", err)
	}
}
