package workflow

import (
	"context"
	"fmt"
)

// Outcome tells the engine what to do after a stage returns.
type Outcome int

const (
	// Continue routes to the next node and keeps driving.
	Continue Outcome = iota
	// Suspend persists the state and waits for Resume at the same node.
	Suspend
	// Fail aborts the drive without persisting; the call can be retried.
	Fail
)

func (o Outcome) String() string {
	switch o {
	case Continue:
		return "continue"
	case Suspend:
		return "suspend"
	default:
		return "fail"
	}
}

// Result is what a stage hands back to the engine.
type Result struct {
	State   State
	Outcome Outcome
	Err     error
}

// Continued wraps s in a Continue result.
func Continued(s State) Result {
	return Result{State: s, Outcome: Continue}
}

// Suspended wraps s in a Suspend result.
func Suspended(s State) Result {
	return Result{State: s, Outcome: Suspend}
}

// Failed builds a Fail result carrying err.
func Failed(err error) Result {
	return Result{Outcome: Fail, Err: err}
}

// Stage executes one node of the graph.
type Stage interface {
	Run(ctx context.Context, s State) Result
}

// StageFunc adapts a function to the Stage interface.
type StageFunc func(ctx context.Context, s State) Result

// Run calls f(ctx, s).
func (f StageFunc) Run(ctx context.Context, s State) Result {
	return f(ctx, s)
}

// Stages binds an executor to every node.
type Stages struct {
	Writer   Stage
	Reviewer Stage
	Manager  Stage
	Human    Stage
	Quality  Stage
}

// Graph is the fixed editorial topology:
//
//	writer -> reviewer -> manager -(decision)-> human | quality | writer
//	human -(verdict)-> quality | writer | end
//	quality -> end
type Graph struct {
	stages        map[Node]Stage
	maxIterations int
}

// NewGraph validates that every node has an executor.
func NewGraph(s Stages, maxIterations int) (*Graph, error) {
	if maxIterations < 1 {
		return nil, fmt.Errorf("max iterations must be positive, got %d", maxIterations)
	}

	stages := map[Node]Stage{
		NodeWriter:   s.Writer,
		NodeReviewer: s.Reviewer,
		NodeManager:  s.Manager,
		NodeHuman:    s.Human,
		NodeQuality:  s.Quality,
	}
	for node, stage := range stages {
		if stage == nil {
			return nil, fmt.Errorf("%w: no stage for %s", ErrUnknownNode, node)
		}
	}

	return &Graph{stages: stages, maxIterations: maxIterations}, nil
}

// MaxIterations returns the writer/reviewer round-trip ceiling.
func (g *Graph) MaxIterations() int {
	return g.maxIterations
}

// Stage returns the executor for node.
func (g *Graph) Stage(node Node) (Stage, error) {
	stage, ok := g.stages[node]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownNode, node)
	}
	return stage, nil
}

// Next returns the node that follows from after a Continue outcome. A
// manager step over a state with an unresolved stage error always routes
// to the human gate.
func (g *Graph) Next(from Node, s State) Node {
	switch from {
	case NodeWriter:
		return NodeReviewer
	case NodeReviewer:
		return NodeManager
	case NodeManager:
		if s.Error != "" {
			return NodeHuman
		}
		return RouteDecision(s.Decision, s.IterationCount, g.maxIterations)
	case NodeHuman:
		return RouteVerdict(s.Verdict)
	default:
		return NodeEnd
	}
}

// RouteDecision maps a manager decision to the next node. Once iterations
// reach max the thread goes to a human regardless of the label.
func RouteDecision(d Decision, iterations, max int) Node {
	if iterations >= max {
		return NodeHuman
	}
	switch d {
	case DecisionQualityCheck, DecisionApproved:
		return NodeQuality
	case DecisionRevisionNeeded:
		return NodeWriter
	default:
		return NodeHuman
	}
}

// RouteVerdict maps a human verdict to the next node. A pending verdict
// returns to the gate, which suspends again.
func RouteVerdict(v Verdict) Node {
	switch v {
	case VerdictApproved:
		return NodeQuality
	case VerdictRevisionNeeded:
		return NodeWriter
	case VerdictRejected:
		return NodeEnd
	default:
		return NodeHuman
	}
}
