package workflow

import (
	"fmt"
	"strings"
)

// Node names a position in the graph.
type Node string

// Graph nodes. NodeEnd is terminal.
const (
	NodeWriter   Node = "writer_agent"
	NodeReviewer Node = "reviewer_agent"
	NodeManager  Node = "manager_agent"
	NodeHuman    Node = "human_review"
	NodeQuality  Node = "quality_check"
	NodeEnd      Node = "end"
)

// Nodes lists every executable node in graph order.
var Nodes = []Node{NodeWriter, NodeReviewer, NodeManager, NodeHuman, NodeQuality}

// Decision is the manager's routing label. The zero value routes to a human.
type Decision int

const (
	DecisionHumanReview Decision = iota
	DecisionQualityCheck
	DecisionRevisionNeeded
	DecisionApproved
)

var decisionLabels = [...]string{
	DecisionHumanReview:    "human_review",
	DecisionQualityCheck:   "quality_check",
	DecisionRevisionNeeded: "revision_needed",
	DecisionApproved:       "approved",
}

func (d Decision) String() string {
	if d < 0 || int(d) >= len(decisionLabels) {
		return decisionLabels[DecisionHumanReview]
	}
	return decisionLabels[d]
}

// ParseDecision matches s against the decision labels, ignoring case and
// surrounding whitespace.
func ParseDecision(s string) (Decision, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, label := range decisionLabels {
		if s == label {
			return Decision(i), true
		}
	}
	return DecisionHumanReview, false
}

// DecisionLabels returns the labels in declaration order.
func DecisionLabels() []string {
	return decisionLabels[:]
}

func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Decision) UnmarshalText(b []byte) error {
	v, ok := ParseDecision(string(b))
	if !ok {
		return fmt.Errorf("unknown decision %q", b)
	}
	*d = v
	return nil
}

// Verdict is the human reviewer's routing label. The zero value means no
// verdict has been given yet.
type Verdict int

const (
	VerdictPending Verdict = iota
	VerdictApproved
	VerdictRejected
	VerdictRevisionNeeded
)

var verdictLabels = [...]string{
	VerdictPending:        "pending",
	VerdictApproved:       "approved",
	VerdictRejected:       "rejected",
	VerdictRevisionNeeded: "revision_needed",
}

func (v Verdict) String() string {
	if v < 0 || int(v) >= len(verdictLabels) {
		return verdictLabels[VerdictPending]
	}
	return verdictLabels[v]
}

// VerdictLabels returns the labels in declaration order.
func VerdictLabels() []string {
	return verdictLabels[:]
}

// ParseVerdict matches s against the verdict labels, ignoring case and
// surrounding whitespace.
func ParseVerdict(s string) (Verdict, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, label := range verdictLabels {
		if s == label {
			return Verdict(i), true
		}
	}
	return VerdictPending, false
}

func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

func (v *Verdict) UnmarshalText(b []byte) error {
	parsed, ok := ParseVerdict(string(b))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidVerdict, b)
	}
	*v = parsed
	return nil
}
