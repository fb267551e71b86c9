package workflow

import (
	"maps"
	"slices"
)

// NoFeedback marks HumanFeedback as not yet supplied.
const NoFeedback = "NO FEEDBACK"

// Message roles recorded in the conversation log.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleHuman     = "human"
)

// StatusScraped is the status a chapter arrives with from the scraper.
const StatusScraped = "scraped"

// Message is one entry in the append-only conversation log.
type Message struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Source describes where the original content came from.
type Source struct {
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	ChapterID string `json:"chapter_id,omitempty"`
}

// Content is the original text handed to a thread along with its provenance.
type Content struct {
	Text   string `json:"text"`
	Source Source `json:"source"`
}

// QualityReport is the final assessment produced before a thread ends.
// Score is nil when the assessment could not be parsed as structured output.
type QualityReport struct {
	Score   *float64 `json:"score,omitempty"`
	Summary string   `json:"summary"`
	Raw     string   `json:"raw,omitempty"`
}

// State is the value threaded through the graph. Stages receive a copy and
// return a complete replacement; the engine persists the authoritative one.
type State struct {
	OriginalContent  Content           `json:"original_content"`
	CurrentContent   string            `json:"current_content"`
	Instructions     string            `json:"instructions,omitempty"`
	Messages         []Message         `json:"messages"`
	ReviewerFeedback string            `json:"reviewer_feedback"`
	Decision         Decision          `json:"decision"`
	HumanFeedback    string            `json:"human_feedback"`
	Verdict          Verdict           `json:"verdict"`
	IterationCount   int               `json:"iteration_count"`
	Status           string            `json:"status"`
	Error            string            `json:"error,omitempty"`
	Metadata         map[string]string `json:"metadata"`
	QualityReport    *QualityReport    `json:"quality_report,omitempty"`
}

// NewState seeds the state for a fresh thread.
func NewState(original Content, instructions string) State {
	return State{
		OriginalContent: original,
		CurrentContent:  original.Text,
		Instructions:    instructions,
		Messages:        []Message{},
		HumanFeedback:   NoFeedback,
		Status:          StatusScraped,
		Metadata:        map[string]string{},
	}
}

// Clone returns a deep copy so callers cannot mutate shared slices or maps.
func (s State) Clone() State {
	c := s
	c.Messages = slices.Clone(s.Messages)
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	c.Metadata = maps.Clone(s.Metadata)
	if c.Metadata == nil {
		c.Metadata = map[string]string{}
	}
	if s.QualityReport != nil {
		qr := *s.QualityReport
		if qr.Score != nil {
			score := *qr.Score
			qr.Score = &score
		}
		c.QualityReport = &qr
	}
	return c
}

// Append returns a copy of s with msgs concatenated onto the log.
func (s State) Append(msgs ...Message) State {
	c := s.Clone()
	c.Messages = append(c.Messages, msgs...)
	return c
}

// AwaitingFeedback reports whether the human gate still needs input.
func (s State) AwaitingFeedback() bool {
	return s.HumanFeedback == "" || s.HumanFeedback == NoFeedback || s.Verdict == VerdictPending
}

// ChapterID returns the chapter the thread is editing.
func (s State) ChapterID() string {
	return s.OriginalContent.Source.ChapterID
}
