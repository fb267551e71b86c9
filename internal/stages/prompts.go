package stages

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/JaimeStill/folio/internal/workflow"
)

// Stage names a prompt-driven executor.
type Stage string

// Prompt-driven stages. The human gate has no prompt.
const (
	StageWriter   Stage = "writer"
	StageReviewer Stage = "reviewer"
	StageManager  Stage = "manager"
	StageQuality  Stage = "quality"
)

var promptStages = []Stage{StageWriter, StageReviewer, StageManager, StageQuality}

// ParseStage validates s as a prompt-driven stage.
func ParseStage(s string) (Stage, error) {
	v := Stage(strings.ToLower(strings.TrimSpace(s)))
	if !slices.Contains(promptStages, v) {
		return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
	}
	return v, nil
}

const writerPrompt = `You are an editor rewriting a chapter for publication.

Rewrite the chapter so that it:
- keeps the meaning and every plot point of the original
- varies sentence structure and sharpens descriptive language
- gives characters distinct voices
- keeps the mood and roughly the length of the original
{{- if .State.Instructions}}

Editorial instructions:
{{.State.Instructions}}
{{- end}}
{{- if .State.ReviewerFeedback}}

This is revision {{.State.IterationCount}}. Address the reviewer feedback below without drifting from the original.

Reviewer feedback:
{{.State.ReviewerFeedback}}
{{- end}}
{{- if .HumanFeedback}}

Human reviewer notes:
{{.HumanFeedback}}
{{- end}}

Original chapter:
{{.State.OriginalContent.Text}}

Current draft:
{{.State.CurrentContent}}

Respond with the rewritten chapter only.`

const reviewerPrompt = `You are a literary reviewer comparing a rewritten chapter against its original.

Original chapter:
{{.State.OriginalContent.Text}}

Rewritten chapter:
{{.State.CurrentContent}}

Provide:
1. An overall quality score from 1 to 10
2. Strengths of the rewrite
3. Areas to improve, with specific suggestions
4. Whether the core meaning is preserved`

const managerPrompt = `You coordinate an editorial pipeline and decide the next step for a chapter.

Options:
{{- range .Labels}}
- {{.}}
{{- end}}

Use human_review when a person should look at the chapter, quality_check or approved when it is ready, and revision_needed when the writer should try again. This is iteration {{.State.IterationCount}} of at most {{.MaxIterations}}.

Respond with exactly one option and nothing else.

Current draft:
{{.State.CurrentContent}}

Reviewer feedback:
{{.State.ReviewerFeedback}}`

const qualityPrompt = `You are performing the final quality check on a chapter before publication.

Check grammar and spelling, internal consistency, readability and completeness.

Respond with a JSON object matching this exact structure, no markdown fencing:

{
  "score": <number from 1 to 10>,
  "summary": "<brief quality report>"
}

Chapter:
{{.State.CurrentContent}}`

var defaultPrompts = map[Stage]string{
	StageWriter:   writerPrompt,
	StageReviewer: reviewerPrompt,
	StageManager:  managerPrompt,
	StageQuality:  qualityPrompt,
}

// PromptData is the value every prompt template executes against.
type PromptData struct {
	State         workflow.State
	HumanFeedback string
	MaxIterations int
	Labels        []string
}

// Prompts holds the parsed template for every stage.
type Prompts struct {
	templates map[Stage]*template.Template
}

// DefaultPrompts returns the built-in prompt set.
func DefaultPrompts() *Prompts {
	p, err := NewPrompts(nil)
	if err != nil {
		panic(err)
	}
	return p
}

// NewPrompts parses the built-in templates with overrides replacing any
// stage they name.
func NewPrompts(overrides map[Stage]string) (*Prompts, error) {
	p := &Prompts{templates: make(map[Stage]*template.Template, len(promptStages))}
	for _, stage := range promptStages {
		text := defaultPrompts[stage]
		if o, ok := overrides[stage]; ok && strings.TrimSpace(o) != "" {
			text = o
		}

		t, err := template.New(string(stage)).Option("missingkey=error").Parse(text)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidPrompt, stage, err)
		}
		p.templates[stage] = t
	}
	return p, nil
}

// LoadPrompts reads a YAML mapping of stage name to template text and
// layers it over the built-in set. An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	if path == "" {
		return DefaultPrompts(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}

	overrides := make(map[Stage]string, len(raw))
	for name, text := range raw {
		stage, err := ParseStage(name)
		if err != nil {
			return nil, fmt.Errorf("prompts file %s: %w", path, err)
		}
		overrides[stage] = text
	}

	return NewPrompts(overrides)
}

// Render executes the template for stage.
func (p *Prompts) Render(stage Stage, data PromptData) (string, error) {
	t, ok := p.templates[stage]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidStage, stage)
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidPrompt, stage, err)
	}
	return b.String(), nil
}
