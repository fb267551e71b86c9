// Package generation provides the text generation capability used by the
// editorial stages, backed by any OpenAI-compatible chat completions API.
package generation

import (
	"context"
	"errors"
)

// ErrEmptyResponse indicates the provider returned no choices or no text.
var ErrEmptyResponse = errors.New("generation returned an empty response")

// Sampling controls a single generation call.
type Sampling struct {
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, s Sampling) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, s Sampling) (string, error)

// Generate calls f(ctx, prompt, s).
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, s Sampling) (string, error) {
	return f(ctx, prompt, s)
}
