package formatting

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrParseFailed is returned when content cannot be parsed as JSON,
// either directly, from a markdown code fence, or from an embedded object.
var ErrParseFailed = errors.New("failed to parse response")

var jsonBlockRegex = regexp.MustCompile(`(?s)` + "```" + `(?:json)?\s*\n?(.*?)\n?` + "```")

// Parse attempts to unmarshal model output as JSON into T. It tries the
// content as-is, then the first fenced code block, then the outermost
// {...} span embedded in surrounding prose.
func Parse[T any](content string) (T, error) {
	var result T
	content = strings.TrimSpace(content)

	for _, candidate := range candidates(content) {
		if err := json.Unmarshal([]byte(candidate), &result); err == nil {
			return result, nil
		}
		var zero T
		result = zero
	}

	return result, fmt.Errorf("%w: %s", ErrParseFailed, Excerpt(content, 120))
}

func candidates(content string) []string {
	out := []string{content}

	if m := jsonBlockRegex.FindStringSubmatch(content); len(m) >= 2 {
		out = append(out, strings.TrimSpace(m[1]))
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		out = append(out, content[start:end+1])
	}

	return out
}

// Excerpt collapses whitespace in s and shortens it to at most width runes,
// marking truncation with "...".
func Excerpt(s string, width int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if width <= 0 || len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
