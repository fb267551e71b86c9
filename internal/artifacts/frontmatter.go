package artifacts

import (
	"bytes"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const timeLayout = time.RFC3339Nano

type envelope struct {
	Folio header `yaml:"folio"`
}

type header struct {
	ID       string `yaml:"id"`
	Created  string `yaml:"created"`
	Metadata `yaml:",inline"`
}

// encode renders an artifact as YAML front matter followed by its body.
func encode(a Artifact) ([]byte, error) {
	env := envelope{Folio: header{
		ID:       a.ID.String(),
		Created:  a.Metadata.CreatedAt.UTC().Format(timeLayout),
		Metadata: a.Metadata,
	}}

	data, err := yaml.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(bytes.TrimRight(data, "\n"))
	buf.WriteString("\n---\n\n")
	buf.WriteString(a.Content)
	return buf.Bytes(), nil
}

// decode parses a document written by encode. Line endings are only
// normalized inside the header; the body is returned byte for byte.
func decode(content []byte) (Artifact, error) {
	rest, ok := cutDelimiter(content)
	if !ok {
		return Artifact{}, ErrMissingHeader
	}

	var head, body []byte
	for off := 0; ; {
		line, next, found := bytes.Cut(rest[off:], []byte("\n"))
		if bytes.Equal(bytes.TrimSuffix(line, []byte("\r")), []byte("---")) {
			head = rest[:off]
			if found {
				body = next
			}
			break
		}
		if !found {
			return Artifact{}, ErrMalformed
		}
		off += len(line) + 1
	}
	head = bytes.ReplaceAll(head, []byte("\r\n"), []byte("\n"))

	var env envelope
	if err := yaml.Unmarshal(head, &env); err != nil {
		return Artifact{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	id, err := uuid.Parse(env.Folio.ID)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: id: %w", ErrMalformed, err)
	}

	created, err := time.Parse(timeLayout, env.Folio.Created)
	if err != nil {
		return Artifact{}, fmt.Errorf("%w: created: %w", ErrMalformed, err)
	}

	meta := env.Folio.Metadata
	meta.CreatedAt = created.UTC()

	if b, ok := bytes.CutPrefix(body, []byte("\r\n")); ok {
		body = b
	} else {
		body = bytes.TrimPrefix(body, []byte("\n"))
	}
	return Artifact{ID: id, Content: string(body), Metadata: meta}, nil
}

func cutDelimiter(content []byte) ([]byte, bool) {
	if rest, ok := bytes.CutPrefix(content, []byte("---\n")); ok {
		return rest, true
	}
	return bytes.CutPrefix(content, []byte("---\r\n"))
}
