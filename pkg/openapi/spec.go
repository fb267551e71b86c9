package openapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
)

// Spec represents an OpenAPI 3.1 specification document.
type Spec struct {
	OpenAPI    string               `json:"openapi"`
	Info       *Info                `json:"info"`
	Servers    []*Server            `json:"servers,omitempty"`
	Paths      map[string]*PathItem `json:"paths"`
	Components *Components          `json:"components,omitempty"`
}

// NewSpec creates a Spec with the given title, version, and default components.
func NewSpec(title, version string) *Spec {
	return &Spec{
		OpenAPI: "3.1.0",
		Info: &Info{
			Title:   title,
			Version: version,
		},
		Components: NewComponents(),
		Paths:      make(map[string]*PathItem),
	}
}

// AddServer appends a server URL to the spec.
func (s *Spec) AddServer(url string) {
	s.Servers = append(s.Servers, &Server{URL: url})
}

// SetDescription sets the API description in the info object.
func (s *Spec) SetDescription(desc string) {
	s.Info.Description = desc
}

var pathParam = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(\.\.\.)?\}`)

// AddPattern documents a ServeMux pattern such as "GET /threads/{id}".
// Path parameters are declared from the pattern's wildcards.
func (s *Spec) AddPattern(pattern string) error {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok || !strings.HasPrefix(path, "/") {
		return fmt.Errorf("openapi: pattern %q has no method and path", pattern)
	}

	path = pathParam.ReplaceAllString(path, "{$1}")

	op := &Operation{
		Summary: method + " " + path,
		Responses: map[int]*Response{
			http.StatusOK:                  {Description: "Success"},
			http.StatusBadRequest:          ResponseRef("BadRequest"),
			http.StatusNotFound:            ResponseRef("NotFound"),
			http.StatusConflict:            ResponseRef("Conflict"),
			http.StatusInternalServerError: ResponseRef("ServerError"),
		},
	}

	if segment, _, _ := strings.Cut(strings.TrimPrefix(path, "/"), "/"); segment != "" {
		op.Tags = []string{segment}
	}

	for _, m := range pathParam.FindAllStringSubmatch(path, -1) {
		op.Parameters = append(op.Parameters, PathParam(m[1], m[1]))
	}

	item := s.Paths[path]
	if item == nil {
		item = &PathItem{}
		s.Paths[path] = item
	}

	switch method {
	case http.MethodGet:
		item.Get = op
	case http.MethodPost:
		op.RequestBody = RequestBodyJSON("Object", false)
		if strings.HasSuffix(path, "/search") {
			op.RequestBody = RequestBodyJSON("PageRequest", true)
		}
		item.Post = op
	case http.MethodPut:
		op.RequestBody = RequestBodyJSON("Object", true)
		item.Put = op
	case http.MethodPatch:
		op.RequestBody = RequestBodyJSON("Object", true)
		item.Patch = op
	case http.MethodDelete:
		item.Delete = op
	default:
		return fmt.Errorf("openapi: unsupported method %q", method)
	}
	return nil
}

// ServeSpec returns a handler that serves pre-serialized JSON spec bytes.
func ServeSpec(specBytes []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(specBytes)
	}
}
