package artifacts

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/folio/pkg/handlers"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/routes"
)

// Handler provides HTTP endpoints for artifact operations.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest is the body of POST /artifacts/search.
type SearchRequest struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

// NewHandler creates a Handler with the given system, logger, and pagination config.
func NewHandler(sys System, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "artifacts"),
		pagination: pagination,
	}
}

// Routes returns the artifact and chapter route groups.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Children: []routes.Group{
			{
				Prefix: "/artifacts",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "", Handler: h.List},
					{Method: "POST", Pattern: "/search", Handler: h.Search},
					{Method: "GET", Pattern: "/{id}", Handler: h.Find},
					{Method: "GET", Pattern: "/{id}/html", Handler: h.Render},
				},
			},
			{
				Prefix: "/chapters",
				Routes: []routes.Route{
					{Method: "GET", Pattern: "/{chapter}/versions", Handler: h.Versions},
				},
			},
		},
	}
}

// List returns a paginated list of artifact summaries with optional query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Find returns a single artifact by its UUID path parameter.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	a, err := h.sys.Get(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, a)
}

// Render returns the artifact body as HTML.
func (h *Handler) Render(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}

	html, err := h.sys.Render(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// Search runs a similarity search over stored artifacts.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[SearchRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	results, err := h.sys.Search(r.Context(), req.Query, req.MaxResults)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, results)
}

// Versions returns a chapter's revision history, oldest first.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.sys.Versions(r.Context(), r.PathValue("chapter"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, versions)
}
