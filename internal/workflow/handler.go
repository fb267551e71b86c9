package workflow

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/folio/pkg/handlers"
	"github.com/JaimeStill/folio/pkg/pagination"
	"github.com/JaimeStill/folio/pkg/routes"
)

// Handler provides HTTP endpoints for thread operations.
type Handler struct {
	engine     *Engine
	logger     *slog.Logger
	pagination pagination.Config
}

// StartRequest is the body of POST /threads.
type StartRequest struct {
	ThreadID string `json:"thread_id,omitempty"`
	StartInput
}

// SearchRequest combines pagination and filter criteria for the search endpoint.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

// NewHandler creates a Handler over engine.
func NewHandler(engine *Engine, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		engine:     engine,
		logger:     logger.With("handler", "threads"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for thread endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/threads",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "POST", Pattern: "", Handler: h.Start},
			{Method: "POST", Pattern: "/search", Handler: h.Search},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/state", Handler: h.State},
			{Method: "PATCH", Pattern: "/{id}/state", Handler: h.UpdateState},
			{Method: "POST", Pattern: "/{id}/drive", Handler: h.Drive},
			{Method: "POST", Pattern: "/{id}/resume", Handler: h.Resume},
		},
	}
}

// List returns a paginated list of thread summaries with optional query filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.engine.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Search accepts a JSON body with pagination and filter criteria.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[SearchRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	req.PageRequest.Normalize(h.pagination)

	result, err := h.engine.List(r.Context(), req.PageRequest, req.Filters)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

// Start creates a thread and drives it until it suspends or ends.
func (h *Handler) Start(w http.ResponseWriter, r *http.Request) {
	req, err := handlers.DecodeJSON[StartRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cp, err := h.engine.Start(r.Context(), req.ThreadID, req.StartInput)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, cp)
}

// Find returns the latest checkpoint of a thread.
func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	cp, err := h.engine.Checkpoint(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cp)
}

// State returns the latest state of a thread.
func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	state, err := h.engine.State(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, state)
}

// UpdateState applies a partial state update.
func (h *Handler) UpdateState(w http.ResponseWriter, r *http.Request) {
	update, err := handlers.DecodeJSON[StateUpdate](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cp, err := h.engine.UpdateState(r.Context(), r.PathValue("id"), update)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cp)
}

// Drive advances a thread from its pending node.
func (h *Handler) Drive(w http.ResponseWriter, r *http.Request) {
	cp, err := h.engine.Drive(r.Context(), r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cp)
}

// Resume delivers human feedback and a verdict to a suspended thread.
func (h *Handler) Resume(w http.ResponseWriter, r *http.Request) {
	payload, err := handlers.DecodeJSON[ResumePayload](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	cp, err := h.engine.Resume(r.Context(), r.PathValue("id"), payload)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, cp)
}
