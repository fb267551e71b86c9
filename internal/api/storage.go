package api

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/JaimeStill/folio/pkg/handlers"
	"github.com/JaimeStill/folio/pkg/routes"
	"github.com/JaimeStill/folio/pkg/storage"
)

// replicaHandler exposes read-only access to the remote replica so operators
// can confirm what the mirrors have pushed.
type replicaHandler struct {
	store  storage.System
	logger *slog.Logger
}

func newReplicaHandler(store storage.System, logger *slog.Logger) *replicaHandler {
	return &replicaHandler{
		store:  store,
		logger: logger.With("handler", "replica"),
	}
}

func (h *replicaHandler) routes() routes.Group {
	return routes.Group{
		Prefix: "/replica",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.list},
			{Method: "GET", Pattern: "/{key...}", Handler: h.download},
		},
	}
}

func (h *replicaHandler) list(w http.ResponseWriter, r *http.Request) {
	objects, err := h.store.List(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, objects)
}

func (h *replicaHandler) download(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")

	body, err := h.store.Download(r.Context(), key)
	if err != nil {
		handlers.RespondError(
			w, h.logger,
			storage.MapHTTPStatus(err), err,
		)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", contentType(key))
	w.Header().Set(
		"Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", path.Base(key)),
	)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, body)
}

func contentType(key string) string {
	switch path.Ext(key) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
