package api

import (
	"fmt"
	"net/http"

	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/openapi"
	"github.com/JaimeStill/folio/pkg/routes"
)

func registerRoutes(
	mux *http.ServeMux,
	domain *Domain,
	runtime *Runtime,
) error {
	groups := []routes.Group{
		workflow.NewHandler(domain.Engine, runtime.Logger, runtime.Pagination).Routes(),
		domain.Artifacts.Handler().Routes(),
	}
	if runtime.Storage != nil {
		groups = append(groups, newReplicaHandler(runtime.Storage, runtime.Logger).routes())
	}

	patterns := routes.Register(mux, groups...)

	spec, err := buildSpec(runtime, patterns)
	if err != nil {
		return err
	}
	mux.HandleFunc("GET /openapi.json", openapi.ServeSpec(spec))

	return nil
}

func buildSpec(runtime *Runtime, patterns []string) ([]byte, error) {
	cfg := runtime.Config

	spec := openapi.NewSpec(cfg.API.OpenAPI.Title, cfg.Version)
	spec.SetDescription(cfg.API.OpenAPI.Description)
	spec.AddServer(cfg.API.BasePath)

	for _, p := range patterns {
		if err := spec.AddPattern(p); err != nil {
			return nil, fmt.Errorf("document route: %w", err)
		}
	}

	return openapi.MarshalJSON(spec)
}
