// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/infrastructure"
	"github.com/JaimeStill/folio/internal/workflow"
	"github.com/JaimeStill/folio/pkg/middleware"
	"github.com/JaimeStill/folio/pkg/module"
	"github.com/JaimeStill/folio/pkg/threadlock"
)

// NewModule creates the API module with all domain handlers and middleware.
// Threads are serialized per id within this process.
func NewModule(cfg *config.Config, infra *infrastructure.Infrastructure) (*module.Module, error) {
	runtime := NewRuntime(cfg, infra)

	domain, err := NewDomain(
		infra.Lifecycle.Context(),
		runtime,
		workflow.WithLocker(threadlock.NewMemory()),
	)
	if err != nil {
		return nil, err
	}

	infra.Lifecycle.OnShutdown(func() {
		<-infra.Lifecycle.Context().Done()
		if err := domain.Close(); err != nil {
			runtime.Logger.Error("domain close failed", "error", err)
		}
	})

	mux := http.NewServeMux()
	if err := registerRoutes(mux, domain, runtime); err != nil {
		return nil, err
	}

	maxBody := cfg.API.MaxBodySizeBytes()

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.Logger(runtime.Infrastructure.Logger))
	m.Use(func(next http.Handler) http.Handler {
		return http.MaxBytesHandler(next, maxBody)
	})

	return m, nil
}
