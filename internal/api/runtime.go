package api

import (
	"github.com/JaimeStill/folio/internal/config"
	"github.com/JaimeStill/folio/internal/infrastructure"
	"github.com/JaimeStill/folio/pkg/pagination"
)

// Runtime extends Infrastructure with the configuration domain systems read.
type Runtime struct {
	*infrastructure.Infrastructure
	Config     *config.Config
	Pagination pagination.Config
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Storage:   infra.Storage,
			Database:  infra.Database,
			Generator: infra.Generator,
		},
		Config:     cfg,
		Pagination: cfg.API.Pagination,
	}
}
