package api

import (
	"github.com/JaimeStill/vigil/internal/config"
	"github.com/JaimeStill/vigil/internal/infrastructure"
	"github.com/JaimeStill/vigil/pkg/pagination"
)

// Runtime extends Infrastructure with API-specific configuration.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Engine     config.EngineConfig
	Topics     Topics
}

// Topics names the broker topics the engine reads and writes.
type Topics struct {
	Events      string
	Escalations string
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    infra.Logger.With("module", "api"),
			Database:  infra.Database,
			Storage:   infra.Storage,
			Broker:    infra.Broker,
			Cache:     infra.Cache,
		},
		Pagination: cfg.API.Pagination,
		Engine:     cfg.Engine,
		Topics: Topics{
			Events:      cfg.Broker.EventsTopic,
			Escalations: cfg.Broker.EscalationsTopic,
		},
	}
}
