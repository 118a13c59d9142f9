package main

import (
	"encoding/json"
	"net/http"

	"github.com/JaimeStill/vigil/internal/api"
	"github.com/JaimeStill/vigil/internal/config"
	"github.com/JaimeStill/vigil/internal/infrastructure"
	"github.com/JaimeStill/vigil/pkg/module"
)

type Modules struct {
	API     *module.Module
	Domain  *api.Domain
	Runtime *api.Runtime
}

func NewModules(infra *infrastructure.Infrastructure, cfg *config.Config) *Modules {
	runtime := api.NewRuntime(cfg, infra)
	domain := api.NewDomain(runtime)

	return &Modules{
		API:     api.NewModule(cfg, runtime, domain),
		Domain:  domain,
		Runtime: runtime,
	}
}

func (m *Modules) Mount(router *module.Router) {
	router.Mount(m.API)
}

// Start launches the engine's background workers.
func (m *Modules) Start() {
	m.Domain.Start(m.Runtime)
}

func buildRouter(infra *infrastructure.Infrastructure) *module.Router {
	router := module.NewRouter()

	router.HandleNative("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	router.HandleNative("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !infra.Lifecycle.Ready() || !infra.Database.Ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			json.NewEncoder(w).Encode(map[string]string{"status": "not ready"})
			return
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
	})

	return router
}
