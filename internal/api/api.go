// Package api assembles the API module with all domain systems and route registration.
package api

import (
	"net/http"

	"github.com/JaimeStill/vigil/internal/config"
	"github.com/JaimeStill/vigil/pkg/middleware"
	"github.com/JaimeStill/vigil/pkg/module"
)

// NewModule creates the API module with all domain handlers and middleware.
func NewModule(cfg *config.Config, runtime *Runtime, domain *Domain) *module.Module {
	mux := http.NewServeMux()
	registerRoutes(mux, domain, runtime)

	m := module.New(cfg.API.BasePath, mux)
	m.Use(middleware.RequestID())
	m.Use(middleware.Logger(runtime.Logger))
	m.Use(middleware.CORS(&cfg.API.CORS))
	m.Use(middleware.MaxBody(cfg.API.MaxBodySizeBytes()))

	return m
}
