package api

import (
	"net/http"

	"github.com/JaimeStill/vigil/internal/digests"
	"github.com/JaimeStill/vigil/pkg/routes"
)

func registerRoutes(mux *http.ServeMux, domain *Domain, runtime *Runtime) {
	digestsHandler := digests.NewHandler(
		domain.Digests,
		domain.Compiler,
		runtime.Logger,
		runtime.Pagination,
	)

	routes.Register(
		mux,
		domain.Events.Handler().Routes(),
		domain.Ingest.Handler().Routes(),
		domain.Policies.Handler().Routes(),
		domain.Decisions.Handler().Routes(),
		digestsHandler.Routes(),
	)
}
