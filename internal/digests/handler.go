package digests

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/handlers"
	"github.com/JaimeStill/vigil/pkg/pagination"
	"github.com/JaimeStill/vigil/pkg/routes"
)

// Handler provides HTTP endpoints for compiling and reading digests.
type Handler struct {
	sys        System
	compiler   *Compiler
	logger     *slog.Logger
	pagination pagination.Config
}

// NewHandler creates a Handler with the given system, compiler, logger, and pagination config.
func NewHandler(sys System, compiler *Compiler, logger *slog.Logger, pagination pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		compiler:   compiler,
		logger:     logger.With("handler", "digests"),
		pagination: pagination,
	}
}

// Routes returns the route group definition for digest endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/digests",
		Routes: []routes.Route{
			{Method: "GET", Pattern: "", Handler: h.List},
			{Method: "GET", Pattern: "/{id}", Handler: h.Find},
			{Method: "GET", Pattern: "/{id}/archive", Handler: h.Archive},
			{Method: "POST", Pattern: "/compile", Handler: h.Compile},
		},
	}
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	page := pagination.PageRequestFromQuery(r.URL.Query(), h.pagination)
	filters := FiltersFromQuery(r.URL.Query())

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}

func (h *Handler) Find(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	d, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, d)
}

// Archive returns the archived summary text of a digest.
func (h *Handler) Archive(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrNotFound)
		return
	}

	d, err := h.sys.Find(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	data, err := h.compiler.Archived(r.Context(), d)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Compile runs the digest job for one tenant and window and returns 201 with the digest.
// A digest already compiled for the window returns 409.
func (h *Handler) Compile(w http.ResponseWriter, r *http.Request) {
	cmd, err := handlers.DecodeJSON[CompileCommand](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	d, err := h.compiler.Compile(r.Context(), cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, d)
}
