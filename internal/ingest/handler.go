package ingest

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/handlers"
	"github.com/JaimeStill/vigil/pkg/routes"
)

// Handler exposes event submission to HTTP producers.
type Handler struct {
	sys    System
	logger *slog.Logger
}

func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "ingest"),
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/events",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Submit},
			{Method: "POST", Pattern: "/{id}/evaluate", Handler: h.Reevaluate},
		},
	}
}

// Submit stores an event and returns 201 with its id and decision.
// When the decision could not be recorded the response is 503 and still
// carries the event id.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	in, err := handlers.DecodeJSON[events.Input](r)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	receipt, err := h.sys.Submit(r.Context(), in)
	if err != nil {
		h.respondFailure(w, receipt, err)
		return
	}

	handlers.RespondJSON(w, http.StatusCreated, receipt)
}

// Reevaluate resolves a stored event that is missing its decision.
func (h *Handler) Reevaluate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, events.ErrNotFound)
		return
	}

	receipt, err := h.sys.Reevaluate(r.Context(), id)
	if err != nil {
		h.respondFailure(w, receipt, err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, receipt)
}

func (h *Handler) respondFailure(w http.ResponseWriter, receipt Receipt, err error) {
	status := MapHTTPStatus(err)
	if receipt.EventID == uuid.Nil {
		handlers.RespondError(w, h.logger, status, err)
		return
	}

	h.logger.Error("request failed", "status", status, "event_id", receipt.EventID, "error", err)
	handlers.RespondJSON(w, status, map[string]string{
		"error": err.Error(),
		"id":    receipt.EventID.String(),
	})
}
