// Package ingest accepts events from producers, stores them, and runs
// evaluation so that every stored event resolves to one decision.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
)

// ErrUnrecorded reports that an event was stored but no decision could be
// persisted for it. The event id is still returned so the caller can
// request re-evaluation.
var ErrUnrecorded = errors.New("event stored but decision not recorded")

// EventStore is the part of the event store ingestion writes through.
type EventStore interface {
	Create(ctx context.Context, in events.Input) (*events.Event, error)
	Find(ctx context.Context, id uuid.UUID) (*events.Event, error)
}

// DecisionFinder looks up an event's existing decision.
type DecisionFinder interface {
	FindByEvent(ctx context.Context, eventID uuid.UUID) (*decisions.Decision, error)
}

// Evaluator decides and records the outcome for an event.
type Evaluator interface {
	Evaluate(ctx context.Context, e events.Event) decisions.Decision
}

// Receipt is returned to producers after submission.
type Receipt struct {
	EventID  uuid.UUID          `json:"id"`
	Decision decisions.Decision `json:"decision"`
}

// System defines the ingestion contract.
type System interface {
	Handler() *Handler

	// Submit stores the event and evaluates it synchronously.
	Submit(ctx context.Context, in events.Input) (Receipt, error)

	// Reevaluate evaluates a stored event that has no decision yet. An event
	// that already has a decision returns it unchanged.
	Reevaluate(ctx context.Context, eventID uuid.UUID) (Receipt, error)
}

type service struct {
	events    EventStore
	decisions DecisionFinder
	evaluator Evaluator
	logger    *slog.Logger
}

// New creates the ingestion service.
func New(store EventStore, finder DecisionFinder, ev Evaluator, logger *slog.Logger) System {
	return &service{
		events:    store,
		decisions: finder,
		evaluator: ev,
		logger:    logger.With("system", "ingest"),
	}
}

func (s *service) Handler() *Handler {
	return NewHandler(s, s.logger)
}

func (s *service) Submit(ctx context.Context, in events.Input) (Receipt, error) {
	e, err := s.events.Create(ctx, in)
	if err != nil {
		return Receipt{}, err
	}
	return s.evaluate(ctx, *e)
}

func (s *service) Reevaluate(ctx context.Context, eventID uuid.UUID) (Receipt, error) {
	existing, err := s.decisions.FindByEvent(ctx, eventID)
	if err == nil {
		return Receipt{EventID: eventID, Decision: *existing}, nil
	}
	if !errors.Is(err, decisions.ErrNotFound) {
		return Receipt{}, fmt.Errorf("check existing decision: %w", err)
	}

	e, err := s.events.Find(ctx, eventID)
	if err != nil {
		return Receipt{}, err
	}
	return s.evaluate(ctx, *e)
}

func (s *service) evaluate(ctx context.Context, e events.Event) (Receipt, error) {
	d := s.evaluator.Evaluate(ctx, e)
	receipt := Receipt{EventID: e.ID, Decision: d}

	if !d.Persisted() {
		s.logger.Error("event left without a decision", "event_id", e.ID, "organization_id", e.OrganizationID)
		return receipt, ErrUnrecorded
	}
	return receipt, nil
}

// MapHTTPStatus maps ingestion errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnrecorded):
		return http.StatusServiceUnavailable
	default:
		return events.MapHTTPStatus(err)
	}
}
