package ingest_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/ingest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type memoryEvents struct {
	mu        sync.Mutex
	stored    map[uuid.UUID]events.Event
	createErr error
}

func newMemoryEvents() *memoryEvents {
	return &memoryEvents{stored: make(map[uuid.UUID]events.Event)}
}

func (m *memoryEvents) Create(_ context.Context, in events.Input) (*events.Event, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	e := events.Event{
		ID:              uuid.New(),
		OrganizationID:  in.OrganizationID,
		EventType:       in.EventType,
		SourceTable:     in.SourceTable,
		SourceID:        in.SourceID,
		OccurredAt:      in.OccurredAt,
		PayloadSnapshot: in.PayloadSnapshot,
		CreatedAt:       time.Now(),
	}
	m.stored[e.ID] = e
	return &e, nil
}

func (m *memoryEvents) Find(_ context.Context, id uuid.UUID) (*events.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.stored[id]
	if !ok {
		return nil, events.ErrNotFound
	}
	return &e, nil
}

// fakeEvaluator records a needs_review decision per event. While failures is
// positive each call returns an unpersisted decision.
type fakeEvaluator struct {
	mu       sync.Mutex
	byEvent  map[uuid.UUID]decisions.Decision
	failures int
	calls    int
}

func newFakeEvaluator() *fakeEvaluator {
	return &fakeEvaluator{byEvent: make(map[uuid.UUID]decisions.Decision)}
}

func (f *fakeEvaluator) Evaluate(_ context.Context, e events.Event) decisions.Decision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	d := decisions.Decision{AttentionEventID: e.ID, OrganizationID: e.OrganizationID, Outcome: decisions.NeedsReview, Reason: "r"}
	if f.failures > 0 {
		f.failures--
		return d
	}
	d.ID = uuid.New()
	f.byEvent[e.ID] = d
	return d
}

func (f *fakeEvaluator) FindByEvent(_ context.Context, eventID uuid.UUID) (*decisions.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.byEvent[eventID]
	if !ok {
		return nil, decisions.ErrNotFound
	}
	return &d, nil
}

func validInput() events.Input {
	return events.Input{
		OrganizationID:  uuid.New(),
		EventType:       events.CallCompleted,
		SourceTable:     "calls",
		SourceID:        "call-1",
		OccurredAt:      time.Date(2026, 10, 14, 1, 0, 0, 0, time.UTC),
		PayloadSnapshot: events.Payload{"severity": "info"},
	}
}

func TestSubmit(t *testing.T) {
	store, ev := newMemoryEvents(), newFakeEvaluator()
	sys := ingest.New(store, ev, ev, discard())

	receipt, err := sys.Submit(context.Background(), validInput())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if _, ok := store.stored[receipt.EventID]; !ok {
		t.Error("event should be stored")
	}
	if receipt.Decision.AttentionEventID != receipt.EventID || !receipt.Decision.Persisted() {
		t.Errorf("decision: got %+v", receipt.Decision)
	}
}

func TestSubmitInvalid(t *testing.T) {
	ev := newFakeEvaluator()
	sys := ingest.New(newMemoryEvents(), ev, ev, discard())
	in := validInput()
	in.EventType = ""

	if _, err := sys.Submit(context.Background(), in); !errors.Is(err, events.ErrInvalidInput) {
		t.Errorf("got %v, want ErrInvalidInput", err)
	}
	if ev.calls != 0 {
		t.Error("invalid events must not be evaluated")
	}
}

func TestSubmitUnrecorded(t *testing.T) {
	ev := newFakeEvaluator()
	ev.failures = 1
	sys := ingest.New(newMemoryEvents(), ev, ev, discard())

	receipt, err := sys.Submit(context.Background(), validInput())
	if !errors.Is(err, ingest.ErrUnrecorded) {
		t.Fatalf("got %v, want ErrUnrecorded", err)
	}
	if receipt.EventID == uuid.Nil {
		t.Error("event id should be returned with ErrUnrecorded")
	}
}

func TestReevaluate(t *testing.T) {
	store, ev := newMemoryEvents(), newFakeEvaluator()
	ev.failures = 1
	sys := ingest.New(store, ev, ev, discard())
	ctx := context.Background()

	first, _ := sys.Submit(ctx, validInput())

	second, err := sys.Reevaluate(ctx, first.EventID)
	if err != nil {
		t.Fatalf("reevaluate failed: %v", err)
	}
	if !second.Decision.Persisted() {
		t.Error("reevaluation should record a decision")
	}

	third, err := sys.Reevaluate(ctx, first.EventID)
	if err != nil {
		t.Fatalf("second reevaluate failed: %v", err)
	}
	if third.Decision.ID != second.Decision.ID {
		t.Error("an existing decision must be returned unchanged")
	}
	if ev.calls != 2 {
		t.Errorf("evaluations: got %d, want 2", ev.calls)
	}
}

func TestReevaluateUnknownEvent(t *testing.T) {
	ev := newFakeEvaluator()
	sys := ingest.New(newMemoryEvents(), ev, ev, discard())

	if _, err := sys.Reevaluate(context.Background(), uuid.New()); !errors.Is(err, events.ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}
