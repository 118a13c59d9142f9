package evaluator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/evaluator"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/policies"
)

type staticPolicies struct {
	list []policies.Policy
	err  error
}

func (s staticPolicies) ListEnabled(context.Context, uuid.UUID) ([]policies.Policy, error) {
	return s.list, s.err
}

type history struct {
	count int
	err   error
	calls int
	since time.Time
	panic bool
}

func (h *history) CountRecent(_ context.Context, _ uuid.UUID, _ string, _ events.EventType, since time.Time) (int, error) {
	h.calls++
	h.since = since
	if h.panic {
		panic("nil map")
	}
	return h.count, h.err
}

type memoryRecorder struct {
	recorded    []decisions.Decision
	recordErr   error
	fallbackErr error
}

func (m *memoryRecorder) Record(_ context.Context, d decisions.Decision, e events.Event) (*decisions.Decision, error) {
	if m.recordErr != nil {
		return nil, m.recordErr
	}
	d.ID = uuid.New()
	d.AttentionEventID = e.ID
	d.OrganizationID = e.OrganizationID
	m.recorded = append(m.recorded, d)
	return &d, nil
}

func (m *memoryRecorder) RecordFallback(ctx context.Context, e events.Event, reason string) (*decisions.Decision, error) {
	if m.fallbackErr != nil {
		return nil, m.fallbackErr
	}
	m.recordErr = nil
	return m.Record(ctx, decisions.Fallback(reason), e)
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func policy(priority int, rule policies.Rule) policies.Policy {
	return policies.Policy{ID: uuid.New(), Priority: priority, Rule: rule, IsEnabled: true}
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 10, 14, hour, 15, 0, 0, time.UTC)
	}
}

func newEvent(severity string) events.Event {
	return events.Event{
		ID:              uuid.New(),
		OrganizationID:  uuid.New(),
		EventType:       events.WebhookFailed,
		SourceID:        "hook-9",
		PayloadSnapshot: events.Payload{"severity": severity, "message": "delivery failed"},
	}
}

func TestDefaultsToReview(t *testing.T) {
	rec := &memoryRecorder{}
	ev := evaluator.New(staticPolicies{}, &history{}, rec, discard())

	d := ev.Evaluate(context.Background(), newEvent("info"))

	if d.Outcome != decisions.NeedsReview || d.Reason != evaluator.DefaultReason || d.PolicyID != nil {
		t.Errorf("default decision: got %+v", d)
	}
	if len(rec.recorded) != 1 {
		t.Errorf("recorded: got %d, want 1", len(rec.recorded))
	}
}

func TestPriorityOrdering(t *testing.T) {
	first := policy(1, policies.KeywordEscalate{Keywords: []string{"delivery"}})
	second := policy(2, policies.QuietHours{StartHour: 0, EndHour: 23})
	ev := evaluator.New(staticPolicies{list: []policies.Policy{first, second}}, &history{}, &memoryRecorder{}, discard(), evaluator.WithClock(at(3)))

	d := ev.Evaluate(context.Background(), newEvent("info"))

	if d.Outcome != decisions.Escalate {
		t.Errorf("outcome: got %s, want escalate", d.Outcome)
	}
	if d.PolicyID == nil || *d.PolicyID != first.ID {
		t.Errorf("policy id: got %v, want %s", d.PolicyID, first.ID)
	}
}

func TestQuietHoursCriticalOverride(t *testing.T) {
	list := []policies.Policy{
		policy(1, policies.QuietHours{StartHour: 22, EndHour: 8}),
		policy(2, policies.Threshold{}),
	}
	ev := evaluator.New(staticPolicies{list: list}, &history{}, &memoryRecorder{}, discard(), evaluator.WithClock(at(2)))

	critical := ev.Evaluate(context.Background(), newEvent("critical"))
	if critical.Outcome != decisions.Escalate || *critical.PolicyID != list[1].ID {
		t.Errorf("critical during quiet hours: got %s by %v, want escalate by threshold", critical.Outcome, critical.PolicyID)
	}

	info := ev.Evaluate(context.Background(), newEvent("info"))
	if info.Outcome != decisions.Suppress || *info.PolicyID != list[0].ID {
		t.Errorf("info during quiet hours: got %s by %v, want suppress by quiet hours", info.Outcome, info.PolicyID)
	}
}

func TestRecurringSuppression(t *testing.T) {
	rule := policies.RecurringSuppress{Count: 3, WindowHours: 24}
	now := at(12)

	tests := []struct {
		name  string
		count int
		want  decisions.Outcome
	}{
		{"second occurrence reviewed", 2, decisions.NeedsReview},
		{"third occurrence suppressed", 3, decisions.Suppress},
		{"fourth occurrence suppressed", 4, decisions.Suppress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &history{count: tt.count}
			ev := evaluator.New(staticPolicies{list: []policies.Policy{policy(1, rule)}}, h, &memoryRecorder{}, discard(), evaluator.WithClock(now))

			d := ev.Evaluate(context.Background(), newEvent("info"))
			if d.Outcome != tt.want {
				t.Errorf("outcome: got %s, want %s", d.Outcome, tt.want)
			}
			if want := now().Add(-24 * time.Hour); !h.since.Equal(want) {
				t.Errorf("since: got %v, want %v", h.since, want)
			}
		})
	}
}

func TestRecurringReason(t *testing.T) {
	h := &history{count: 5}
	rule := policies.RecurringSuppress{Count: 3, WindowHours: 6}
	ev := evaluator.New(staticPolicies{list: []policies.Policy{policy(1, rule)}}, h, &memoryRecorder{}, discard())

	d := ev.Evaluate(context.Background(), newEvent("info"))
	want := "Recurring noise: 5 occurrences of webhook_failed from hook-9 within 6h (threshold 3)"
	if d.Reason != want {
		t.Errorf("reason: got %q, want %q", d.Reason, want)
	}
}

func TestShortCircuit(t *testing.T) {
	h := &history{count: 100}
	list := []policies.Policy{
		policy(1, policies.Threshold{}),
		policy(2, policies.RecurringSuppress{Count: 1, WindowHours: 1}),
	}
	ev := evaluator.New(staticPolicies{list: list}, h, &memoryRecorder{}, discard())

	ev.Evaluate(context.Background(), newEvent("high"))
	if h.calls != 0 {
		t.Errorf("later policies ran after a decisive verdict: %d history queries", h.calls)
	}
}

func TestCustomAlwaysDefers(t *testing.T) {
	list := []policies.Policy{
		policy(1, policies.Custom{Params: map[string]any{"mode": "strict"}}),
		policy(2, policies.Threshold{}),
	}
	ev := evaluator.New(staticPolicies{list: list}, &history{}, &memoryRecorder{}, discard())

	if d := ev.Evaluate(context.Background(), newEvent("critical")); d.PolicyID == nil || *d.PolicyID != list[1].ID {
		t.Errorf("custom policy should defer: got %+v", d)
	}
}

func TestFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name     string
		source   staticPolicies
		history  *history
		recorder *memoryRecorder
	}{
		{
			"policy lookup fails",
			staticPolicies{err: errors.New("db down")},
			&history{},
			&memoryRecorder{},
		},
		{
			"history query fails",
			staticPolicies{list: []policies.Policy{policy(1, policies.RecurringSuppress{Count: 1, WindowHours: 1})}},
			&history{err: errors.New("timeout")},
			&memoryRecorder{},
		},
		{
			"predicate panics",
			staticPolicies{list: []policies.Policy{policy(1, policies.RecurringSuppress{Count: 1, WindowHours: 1})}},
			&history{panic: true},
			&memoryRecorder{},
		},
		{
			"decision write fails",
			staticPolicies{list: []policies.Policy{policy(1, policies.Threshold{})}},
			&history{},
			&memoryRecorder{recordErr: errors.New("write failed")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := evaluator.New(tt.source, tt.history, tt.recorder, discard())
			d := ev.Evaluate(context.Background(), newEvent("high"))

			if d.Outcome != decisions.NeedsReview || d.Reason != evaluator.FallbackReason {
				t.Errorf("fallback decision: got %+v", d)
			}
			if d.PolicyID != nil {
				t.Error("fallback decision must not name a policy")
			}
			if !d.Persisted() || len(tt.recorder.recorded) != 1 {
				t.Errorf("exactly one decision should be recorded, got %d", len(tt.recorder.recorded))
			}
		})
	}
}

func TestFallbackWriteFailure(t *testing.T) {
	rec := &memoryRecorder{recordErr: errors.New("down"), fallbackErr: errors.New("still down")}
	ev := evaluator.New(staticPolicies{}, &history{}, rec, discard())
	e := newEvent("info")

	d := ev.Evaluate(context.Background(), e)

	if d.Persisted() {
		t.Error("decision should report it was not persisted")
	}
	if d.AttentionEventID != e.ID || d.Outcome != decisions.NeedsReview {
		t.Errorf("unpersisted fallback: got %+v", d)
	}
}

func TestDecideIsDeterministic(t *testing.T) {
	list := []policies.Policy{
		policy(1, policies.QuietHours{StartHour: 22, EndHour: 8}),
		policy(2, policies.Threshold{}),
		policy(3, policies.RecurringSuppress{Count: 2, WindowHours: 1}),
	}
	ev := evaluator.New(staticPolicies{list: list}, &history{count: 2}, &memoryRecorder{}, discard(), evaluator.WithClock(at(23)))
	e := newEvent("critical")

	a, errA := ev.Decide(context.Background(), e)
	b, errB := ev.Decide(context.Background(), e)
	if errA != nil || errB != nil {
		t.Fatalf("decide errors: %v, %v", errA, errB)
	}
	if a.Outcome != b.Outcome || *a.PolicyID != *b.PolicyID || a.Reason != b.Reason {
		t.Errorf("decisions differ: %+v vs %+v", a, b)
	}
	if !strings.Contains(a.Reason, "critical") {
		t.Errorf("reason %q should cite the severity", a.Reason)
	}
}
