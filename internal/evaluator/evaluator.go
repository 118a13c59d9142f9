// Package evaluator decides the single outcome for an attention event by
// applying the tenant's enabled policies in priority order.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/internal/policies"
)

const (
	// DefaultReason explains a needs_review decision when no policy decided.
	DefaultReason = "No decisive policy matched; defaulting to review."

	// FallbackReason explains a needs_review decision when evaluation failed.
	FallbackReason = "System error during evaluation"
)

// PolicySource lists a tenant's enabled policies in evaluation order.
type PolicySource interface {
	ListEnabled(ctx context.Context, orgID uuid.UUID) ([]policies.Policy, error)
}

// HistoryCounter counts recently ingested events for recurrence checks.
type HistoryCounter interface {
	CountRecent(ctx context.Context, orgID uuid.UUID, sourceID string, eventType events.EventType, since time.Time) (int, error)
}

// Recorder persists decisions.
type Recorder interface {
	Record(ctx context.Context, d decisions.Decision, e events.Event) (*decisions.Decision, error)
	RecordFallback(ctx context.Context, e events.Event, reason string) (*decisions.Decision, error)
}

// Evaluator applies policies to events and records the outcome.
type Evaluator struct {
	policies PolicySource
	history  HistoryCounter
	recorder Recorder
	clock    func() time.Time
	logger   *slog.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithClock replaces the wall clock used for quiet hours and recurrence windows.
func WithClock(clock func() time.Time) Option {
	return func(ev *Evaluator) {
		ev.clock = clock
	}
}

// New creates an Evaluator.
func New(
	source PolicySource,
	history HistoryCounter,
	recorder Recorder,
	logger *slog.Logger,
	opts ...Option,
) *Evaluator {
	ev := &Evaluator{
		policies: source,
		history:  history,
		recorder: recorder,
		clock:    time.Now,
		logger:   logger.With("system", "evaluator"),
	}
	for _, opt := range opts {
		opt(ev)
	}
	return ev
}

// Evaluate decides and records the outcome for e. It never fails: any error
// while deciding or recording yields a needs_review fallback decision. If even
// the fallback cannot be written, the returned decision is not persisted.
func (ev *Evaluator) Evaluate(ctx context.Context, e events.Event) decisions.Decision {
	d, err := ev.Decide(ctx, e)
	if err != nil {
		ev.logger.Error("evaluation failed",
			"event_id", e.ID,
			"organization_id", e.OrganizationID,
			"error", err,
		)
		return ev.fallback(ctx, e)
	}

	stored, err := ev.recorder.Record(ctx, d, e)
	if err != nil {
		ev.logger.Error("decision write failed",
			"event_id", e.ID,
			"decision", d.Outcome,
			"error", err,
		)
		return ev.fallback(ctx, e)
	}

	return *stored
}

// Decide computes the decision for e without recording it. Policies run
// strictly in the order returned by the source; the first decisive verdict wins.
func (ev *Evaluator) Decide(ctx context.Context, e events.Event) (decisions.Decision, error) {
	list, err := ev.policies.ListEnabled(ctx, e.OrganizationID)
	if err != nil {
		return decisions.Decision{}, fmt.Errorf("load policies: %w", err)
	}

	now := ev.clock().UTC()

	for _, p := range list {
		v, err := ev.apply(ctx, p, e, now)
		if err != nil {
			return decisions.Decision{}, err
		}
		if !v.Decisive {
			continue
		}

		id := p.ID
		return decisions.Decision{
			Outcome:    v.Outcome,
			Reason:     v.Reason,
			PolicyID:   &id,
			ProducedBy: decisions.BySystem,
		}, nil
	}

	return decisions.Decision{
		Outcome:    decisions.NeedsReview,
		Reason:     DefaultReason,
		ProducedBy: decisions.BySystem,
	}, nil
}

func (ev *Evaluator) apply(ctx context.Context, p policies.Policy, e events.Event, now time.Time) (v Verdict, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("policy %s panicked: %v", p.ID, r)
		}
	}()

	switch rule := p.Rule.(type) {
	case policies.QuietHours:
		return QuietHours(rule, e, now), nil
	case policies.Threshold:
		return Threshold(rule, e), nil
	case policies.RecurringSuppress:
		return RecurringSuppress(ctx, ev.history, rule, e, now)
	case policies.KeywordEscalate:
		return KeywordEscalate(rule, e), nil
	case policies.Custom:
		return pass, nil
	default:
		return pass, fmt.Errorf("policy %s: unsupported rule %T", p.ID, p.Rule)
	}
}

func (ev *Evaluator) fallback(ctx context.Context, e events.Event) decisions.Decision {
	stored, err := ev.recorder.RecordFallback(ctx, e, FallbackReason)
	if err != nil {
		ev.logger.Error("fallback decision write failed",
			"event_id", e.ID,
			"organization_id", e.OrganizationID,
			"error", err,
		)
		d := decisions.Fallback(FallbackReason)
		d.OrganizationID = e.OrganizationID
		d.AttentionEventID = e.ID
		return d
	}

	ev.logger.Warn("fallback decision recorded", "id", stored.ID, "event_id", e.ID)
	return *stored
}
