package decisions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/JaimeStill/vigil/internal/events"
)

// Escalator receives newly recorded escalate decisions. Implementations must
// return promptly; delivery happens out of band.
type Escalator interface {
	Escalate(d Decision, e events.Event)
}

// Recorder persists decisions and triggers escalation for new escalate verdicts.
type Recorder struct {
	store     Store
	escalator Escalator
	logger    *slog.Logger
}

// NewRecorder creates a Recorder. A nil escalator disables escalation.
func NewRecorder(store Store, escalator Escalator, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:     store,
		escalator: escalator,
		logger:    logger.With("system", "recorder"),
	}
}

// Record stamps d with the event's tenant, id, and provenance and persists it.
// When the event already has a decision, the existing one is returned and no
// escalation is triggered.
func (r *Recorder) Record(ctx context.Context, d Decision, e events.Event) (*Decision, error) {
	d.OrganizationID = e.OrganizationID
	d.AttentionEventID = e.ID
	if d.ProducedBy == "" {
		d.ProducedBy = BySystem
	}
	if d.InputRefs == nil {
		d.InputRefs = e.InputRefs
	}

	stored, inserted, err := r.store.Insert(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("record decision for event %s: %w", e.ID, err)
	}

	if !inserted {
		r.logger.Info("decision already recorded",
			"id", stored.ID,
			"event_id", e.ID,
			"decision", stored.Outcome,
		)
		return stored, nil
	}

	r.logger.Info("decision recorded",
		"id", stored.ID,
		"event_id", e.ID,
		"organization_id", e.OrganizationID,
		"decision", stored.Outcome,
		"policy_id", stored.PolicyID,
	)

	if stored.Outcome == Escalate && r.escalator != nil {
		r.escalator.Escalate(*stored, e)
	}

	return stored, nil
}

// RecordFallback persists a needs_review decision produced by the system
// with no policy attached.
func (r *Recorder) RecordFallback(ctx context.Context, e events.Event, reason string) (*Decision, error) {
	return r.Record(ctx, Fallback(reason), e)
}

// Fallback builds the needs_review decision used when evaluation cannot complete.
func Fallback(reason string) Decision {
	return Decision{
		Outcome:    NeedsReview,
		Reason:     reason,
		ProducedBy: BySystem,
	}
}
