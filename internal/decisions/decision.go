// Package decisions records the single verdict reached for each attention event.
// Decisions are append-only: one per event, never updated or deleted.
package decisions

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
)

// Outcome is the verdict reached for an event.
type Outcome string

const (
	Escalate        Outcome = "escalate"
	Suppress        Outcome = "suppress"
	IncludeInDigest Outcome = "include_in_digest"
	NeedsReview     Outcome = "needs_review"
)

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case Escalate, Suppress, IncludeInDigest, NeedsReview:
		return true
	}
	return false
}

// ProducedBy identifies what kind of actor reached a decision.
type ProducedBy string

const (
	BySystem ProducedBy = "system"
	ByHuman  ProducedBy = "human"
	ByModel  ProducedBy = "model"
)

// Decision is the recorded verdict for one event. A nil PolicyID means no
// policy was decisive and the default applied.
type Decision struct {
	ID               uuid.UUID         `json:"id"`
	OrganizationID   uuid.UUID         `json:"organization_id"`
	AttentionEventID uuid.UUID         `json:"attention_event_id"`
	Outcome          Outcome           `json:"decision"`
	Reason           string            `json:"reason"`
	PolicyID         *uuid.UUID        `json:"policy_id"`
	Confidence       *float64          `json:"confidence,omitempty"`
	UncertaintyNotes *string           `json:"uncertainty_notes,omitempty"`
	ProducedBy       ProducedBy        `json:"produced_by"`
	InputRefs        []events.InputRef `json:"input_refs"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Persisted reports whether the decision was written to the store.
func (d Decision) Persisted() bool {
	return d.ID != uuid.Nil
}

// digestable are the outcomes folded into periodic digests.
var digestable = []any{string(Suppress), string(IncludeInDigest)}
