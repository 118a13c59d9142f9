// Package escalation delivers escalate decisions to the notification
// collaborator out of band from evaluation.
package escalation

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/decisions"
	"github.com/JaimeStill/vigil/internal/events"
)

// Hook is the outbound side effect for an escalation.
type Hook interface {
	OnEscalate(ctx context.Context, d decisions.Decision, e events.Event) error
}

// Notification is the message handed to the notification collaborator.
type Notification struct {
	DecisionID     uuid.UUID        `json:"decision_id"`
	EventID        uuid.UUID        `json:"event_id"`
	OrganizationID uuid.UUID        `json:"organization_id"`
	EventType      events.EventType `json:"event_type"`
	SourceTable    string           `json:"source_table"`
	SourceID       string           `json:"source_id"`
	Severity       events.Severity  `json:"severity,omitempty"`
	Reason         string           `json:"reason"`
	PolicyID       *uuid.UUID       `json:"policy_id"`
	OccurredAt     time.Time        `json:"occurred_at"`
	DecidedAt      time.Time        `json:"decided_at"`
}

// NewNotification builds the notification for an escalate decision.
func NewNotification(d decisions.Decision, e events.Event) Notification {
	return Notification{
		DecisionID:     d.ID,
		EventID:        e.ID,
		OrganizationID: e.OrganizationID,
		EventType:      e.EventType,
		SourceTable:    e.SourceTable,
		SourceID:       e.SourceID,
		Severity:       e.PayloadSnapshot.Severity(),
		Reason:         d.Reason,
		PolicyID:       d.PolicyID,
		OccurredAt:     e.OccurredAt,
		DecidedAt:      d.CreatedAt,
	}
}
