// Package events implements the append-only attention event store.
// Events are immutable facts submitted by producers; they are inserted once
// and never updated or deleted.
package events

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EventType is the closed set of operational facts the engine triages.
type EventType string

const (
	CallCompleted     EventType = "call_completed"
	AlertTriggered    EventType = "alert_triggered"
	WebhookFailed     EventType = "webhook_failed"
	CarrierDegraded   EventType = "carrier_degraded"
	CampaignEnded     EventType = "campaign_ended"
	EvidenceGenerated EventType = "evidence_generated"
	SystemError       EventType = "system_error"
)

var eventTypes = []EventType{
	CallCompleted,
	AlertTriggered,
	WebhookFailed,
	CarrierDegraded,
	CampaignEnded,
	EvidenceGenerated,
	SystemError,
}

// Valid reports whether t is one of the known event types.
func (t EventType) Valid() bool {
	return slices.Contains(eventTypes, t)
}

// Severity is the urgency carried in an event payload.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Payload is the opaque structured snapshot captured from the producer.
type Payload map[string]any

// Severity returns the lowercased "severity" field, or "" when absent or not a string.
func (p Payload) Severity() Severity {
	s, ok := p["severity"].(string)
	if !ok {
		return ""
	}
	return Severity(strings.ToLower(strings.TrimSpace(s)))
}

// Text returns the payload serialized as JSON. Object keys are emitted in
// sorted order so the text is stable across calls. HTML characters are left
// unescaped so keywords such as "AT&T" match the text verbatim.
func (p Payload) Text() string {
	if p == nil {
		return ""
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return fmt.Sprint(map[string]any(p))
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// InputRef points at a record an event was derived from.
type InputRef struct {
	Table string `json:"table"`
	ID    string `json:"id"`
}

// Event is a stored attention event. CreatedAt is the ingestion time;
// OccurredAt is when the underlying fact happened.
type Event struct {
	ID              uuid.UUID  `json:"id"`
	OrganizationID  uuid.UUID  `json:"organization_id"`
	EventType       EventType  `json:"event_type"`
	SourceTable     string     `json:"source_table"`
	SourceID        string     `json:"source_id"`
	OccurredAt      time.Time  `json:"occurred_at"`
	PayloadSnapshot Payload    `json:"payload_snapshot"`
	InputRefs       []InputRef `json:"input_refs"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Input carries the producer-supplied fields for a new event.
type Input struct {
	OrganizationID  uuid.UUID  `json:"organization_id"`
	EventType       EventType  `json:"event_type"`
	SourceTable     string     `json:"source_table"`
	SourceID        string     `json:"source_id"`
	OccurredAt      time.Time  `json:"occurred_at"`
	PayloadSnapshot Payload    `json:"payload_snapshot"`
	InputRefs       []InputRef `json:"input_refs,omitempty"`
}

// Validate checks the required fields.
func (in Input) Validate() error {
	switch {
	case in.OrganizationID == uuid.Nil:
		return fmt.Errorf("%w: organization_id required", ErrInvalidInput)
	case !in.EventType.Valid():
		return fmt.Errorf("%w: unknown event_type %q", ErrInvalidInput, in.EventType)
	case strings.TrimSpace(in.SourceTable) == "":
		return fmt.Errorf("%w: source_table required", ErrInvalidInput)
	case strings.TrimSpace(in.SourceID) == "":
		return fmt.Errorf("%w: source_id required", ErrInvalidInput)
	case in.OccurredAt.IsZero():
		return fmt.Errorf("%w: occurred_at required", ErrInvalidInput)
	case in.PayloadSnapshot == nil:
		return fmt.Errorf("%w: payload_snapshot required", ErrInvalidInput)
	}
	for i, ref := range in.InputRefs {
		if ref.Table == "" || ref.ID == "" {
			return fmt.Errorf("%w: input_refs[%d] requires table and id", ErrInvalidInput, i)
		}
	}
	return nil
}
