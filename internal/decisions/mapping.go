package decisions

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/internal/events"
	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "attention_decisions", "d").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("attention_event_id", "AttentionEventID").
	Project("decision", "Outcome").
	Project("reason", "Reason").
	Project("policy_id", "PolicyID").
	Project("confidence", "Confidence").
	Project("uncertainty_notes", "UncertaintyNotes").
	Project("produced_by", "ProducedBy").
	Project("input_refs", "InputRefs").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows decision listings. Nil fields are ignored.
type Filters struct {
	OrganizationID   *uuid.UUID
	AttentionEventID *uuid.UUID
	Outcome          *Outcome
	PolicyID         *uuid.UUID
	ProducedBy       *ProducedBy
	Since            *time.Time
	Until            *time.Time
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("AttentionEventID", f.AttentionEventID).
		WhereEquals("Outcome", f.Outcome).
		WhereEquals("PolicyID", f.PolicyID).
		WhereEquals("ProducedBy", f.ProducedBy).
		WhereSince("CreatedAt", f.Since).
		WhereBefore("CreatedAt", f.Until)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	f.OrganizationID = parseUUID(values.Get("organization_id"))
	f.AttentionEventID = parseUUID(values.Get("attention_event_id"))
	f.PolicyID = parseUUID(values.Get("policy_id"))

	if v := values.Get("decision"); v != "" {
		o := Outcome(v)
		f.Outcome = &o
	}
	if v := values.Get("produced_by"); v != "" {
		p := ProducedBy(v)
		f.ProducedBy = &p
	}
	if v := values.Get("since"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.Since = &ts
		}
	}
	if v := values.Get("until"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.Until = &ts
		}
	}

	return f
}

func parseUUID(v string) *uuid.UUID {
	if v == "" {
		return nil
	}
	id, err := uuid.Parse(v)
	if err != nil {
		return nil
	}
	return &id
}

func scanDecision(s repository.Scanner) (Decision, error) {
	var d Decision
	var (
		policyID   uuid.NullUUID
		confidence sql.NullFloat64
		notes      sql.NullString
		refsRaw    []byte
	)

	err := s.Scan(
		&d.ID,
		&d.OrganizationID,
		&d.AttentionEventID,
		&d.Outcome,
		&d.Reason,
		&policyID,
		&confidence,
		&notes,
		&d.ProducedBy,
		&refsRaw,
		&d.CreatedAt,
	)
	if err != nil {
		return d, err
	}

	if policyID.Valid {
		d.PolicyID = &policyID.UUID
	}
	if confidence.Valid {
		d.Confidence = &confidence.Float64
	}
	if notes.Valid {
		d.UncertaintyNotes = &notes.String
	}

	if len(refsRaw) > 0 {
		if err := json.Unmarshal(refsRaw, &d.InputRefs); err != nil {
			return d, fmt.Errorf("unmarshal input_refs: %w", err)
		}
	}
	if d.InputRefs == nil {
		d.InputRefs = []events.InputRef{}
	}

	return d, nil
}
