package events

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "attention_events", "e").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("event_type", "EventType").
	Project("source_table", "SourceTable").
	Project("source_id", "SourceID").
	Project("occurred_at", "OccurredAt").
	Project("payload_snapshot", "PayloadSnapshot").
	Project("input_refs", "InputRefs").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters narrows event listings. Nil fields are ignored.
type Filters struct {
	OrganizationID *uuid.UUID
	EventType      *EventType
	SourceTable    *string
	SourceID       *string
	Since          *time.Time
	Until          *time.Time
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("EventType", f.EventType).
		WhereEquals("SourceTable", f.SourceTable).
		WhereEquals("SourceID", f.SourceID).
		WhereSince("CreatedAt", f.Since).
		WhereBefore("CreatedAt", f.Until)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Unparseable values are ignored.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("organization_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.OrganizationID = &id
		}
	}
	if v := values.Get("event_type"); v != "" {
		t := EventType(v)
		f.EventType = &t
	}
	if v := values.Get("source_table"); v != "" {
		f.SourceTable = &v
	}
	if v := values.Get("source_id"); v != "" {
		f.SourceID = &v
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

func scanEvent(s repository.Scanner) (Event, error) {
	var e Event
	var payloadRaw, refsRaw []byte

	err := s.Scan(
		&e.ID,
		&e.OrganizationID,
		&e.EventType,
		&e.SourceTable,
		&e.SourceID,
		&e.OccurredAt,
		&payloadRaw,
		&refsRaw,
		&e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if err := json.Unmarshal(payloadRaw, &e.PayloadSnapshot); err != nil {
		return e, fmt.Errorf("unmarshal payload_snapshot: %w", err)
	}
	if len(refsRaw) > 0 {
		if err := json.Unmarshal(refsRaw, &e.InputRefs); err != nil {
			return e, fmt.Errorf("unmarshal input_refs: %w", err)
		}
	}
	if e.InputRefs == nil {
		e.InputRefs = []InputRef{}
	}

	return e, nil
}
