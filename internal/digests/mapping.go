package digests

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/query"
	"github.com/JaimeStill/vigil/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "digests", "g").
	Project("id", "ID").
	Project("organization_id", "OrganizationID").
	Project("digest_type", "DigestType").
	Project("period_start", "PeriodStart").
	Project("period_end", "PeriodEnd").
	Project("summary_text", "SummaryText").
	Project("total_events", "TotalEvents").
	Project("suppressed_count", "SuppressedCount").
	Project("escalated_count", "EscalatedCount").
	Project("needs_review_count", "NeedsReviewCount").
	Project("generated_at", "GeneratedAt")

var defaultSort = query.SortField{
	Field:      "PeriodStart",
	Descending: true,
}

// Filters narrows digest listings. Nil fields are ignored.
type Filters struct {
	OrganizationID *uuid.UUID
	DigestType     *string
	Since          *time.Time
	Until          *time.Time
}

// Apply adds filter conditions to a query builder. Since and Until bound PeriodStart.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("OrganizationID", f.OrganizationID).
		WhereEquals("DigestType", f.DigestType).
		WhereSince("PeriodStart", f.Since).
		WhereBefore("PeriodStart", f.Until)
}

// FiltersFromQuery extracts filter values from URL query parameters.
func FiltersFromQuery(values url.Values) Filters {
	var f Filters

	if v := values.Get("organization_id"); v != "" {
		if id, err := uuid.Parse(v); err == nil {
			f.OrganizationID = &id
		}
	}
	if v := values.Get("digest_type"); v != "" {
		f.DigestType = &v
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

func scanDigest(s repository.Scanner) (Digest, error) {
	var d Digest
	err := s.Scan(
		&d.ID,
		&d.OrganizationID,
		&d.DigestType,
		&d.PeriodStart,
		&d.PeriodEnd,
		&d.SummaryText,
		&d.TotalEvents,
		&d.SuppressedCount,
		&d.EscalatedCount,
		&d.NeedsReviewCount,
		&d.GeneratedAt,
	)
	return d, err
}
