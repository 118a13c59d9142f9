// Package digests compiles periodic per-tenant rollups of suppressed and
// digest-bound decisions and stores them as terminal reports.
package digests

import (
	"time"

	"github.com/google/uuid"
)

// EmptySummary is the summary text of a digest whose window held no
// digestable decisions.
const EmptySummary = "No return traffic detected in this period."

// Digest is a stored rollup for one tenant and period.
type Digest struct {
	ID               uuid.UUID `json:"id"`
	OrganizationID   uuid.UUID `json:"organization_id"`
	DigestType       string    `json:"digest_type"`
	PeriodStart      time.Time `json:"period_start"`
	PeriodEnd        time.Time `json:"period_end"`
	SummaryText      string    `json:"summary_text"`
	TotalEvents      int       `json:"total_events"`
	SuppressedCount  int       `json:"suppressed_count"`
	EscalatedCount   int       `json:"escalated_count"`
	NeedsReviewCount int       `json:"needs_review_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// CompileCommand requests a digest for one tenant and window.
type CompileCommand struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	DigestType     string    `json:"digest_type"`
	PeriodStart    time.Time `json:"period_start"`
	PeriodEnd      time.Time `json:"period_end"`
}
