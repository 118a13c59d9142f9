package decisions

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
)

// Store is the write path the Recorder persists through.
type Store interface {
	// Insert writes d unless the event already has a decision, in which case
	// the existing decision is returned with inserted false.
	Insert(ctx context.Context, d Decision) (dec *Decision, inserted bool, err error)
}

// System defines the public contract for decision storage and queries.
type System interface {
	Store
	Handler() *Handler

	Find(ctx context.Context, id uuid.UUID) (*Decision, error)
	FindByEvent(ctx context.Context, eventID uuid.UUID) (*Decision, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Decision], error)

	// ListDigestable returns the tenant's suppress and include_in_digest
	// decisions created within [start, end), oldest first.
	ListDigestable(ctx context.Context, orgID uuid.UUID, start, end time.Time) ([]Decision, error)

	// Tally counts the tenant's decisions per outcome within [start, end).
	Tally(ctx context.Context, orgID uuid.UUID, start, end time.Time) (map[Outcome]int, error)

	// Snapshot reads ListDigestable and Tally for one window from a single
	// consistent read.
	Snapshot(ctx context.Context, orgID uuid.UUID, start, end time.Time) (*Window, error)
}

// Window is a consistent view of a tenant's decisions in one period.
type Window struct {
	Digestable []Decision
	Tally      map[Outcome]int
}
