package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
)

// System defines the public contract for the event store.
type System interface {
	Handler() *Handler

	// Create validates and appends a new event.
	Create(ctx context.Context, in Input) (*Event, error)
	Find(ctx context.Context, id uuid.UUID) (*Event, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Event], error)

	// CountRecent counts events for the tenant with the same source and type
	// ingested at or after since.
	CountRecent(ctx context.Context, orgID uuid.UUID, sourceID string, eventType EventType, since time.Time) (int, error)

	// Organizations returns the tenants with at least one event ingested at or after since.
	Organizations(ctx context.Context, since time.Time) ([]uuid.UUID, error)
}
