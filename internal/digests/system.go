package digests

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
)

// Store persists compiled digests.
type Store interface {
	// Insert writes d. A digest already stored for the same tenant, type,
	// and period returns ErrDuplicate.
	Insert(ctx context.Context, d Digest) (*Digest, error)
}

// System defines the public contract for digest storage and queries.
type System interface {
	Store

	Find(ctx context.Context, id uuid.UUID) (*Digest, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Digest], error)
}
