package policies

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/vigil/pkg/pagination"
)

// System defines the public contract for policy administration and lookup.
type System interface {
	Handler() *Handler

	Create(ctx context.Context, cmd CreateCommand) (*Policy, error)
	Find(ctx context.Context, id uuid.UUID) (*Policy, error)
	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Policy], error)
	Update(ctx context.Context, id uuid.UUID, cmd UpdateCommand) (*Policy, error)

	// Delete removes a policy no decision references. Referenced policies
	// return ErrInUse and should be disabled instead.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListEnabled returns the tenant's enabled policies in evaluation order:
	// priority ascending, then creation time, then id.
	ListEnabled(ctx context.Context, orgID uuid.UUID) ([]Policy, error)

	// Organizations returns every tenant with at least one enabled policy.
	Organizations(ctx context.Context) ([]uuid.UUID, error)
}
