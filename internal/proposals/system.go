package proposals

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the registry proposal operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Proposal], error)
	Find(ctx context.Context, id uuid.UUID) (*Proposal, error)
	Review(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Proposal, error)
	// Apply writes an approved proposal to the registry and marks it
	// applied. A failed write leaves it approved.
	Apply(ctx context.Context, id uuid.UUID) (*Proposal, error)
}
