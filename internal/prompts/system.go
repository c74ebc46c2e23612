package prompts

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the public contract for prompt template operations.
// Content is immutable; edits are new versions.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Template], error)

	Find(ctx context.Context, id uuid.UUID) (*Template, error)
	Create(ctx context.Context, cmd CreateCommand) (*Template, error)
	Activate(ctx context.Context, id uuid.UUID) (*Template, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Template, error)
	Versions(ctx context.Context, t Type, documentTypeID *uuid.UUID) ([]Template, error)
	Resolve(ctx context.Context, t Type, documentTypeID *uuid.UUID) (*Resolution, error)
}
