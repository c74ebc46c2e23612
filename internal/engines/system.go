package engines

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the public contract for engine config operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Engine], error)
	Find(ctx context.Context, id uuid.UUID) (*Engine, error)
	Create(ctx context.Context, cmd Command) (*Engine, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*Engine, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Active returns every active engine ordered by name.
	Active(ctx context.Context) ([]Engine, error)
	Credentials(ctx context.Context, id uuid.UUID) (*Credentials, error)
}
