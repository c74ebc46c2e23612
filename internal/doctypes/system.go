package doctypes

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the public contract for document type operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[DocumentType], error)
	Find(ctx context.Context, id uuid.UUID) (*DocumentType, error)
	Create(ctx context.Context, cmd Command) (*DocumentType, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*DocumentType, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
