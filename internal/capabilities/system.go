package capabilities

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the capability registry.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Score], error)
	Find(ctx context.Context, id uuid.UUID) (*Score, error)
	Upsert(ctx context.Context, cmd UpsertCommand) (*Score, error)
	Deactivate(ctx context.Context, id uuid.UUID) (*Score, error)

	// Active returns the active scores for language that apply to
	// documentTypeID: those specific to it plus the language-wide ones.
	// A nil documentTypeID returns only language-wide scores.
	Active(ctx context.Context, language string, documentTypeID *uuid.UUID) ([]Score, error)
}
