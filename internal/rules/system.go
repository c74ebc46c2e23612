package rules

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the validation rule operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Rule], error)
	Find(ctx context.Context, id uuid.UUID) (*Rule, error)
	Create(ctx context.Context, cmd Command) (*Rule, error)
	Update(ctx context.Context, id uuid.UUID, cmd Command) (*Rule, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Active returns every active rule ordered by code.
	Active(ctx context.Context) ([]Rule, error)
	// Import upserts the rules of a YAML document by code in one
	// transaction.
	Import(ctx context.Context, data []byte) (*ImportResult, error)
}

// ImportResult reports an import.
type ImportResult struct {
	Created int    `json:"created"`
	Updated int    `json:"updated"`
	Rules   []Rule `json:"rules"`
}
