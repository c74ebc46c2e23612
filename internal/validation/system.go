package validation

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the validation engine operations.
type System interface {
	Handler() *Handler

	// Run executes the requested passes concurrently. The document must be
	// completed and linked to a claim.
	Run(ctx context.Context, cmd RunCommand) ([]Result, error)
	// Enqueue checks the same preconditions as Run and queues the passes
	// for a validation worker.
	Enqueue(ctx context.Context, cmd RunCommand) error

	ListResults(ctx context.Context, page pagination.PageRequest, filters ResultFilters) (*pagination.PageResult[Result], error)
	FindResult(ctx context.Context, id uuid.UUID) (*Result, error)
	ListFindings(ctx context.Context, page pagination.PageRequest, filters FindingFilters) (*pagination.PageResult[Finding], error)
	ResolveFinding(ctx context.Context, id uuid.UUID, cmd ResolveCommand) (*Resolution, error)
}

// Resolution is a resolved finding and the proposal accepting it created.
type Resolution struct {
	Finding  Finding             `json:"finding"`
	Proposal *proposals.Proposal `json:"proposal,omitempty"`
}
