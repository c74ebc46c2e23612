package extractions

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
)

// System defines the extraction result and review operations.
type System interface {
	Handler() *Handler

	List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Result], error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*Result, error)

	// Ingest stores the engine result for a document in extracting and
	// moves it to completed, review_required or failed by confidence.
	Ingest(ctx context.Context, documentID uuid.UUID, cmd IngestCommand) (*Result, error)
	ApproveReview(ctx context.Context, documentID uuid.UUID, cmd ApproveCommand) (*Result, error)
	RejectReview(ctx context.Context, documentID uuid.UUID, cmd RejectCommand) (*Result, error)
}
