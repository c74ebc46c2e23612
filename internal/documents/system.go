package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

// System defines the public contract for the document lifecycle.
type System interface {
	Handler() *Handler

	List(
		ctx context.Context,
		page pagination.PageRequest,
		filters Filters,
	) (*pagination.PageResult[Document], error)

	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	Upload(ctx context.Context, cmd UploadCommand) (*Document, error)
	// Download returns the stored blob. The caller must close its Body.
	Download(ctx context.Context, id uuid.UUID) (*Document, *storage.Blob, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Process routes a pending or failed document to an engine and hands
	// it to the extraction pipeline.
	Process(ctx context.Context, id uuid.UUID) (*Document, error)
	Retry(ctx context.Context, id uuid.UUID) (*Document, error)
	Advance(ctx context.Context, id uuid.UUID, cmd ProgressCommand) (*Document, error)
	Fail(ctx context.Context, id uuid.UUID, cmd FailCommand) (*Document, error)
	LinkClaim(ctx context.Context, id uuid.UUID, cmd LinkClaimCommand) (*Document, error)
}
