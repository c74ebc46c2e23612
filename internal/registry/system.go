package registry

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// System is the claims registry collaborator.
type System interface {
	Claim(ctx context.Context, id uuid.UUID) (*Claim, error)
	Record(ctx context.Context, model Model, id uuid.UUID) (*Record, error)
	ActivePolicy(ctx context.Context, insureeID uuid.UUID, on time.Time) (*Policy, error)
	// Coverage lists the item and service codes covered by a product.
	Coverage(ctx context.Context, productID uuid.UUID) (*Coverage, error)
	// Duplicates returns other claims with the same insuree, facility, and start date.
	Duplicates(ctx context.Context, claim *Claim) ([]uuid.UUID, error)
	WriteField(ctx context.Context, model Model, id uuid.UUID, field string, value any) error
	// WriteFieldTx is WriteField inside the caller's transaction.
	WriteFieldTx(ctx context.Context, tx *sql.Tx, model Model, id uuid.UUID, field string, value any) error
}
