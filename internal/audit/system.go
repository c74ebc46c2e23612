package audit

import (
	"context"

	"github.com/google/uuid"
)

// System defines read access to the audit log.
type System interface {
	Handler() *Handler

	List(ctx context.Context, documentID uuid.UUID) ([]Entry, error)
}
