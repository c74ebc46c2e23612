package documents

import (
	"context"
	"database/sql"
	"errors"
	"slices"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/audit"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

// Status is a document lifecycle state.
type Status string

const (
	StatusPending        Status = "pending"
	StatusPreprocessing  Status = "preprocessing"
	StatusClassifying    Status = "classifying"
	StatusExtracting     Status = "extracting"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusReviewRequired Status = "review_required"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

var transitions = map[Status][]Status{
	StatusPending:        {StatusPreprocessing, StatusFailed},
	StatusPreprocessing:  {StatusClassifying, StatusFailed},
	StatusClassifying:    {StatusExtracting, StatusFailed},
	StatusExtracting:     {StatusCompleted, StatusReviewRequired, StatusFailed},
	StatusFailed:         {StatusPending, StatusPreprocessing},
	StatusReviewRequired: {StatusCompleted, StatusFailed, StatusPending},
	StatusCompleted:      nil,
}

// CanTransition reports whether from -> to is an edge of the lifecycle.
func CanTransition(from, to Status) bool {
	return slices.Contains(transitions[from], to)
}

// Terminal reports whether polling should stop at s.
func Terminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusReviewRequired
}

// Processing reports whether s is driven by the extraction pipeline.
func Processing(s Status) bool {
	return s == StatusPreprocessing || s == StatusClassifying || s == StatusExtracting
}

// LockName is the lock serializing mutations of a document.
func LockName(id uuid.UUID) string {
	return "document:" + id.String()
}

// Transition moves document id from -> to inside tx and records a
// status_change audit entry. errMsg replaces the stored error message;
// nil clears it. The update only applies while the stored status is
// still from, so a concurrent writer surfaces as a ConflictError.
func Transition(ctx context.Context, tx *sql.Tx, id uuid.UUID, from, to Status, errMsg *string, details map[string]any) error {
	if !CanTransition(from, to) {
		return core.Illegal("document", string(from), "move to "+string(to))
	}

	err := repository.ExecExpectOne(
		ctx, tx,
		`UPDATE documents SET
			status = $1::text,
			error_message = $2,
			processing_started_at = CASE WHEN $1::text = 'preprocessing' THEN now() ELSE processing_started_at END,
			completed_at = CASE WHEN $1::text = 'completed' THEN now() ELSE completed_at END,
			updated_at = now()
		WHERE id = $3 AND status = $4`,
		to, errMsg, id, from,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Conflict("document", id)
	}
	if err != nil {
		return err
	}

	return audit.StatusChange(ctx, tx, id, string(from), string(to), details)
}
