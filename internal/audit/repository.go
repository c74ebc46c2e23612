package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates an audit repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "audit"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

func (r *repo) List(ctx context.Context, documentID uuid.UUID) ([]Entry, error) {
	q := `
		SELECT id, document_id, action, details, actor, engine_id, created_at
		FROM audit_log
		WHERE document_id = $1
		ORDER BY created_at, id`

	entries, err := repository.QueryMany(ctx, r.db, q, []any{documentID}, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	return entries, nil
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e       Entry
		details repository.JSON[map[string]any]
	)
	err := s.Scan(
		&e.ID,
		&e.DocumentID,
		&e.Action,
		&details,
		&e.Actor,
		&e.EngineID,
		&e.CreatedAt,
	)
	e.Details = details.V
	return e, err
}
