package doctypes

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a document type repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "doctypes"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[DocumentType], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Code", "Name")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count document types: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanDocumentType)
	if err != nil {
		return nil, fmt.Errorf("query document types: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*DocumentType, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	dt, err := repository.QueryOne(ctx, r.db, q, args, scanDocumentType)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &dt, nil
}

func (r *repo) Create(ctx context.Context, cmd Command) (*DocumentType, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO document_types(code, name, extraction_template, classification_hints, is_active)
		VALUES ($1, $2, $3, $4, $5)
		` + returning

	args := []any{cmd.Code, cmd.Name, repository.NewJSON(cmd.ExtractionTemplate), cmd.ClassificationHints, cmd.active()}

	dt, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (DocumentType, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocumentType)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document type created", "id", dt.ID, "code", dt.Code)
	return &dt, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*DocumentType, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE document_types
		SET code = $1, name = $2, extraction_template = $3, classification_hints = $4,
			is_active = $5, updated_at = now()
		WHERE id = $6
		` + returning

	args := []any{cmd.Code, cmd.Name, repository.NewJSON(cmd.ExtractionTemplate), cmd.ClassificationHints, cmd.active(), id}

	dt, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (DocumentType, error) {
		return repository.QueryOne(ctx, tx, q, args, scanDocumentType)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document type updated", "id", dt.ID, "code", dt.Code)
	return &dt, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM document_types WHERE id = $1", id)
	})
	if repository.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("document type deleted", "id", id)
	return nil
}
