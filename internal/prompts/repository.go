package prompts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a prompt template repository implementing the System interface.
func New(
	db *sql.DB,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "prompts"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(
	ctx context.Context,
	page pagination.PageRequest,
	filters Filters,
) (*pagination.PageResult[Template], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Content", "ChangeSummary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count prompt templates: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("query prompt templates: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := find(ctx, r.db, id)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &t, nil
}

func (r *repo) Create(ctx context.Context, cmd CreateCommand) (*Template, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	author := auth.Actor(ctx)

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Template, error) {
		if err := repository.LockKey(ctx, tx, Key(cmd.PromptType, cmd.DocumentTypeID)); err != nil {
			return Template{}, fmt.Errorf("lock version sequence: %w", err)
		}

		var next int
		err := tx.QueryRowContext(
			ctx,
			`SELECT COALESCE(MAX(version), 0) + 1 FROM prompt_templates
			WHERE prompt_type = $1 AND document_type_id IS NOT DISTINCT FROM $2`,
			cmd.PromptType, cmd.DocumentTypeID,
		).Scan(&next)
		if err != nil {
			return Template{}, fmt.Errorf("next version: %w", err)
		}

		if cmd.Activate {
			if err := deactivateSiblings(ctx, tx, cmd.PromptType, cmd.DocumentTypeID); err != nil {
				return Template{}, err
			}
		}

		q := `
			INSERT INTO prompt_templates(prompt_type, document_type_id, version, content, change_summary, author, is_active)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			` + returning

		args := []any{cmd.PromptType, cmd.DocumentTypeID, next, cmd.Content, cmd.ChangeSummary, author, cmd.Activate}
		return repository.QueryOne(ctx, tx, q, args, scanTemplate)
	})
	if repository.IsForeignKeyViolation(err) {
		return nil, ErrUnknownDocumentType
	}
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"prompt template created",
		"id", t.ID,
		"prompt_type", t.PromptType,
		"version", t.Version,
		"active", t.IsActive,
	)
	return &t, nil
}

// Activate makes id the only active version of its scope. The sequence
// lock serializes concurrent activations of the same scope.
func (r *repo) Activate(ctx context.Context, id uuid.UUID) (*Template, error) {
	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Template, error) {
		target, err := find(ctx, tx, id)
		if err != nil {
			return Template{}, err
		}

		if err := repository.LockKey(ctx, tx, Key(target.PromptType, target.DocumentTypeID)); err != nil {
			return Template{}, fmt.Errorf("lock version sequence: %w", err)
		}

		if err := deactivateSiblings(ctx, tx, target.PromptType, target.DocumentTypeID); err != nil {
			return Template{}, err
		}

		q := `UPDATE prompt_templates SET is_active = true WHERE id = $1 ` + returning
		return repository.QueryOne(ctx, tx, q, []any{id}, scanTemplate)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt template activated", "id", t.ID, "prompt_type", t.PromptType, "version", t.Version)
	return &t, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Template, error) {
	q := `UPDATE prompt_templates SET is_active = false WHERE id = $1 ` + returning

	t, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Template, error) {
		return repository.QueryOne(ctx, tx, q, []any{id}, scanTemplate)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("prompt template deactivated", "id", t.ID, "prompt_type", t.PromptType, "version", t.Version)
	return &t, nil
}

func (r *repo) Versions(ctx context.Context, t Type, documentTypeID *uuid.UUID) ([]Template, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}

	q := fmt.Sprintf(
		`SELECT %s FROM %s
		WHERE pt.prompt_type = $1 AND pt.document_type_id IS NOT DISTINCT FROM $2
		ORDER BY pt.version DESC`,
		projection.Columns(), projection.From(),
	)

	items, err := repository.QueryMany(ctx, r.db, q, []any{t, documentTypeID}, scanTemplate)
	if err != nil {
		return nil, fmt.Errorf("query prompt versions: %w", err)
	}
	return items, nil
}

// Resolve returns the active document type template, then the active
// global template, then the built-in default.
func (r *repo) Resolve(ctx context.Context, t Type, documentTypeID *uuid.UUID) (*Resolution, error) {
	if !t.Valid() {
		return nil, ErrInvalidType
	}

	if documentTypeID != nil {
		tmpl, err := r.active(ctx, t, documentTypeID)
		if err != nil {
			return nil, err
		}
		if tmpl != nil {
			return resolved(tmpl, SourceDocumentType), nil
		}
	}

	tmpl, err := r.active(ctx, t, nil)
	if err != nil {
		return nil, err
	}
	if tmpl != nil {
		return resolved(tmpl, SourceGlobal), nil
	}

	content, err := Default(t)
	if err != nil {
		return nil, err
	}
	return &Resolution{PromptType: t, Content: content, Source: SourceDefault}, nil
}

func (r *repo) active(ctx context.Context, t Type, documentTypeID *uuid.UUID) (*Template, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM %s
		WHERE pt.prompt_type = $1 AND pt.document_type_id IS NOT DISTINCT FROM $2 AND pt.is_active`,
		projection.Columns(), projection.From(),
	)

	tmpl, err := repository.QueryOne(ctx, r.db, q, []any{t, documentTypeID}, scanTemplate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active prompt: %w", err)
	}
	return &tmpl, nil
}

func resolved(t *Template, source Source) *Resolution {
	id, version := t.ID, t.Version
	return &Resolution{
		PromptType: t.PromptType,
		Content:    t.Content,
		Source:     source,
		TemplateID: &id,
		Version:    &version,
	}
}

func deactivateSiblings(ctx context.Context, tx *sql.Tx, t Type, documentTypeID *uuid.UUID) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE prompt_templates SET is_active = false
		WHERE prompt_type = $1 AND document_type_id IS NOT DISTINCT FROM $2 AND is_active`,
		t, documentTypeID,
	)
	if err != nil {
		return fmt.Errorf("deactivate current: %w", err)
	}
	return nil
}

func find(ctx context.Context, q repository.Querier, id uuid.UUID) (Template, error) {
	s, args := query.NewBuilder(projection).BuildSingle("ID", id)
	return repository.QueryOne(ctx, q, s, args, scanTemplate)
}
