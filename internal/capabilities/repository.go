package capabilities

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

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

// New creates a capability repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "capabilities"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Score], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Language", "EngineName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count capability scores: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanScore)
	if err != nil {
		return nil, fmt.Errorf("query capability scores: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Score, error) {
	sc, err := find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

func (r *repo) Active(ctx context.Context, language string, documentTypeID *uuid.UUID) ([]Score, error) {
	q := fmt.Sprintf(
		`SELECT %s FROM %s
		WHERE cs.language = $1 AND cs.is_active AND e.is_active
			AND (cs.document_type_id IS NULL OR cs.document_type_id = $2)
		ORDER BY e.name, cs.document_type_id NULLS LAST`,
		projection.Columns(),
		projection.From(),
	)

	items, err := repository.QueryMany(ctx, r.db, q, []any{strings.ToLower(language), documentTypeID}, scanScore)
	if err != nil {
		return nil, fmt.Errorf("query active scores: %w", err)
	}
	return items, nil
}

func (r *repo) Upsert(ctx context.Context, cmd UpsertCommand) (*Score, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	sc, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Score, error) {
		if err := repository.LockKey(ctx, tx, TupleKey(cmd.EngineID, cmd.Language, cmd.DocumentTypeID)); err != nil {
			return Score{}, err
		}

		var id uuid.UUID
		err := tx.QueryRowContext(
			ctx,
			`UPDATE capability_scores
			SET accuracy_score = $1, cost_per_page = $2, speed_score = $3, updated_at = now()
			WHERE engine_config_id = $4 AND language = $5
				AND document_type_id IS NOT DISTINCT FROM $6 AND is_active
			RETURNING id`,
			cmd.AccuracyScore, cmd.CostPerPage, cmd.SpeedScore,
			cmd.EngineID, cmd.Language, cmd.DocumentTypeID,
		).Scan(&id)

		if errors.Is(err, sql.ErrNoRows) {
			err = tx.QueryRowContext(
				ctx,
				`INSERT INTO capability_scores(engine_config_id, language, document_type_id,
					accuracy_score, cost_per_page, speed_score)
				VALUES ($1, $2, $3, $4, $5, $6)
				RETURNING id`,
				cmd.EngineID, cmd.Language, cmd.DocumentTypeID,
				cmd.AccuracyScore, cmd.CostPerPage, cmd.SpeedScore,
			).Scan(&id)
		}
		if err != nil {
			return Score{}, err
		}

		return find(ctx, tx, id)
	})
	if repository.IsForeignKeyViolation(err) {
		return nil, ErrUnknownEngine
	}
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info(
		"capability score upserted",
		"id", sc.ID,
		"engine", sc.EngineName,
		"language", sc.Language,
		"accuracy", sc.AccuracyScore,
	)
	return &sc, nil
}

func (r *repo) Deactivate(ctx context.Context, id uuid.UUID) (*Score, error) {
	sc, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Score, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			"UPDATE capability_scores SET is_active = false, updated_at = now() WHERE id = $1",
			id,
		); err != nil {
			return Score{}, err
		}
		return find(ctx, tx, id)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("capability score deactivated", "id", id)
	return &sc, nil
}

func find(ctx context.Context, db repository.Querier, id uuid.UUID) (Score, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)
	sc, err := repository.QueryOne(ctx, db, q, args, scanScore)
	if err != nil {
		return Score{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return sc, nil
}
