package proposals

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/audit"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/lock"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db         *sql.DB
	registry   registry.System
	locker     lock.Locker
	lockTTL    time.Duration
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the registry proposal system.
func New(
	db *sql.DB,
	reg registry.System,
	locker lock.Locker,
	lockTTL time.Duration,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		registry:   reg,
		locker:     locker,
		lockTTL:    lockTTL,
		logger:     logger.With("system", "proposals"),
		pagination: pagination,
	}
}

// CreateFromFinding records a proposal for an accepted update_proposal
// finding inside the caller's transaction.
func CreateFromFinding(ctx context.Context, tx *sql.Tx, f FromFinding) (Proposal, error) {
	model, targetID, err := f.target()
	if err != nil {
		return Proposal{}, err
	}

	q := `
		INSERT INTO registry_proposals(
			document_id, validation_result_id, finding_id, target_model, target_uuid,
			field_name, current_value, proposed_value)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		` + returning

	args := []any{
		f.DocumentID,
		f.ResultID,
		f.FindingID,
		model,
		targetID,
		f.Field,
		repository.NewJSON(f.Details["current"]),
		repository.NewJSON(f.Details["proposed"]),
	}

	p, err := repository.QueryOne(ctx, tx, q, args, scanProposal)
	if err != nil {
		return Proposal{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return p, nil
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Proposal], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "FieldName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count proposals: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanProposal)
	if err != nil {
		return nil, fmt.Errorf("query proposals: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	p, err := find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repo) Review(ctx context.Context, id uuid.UUID, cmd ReviewCommand) (*Proposal, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	reviewer := auth.Actor(ctx)

	p, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Proposal, error) {
		q := `
			UPDATE registry_proposals
			SET status = $1, reviewed_by = $2, reviewed_at = now(), updated_at = now()
			WHERE id = $3 AND status = $4
			` + returning

		p, err := repository.QueryOne(ctx, tx, q, []any{cmd.Status, reviewer, id, StatusProposed}, scanProposal)
		if errors.Is(err, sql.ErrNoRows) {
			current, ferr := find(ctx, tx, id)
			if ferr != nil {
				return Proposal{}, ferr
			}
			return Proposal{}, core.Illegal("proposal", string(current.Status), "review")
		}
		if err != nil {
			return Proposal{}, err
		}

		return p, audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: p.DocumentID,
			Action:     audit.ActionReview,
			Details: map[string]any{
				"action":      "registry_update_" + string(p.Status),
				"proposal_id": p.ID.String(),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("proposal reviewed", "id", id, "status", p.Status, "reviewer", reviewer)
	return &p, nil
}

func (r *repo) Apply(ctx context.Context, id uuid.UUID) (*Proposal, error) {
	var out Proposal

	err := lock.Guard(ctx, r.locker, LockName(id), r.lockTTL, r.logger, func(ctx context.Context) error {
		p, err := find(ctx, r.db, id)
		if err != nil {
			return err
		}
		if p.Status != StatusApproved {
			return core.Illegal("proposal", string(p.Status), "apply")
		}

		// The status flip and the registry write share one transaction: a
		// failed write leaves the proposal approved.
		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Proposal, error) {
			q := `
				UPDATE registry_proposals
				SET status = $1, applied_at = now(), updated_at = now()
				WHERE id = $2 AND status = $3
				` + returning

			applied, err := repository.QueryOne(ctx, tx, q, []any{StatusApplied, id, StatusApproved}, scanProposal)
			if errors.Is(err, sql.ErrNoRows) {
				return Proposal{}, core.Conflict("proposal", id)
			}
			if err != nil {
				return Proposal{}, err
			}

			if err := r.registry.WriteFieldTx(ctx, tx, p.TargetModel, p.TargetID, p.FieldName, p.ProposedValue); err != nil {
				r.logger.Warn("registry write failed", "id", id, "error", err)
				return Proposal{}, err
			}

			return applied, audit.Record(ctx, tx, audit.RecordCommand{
				DocumentID: applied.DocumentID,
				Action:     audit.ActionReview,
				Details: map[string]any{
					"action":       "registry_update_applied",
					"proposal_id":  applied.ID.String(),
					"target_model": string(applied.TargetModel),
					"target_uuid":  applied.TargetID.String(),
					"field_name":   applied.FieldName,
				},
			})
		})
		return err
	})
	if errors.Is(err, lock.ErrHeld) {
		return nil, core.Conflict("proposal", id)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"proposal applied",
		"id", id,
		"target_model", out.TargetModel,
		"target_uuid", out.TargetID,
		"field", out.FieldName,
	)
	return &out, nil
}

func find(ctx context.Context, q repository.Querier, id uuid.UUID) (Proposal, error) {
	s, args := query.NewBuilder(projection).BuildSingle("ID", id)

	p, err := repository.QueryOne(ctx, q, s, args, scanProposal)
	if err != nil {
		return Proposal{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return p, nil
}
