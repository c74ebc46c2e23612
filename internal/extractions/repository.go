package extractions

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
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/internal/settings"
	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/lock"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

// BelowThresholdMessage is the error message of a document failed by the
// confidence gate.
const BelowThresholdMessage = "aggregate confidence below review threshold"

type repo struct {
	db         *sql.DB
	locker     lock.Locker
	lockTTL    time.Duration
	settings   settings.System
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the extraction system.
func New(
	db *sql.DB,
	locker lock.Locker,
	lockTTL time.Duration,
	settingsSys settings.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:         db,
		locker:     locker,
		lockTTL:    lockTTL,
		settings:   settingsSys,
		logger:     logger.With("system", "extractions"),
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
) (*pagination.PageResult[Result], error) {
	page.Normalize(r.pagination)

	qb := query.NewBuilder(projection, defaultSort)
	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count extractions: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query extractions: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) FindByDocument(ctx context.Context, documentID uuid.UUID) (*Result, error) {
	x, err := findByDocument(ctx, r.db, documentID)
	if err != nil {
		return nil, err
	}
	return &x, nil
}

func (r *repo) Ingest(ctx context.Context, documentID uuid.UUID, cmd IngestCommand) (*Result, error) {
	parsed, err := cmd.Normalize()
	if err != nil {
		return nil, err
	}

	cfg, err := r.settings.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("load thresholds: %w", err)
	}
	outcome := cfg.Outcome(parsed.AggregateConfidence)

	var out Result
	err = r.guard(ctx, documentID, func(ctx context.Context) error {
		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Result, error) {
			doc, err := readDocument(ctx, tx, documentID)
			if err != nil {
				return Result{}, err
			}
			if doc.status != documents.StatusExtracting {
				return Result{}, core.Illegal("document", string(doc.status), "ingest extraction")
			}

			engineID := cmd.EngineID
			if engineID == nil {
				engineID = doc.engineID
			}

			q := `
				INSERT INTO extraction_results(
					document_id, structured_data, field_confidences, aggregate_confidence,
					raw_response, processing_time_ms, tokens_used, engine_id)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (document_id) DO UPDATE SET
					structured_data = EXCLUDED.structured_data,
					field_confidences = EXCLUDED.field_confidences,
					aggregate_confidence = EXCLUDED.aggregate_confidence,
					raw_response = EXCLUDED.raw_response,
					processing_time_ms = EXCLUDED.processing_time_ms,
					tokens_used = EXCLUDED.tokens_used,
					engine_id = EXCLUDED.engine_id,
					corrected_fields = '[]'::jsonb,
					reviewed_by = NULL,
					reviewed_at = NULL,
					updated_at = now()`

			if _, err := tx.ExecContext(
				ctx, q,
				documentID,
				repository.NewJSON(parsed.StructuredData),
				repository.NewJSON(parsed.FieldConfidences),
				parsed.AggregateConfidence,
				repository.NewJSON(cmd.RawResponse),
				cmd.ProcessingTimeMS,
				cmd.TokensUsed,
				engineID,
			); err != nil {
				if repository.IsForeignKeyViolation(err) {
					return Result{}, core.Invalid("engine_id", "unknown engine")
				}
				return Result{}, fmt.Errorf("store extraction: %w", err)
			}

			if err := audit.Record(ctx, tx, audit.RecordCommand{
				DocumentID: documentID,
				Action:     audit.ActionExtract,
				Details: map[string]any{
					"aggregate_confidence": parsed.AggregateConfidence,
					"fields":               len(parsed.StructuredData),
					"outcome":              string(outcome),
				},
				EngineID: engineID,
			}); err != nil {
				return Result{}, err
			}

			if err := gate(ctx, tx, documentID, outcome); err != nil {
				return Result{}, err
			}

			return findByDocument(ctx, tx, documentID)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"extraction ingested",
		"document_id", documentID,
		"confidence", parsed.AggregateConfidence,
		"outcome", outcome,
	)
	return &out, nil
}

// gate moves an extracting document to the state its outcome selects.
func gate(ctx context.Context, tx *sql.Tx, id uuid.UUID, outcome settings.Outcome) error {
	switch outcome {
	case settings.OutcomeComplete:
		return documents.Transition(ctx, tx, id, documents.StatusExtracting, documents.StatusCompleted, nil, nil)
	case settings.OutcomeReview:
		return documents.Transition(ctx, tx, id, documents.StatusExtracting, documents.StatusReviewRequired, nil, nil)
	default:
		msg := BelowThresholdMessage
		return documents.Transition(ctx, tx, id, documents.StatusExtracting, documents.StatusFailed, &msg, nil)
	}
}

func (r *repo) ApproveReview(ctx context.Context, documentID uuid.UUID, cmd ApproveCommand) (*Result, error) {
	reviewer := auth.Actor(ctx)

	return r.review(ctx, documentID, "extraction approved", func(ctx context.Context, tx *sql.Tx, x Result) error {
		corrected := cmd.Apply(x.StructuredData, x.FieldConfidences)

		err := repository.ExecExpectOne(
			ctx, tx,
			`UPDATE extraction_results SET
				structured_data = $1,
				field_confidences = $2,
				corrected_fields = $3,
				reviewed_by = $4,
				reviewed_at = now(),
				updated_at = now()
			WHERE id = $5`,
			repository.NewJSON(x.StructuredData),
			repository.NewJSON(x.FieldConfidences),
			repository.NewJSON(corrected),
			reviewer,
			x.ID,
		)
		if err != nil {
			return fmt.Errorf("apply corrections: %w", err)
		}

		if err := documents.Transition(
			ctx, tx, documentID,
			documents.StatusReviewRequired, documents.StatusCompleted,
			nil, nil,
		); err != nil {
			return err
		}

		return audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: documentID,
			Action:     audit.ActionReview,
			Details: map[string]any{
				"action":           "approve",
				"corrected_fields": corrected,
			},
		})
	})
}

func (r *repo) RejectReview(ctx context.Context, documentID uuid.UUID, cmd RejectCommand) (*Result, error) {
	if !cmd.Reprocess && cmd.Reason == "" {
		return nil, core.Invalid("reason", "is required unless reprocessing")
	}

	reviewer := auth.Actor(ctx)

	return r.review(ctx, documentID, "extraction rejected", func(ctx context.Context, tx *sql.Tx, x Result) error {
		if _, err := tx.ExecContext(
			ctx,
			"UPDATE extraction_results SET reviewed_by = $1, reviewed_at = now(), updated_at = now() WHERE id = $2",
			reviewer, x.ID,
		); err != nil {
			return fmt.Errorf("mark reviewed: %w", err)
		}

		action := "reject"
		if cmd.Reprocess {
			action = "reprocess"
			if err := documents.Transition(
				ctx, tx, documentID,
				documents.StatusReviewRequired, documents.StatusPending,
				nil, map[string]any{"reason": cmd.Reason},
			); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "UPDATE documents SET engine_id = NULL WHERE id = $1", documentID); err != nil {
				return err
			}
		} else {
			reason := cmd.Reason
			if err := documents.Transition(
				ctx, tx, documentID,
				documents.StatusReviewRequired, documents.StatusFailed,
				&reason, nil,
			); err != nil {
				return err
			}
		}

		return audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: documentID,
			Action:     audit.ActionReview,
			Details:    map[string]any{"action": action, "reason": cmd.Reason},
		})
	})
}

// review runs fn under the document lock for a document awaiting review.
func (r *repo) review(
	ctx context.Context,
	documentID uuid.UUID,
	msg string,
	fn func(ctx context.Context, tx *sql.Tx, x Result) error,
) (*Result, error) {
	var out Result

	err := r.guard(ctx, documentID, func(ctx context.Context) error {
		var err error
		out, err = repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Result, error) {
			doc, err := readDocument(ctx, tx, documentID)
			if err != nil {
				return Result{}, err
			}
			if doc.status != documents.StatusReviewRequired {
				return Result{}, core.Illegal("document", string(doc.status), "review extraction")
			}

			x, err := findByDocument(ctx, tx, documentID)
			if err != nil {
				return Result{}, err
			}
			if err := fn(ctx, tx, x); err != nil {
				return Result{}, err
			}
			return findByDocument(ctx, tx, documentID)
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(msg, "document_id", documentID, "reviewer", auth.Actor(ctx))
	return &out, nil
}

func (r *repo) guard(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	err := lock.Guard(ctx, r.locker, documents.LockName(id), r.lockTTL, r.logger, fn)
	if errors.Is(err, lock.ErrHeld) {
		return core.Conflict("document", id)
	}
	return err
}

type documentState struct {
	status   documents.Status
	engineID *uuid.UUID
}

func readDocument(ctx context.Context, tx *sql.Tx, id uuid.UUID) (documentState, error) {
	var d documentState
	err := tx.QueryRowContext(
		ctx,
		"SELECT status, engine_id FROM documents WHERE id = $1 FOR UPDATE",
		id,
	).Scan(&d.status, &d.engineID)
	if errors.Is(err, sql.ErrNoRows) {
		return d, documents.ErrNotFound
	}
	return d, err
}

func findByDocument(ctx context.Context, q repository.Querier, documentID uuid.UUID) (Result, error) {
	s, args := query.NewBuilder(projection).BuildSingle("DocumentID", documentID)

	x, err := repository.QueryOne(ctx, q, s, args, scanResult)
	if err != nil {
		return Result{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return x, nil
}
