package validation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abekarar/openimis-claimslens/internal/audit"
	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/dispatch"
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/internal/extractions"
	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/internal/rules"
	"github.com/abekarar/openimis-claimslens/internal/settings"
	"github.com/abekarar/openimis-claimslens/pkg/auth"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

// Deps are the collaborators of the validation engine.
type Deps struct {
	Documents   documents.System
	Extractions extractions.System
	Registry    registry.System
	Rules       rules.System
	Settings    settings.System
	Dispatch    dispatch.System
}

type repo struct {
	db         *sql.DB
	deps       Deps
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates the validation engine.
func New(db *sql.DB, deps Deps, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		deps:       deps,
		logger:     logger.With("system", "validation"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Run(ctx context.Context, cmd RunCommand) ([]Result, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	in, err := r.prepare(ctx, cmd.DocumentID)
	if err != nil {
		return nil, err
	}

	evals := make([]Evaluation, len(cmd.ValidationTypes))
	g, gctx := errgroup.WithContext(ctx)

	for i, t := range cmd.ValidationTypes {
		g.Go(func() error {
			ev, err := r.evaluate(gctx, t, in)
			if err != nil {
				return fmt.Errorf("%s pass: %w", t, err)
			}
			evals[i] = ev
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	results, err := r.persist(ctx, in.DocumentID, evals)
	if err != nil {
		return nil, err
	}

	for _, res := range results {
		r.logger.Info(
			"validation completed",
			"document_id", cmd.DocumentID,
			"type", res.ValidationType,
			"status", res.OverallStatus,
			"score", res.MatchScore,
			"findings", len(res.Findings),
		)
	}
	return results, nil
}

func (r *repo) Enqueue(ctx context.Context, cmd RunCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	doc, err := r.deps.Documents.Find(ctx, cmd.DocumentID)
	if err != nil {
		return err
	}
	if err := runnable(doc); err != nil {
		return err
	}

	types := make([]string, len(cmd.ValidationTypes))
	for i, t := range cmd.ValidationTypes {
		types[i] = string(t)
	}

	return r.deps.Dispatch.Validate(ctx, dispatch.ValidationJob{
		DocumentID:      cmd.DocumentID,
		ValidationTypes: types,
	})
}

// runnable requires a completed document linked to a claim.
func runnable(doc *documents.Document) error {
	if doc.Status != documents.StatusCompleted {
		return core.Illegal("document", string(doc.Status), "run validation")
	}
	if doc.ClaimID == nil {
		return core.Illegal("document", "unlinked", "run validation")
	}
	return nil
}

// prepare loads the document, its extraction, the linked claim, the
// thresholds and the active rules.
func (r *repo) prepare(ctx context.Context, documentID uuid.UUID) (Input, error) {
	doc, err := r.deps.Documents.Find(ctx, documentID)
	if err != nil {
		return Input{}, err
	}
	if err := runnable(doc); err != nil {
		return Input{}, err
	}

	in := Input{DocumentID: documentID}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		x, err := r.deps.Extractions.FindByDocument(gctx, documentID)
		if err != nil {
			return err
		}
		in.Data = x.StructuredData
		return nil
	})
	g.Go(func() error {
		c, err := r.deps.Registry.Claim(gctx, *doc.ClaimID)
		in.Claim = c
		return err
	})
	g.Go(func() error {
		s, err := r.deps.Settings.Get(gctx)
		if err == nil {
			in.Settings = *s
		}
		return err
	})
	g.Go(func() error {
		items, err := r.deps.Rules.Active(gctx)
		in.Rules = items
		return err
	})

	if err := g.Wait(); err != nil {
		return Input{}, err
	}
	return in, nil
}

func (r *repo) evaluate(ctx context.Context, t Type, in Input) (Evaluation, error) {
	if t == TypeDownstream {
		return Downstream(ctx, r.deps.Registry, in)
	}
	return Upstream(in), nil
}

// persist stores every pass of a run in one transaction, so a run either
// records all of its results or none. A document that left completed while
// the passes ran discards them.
func (r *repo) persist(ctx context.Context, documentID uuid.UUID, evals []Evaluation) ([]Result, error) {
	return repository.WithTx(ctx, r.db, func(tx *sql.Tx) ([]Result, error) {
		var status documents.Status
		if err := tx.QueryRowContext(
			ctx,
			"SELECT status FROM documents WHERE id = $1 FOR SHARE",
			documentID,
		).Scan(&status); err != nil {
			return nil, repository.MapError(err, documents.ErrNotFound, ErrDuplicate)
		}
		if status != documents.StatusCompleted {
			return nil, core.Illegal("document", string(status), "record validation")
		}

		results := make([]Result, len(evals))
		for i, ev := range evals {
			res, err := insertPass(ctx, tx, documentID, ev)
			if err != nil {
				return nil, fmt.Errorf("%s pass: %w", ev.Type, err)
			}
			results[i] = res
		}
		return results, nil
	})
}

// insertPass writes one result, its findings and the review audit entry.
func insertPass(ctx context.Context, tx *sql.Tx, documentID uuid.UUID, ev Evaluation) (Result, error) {
	var resultID uuid.UUID
	if err := tx.QueryRowContext(
		ctx,
		`INSERT INTO validation_results(
			document_id, validation_type, overall_status, field_comparisons,
			discrepancy_count, match_score, summary, validated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		RETURNING id`,
		documentID,
		ev.Type,
		ev.Status,
		repository.NewJSON(ev.Comparisons),
		ev.DiscrepancyCount,
		ev.MatchScore,
		ev.Summary,
	).Scan(&resultID); err != nil {
		return Result{}, fmt.Errorf("insert result: %w", err)
	}

	for _, f := range ev.Findings {
		if _, err := tx.ExecContext(
			ctx,
			`INSERT INTO validation_findings(
				validation_result_id, validation_rule_id, finding_type, severity,
				field, description, details)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			resultID,
			f.RuleID,
			f.FindingType,
			f.Severity,
			f.Field,
			f.Description,
			repository.NewJSON(f.Details),
		); err != nil {
			return Result{}, fmt.Errorf("insert finding %s: %w", f.Field, err)
		}
	}

	if err := audit.Record(ctx, tx, audit.RecordCommand{
		DocumentID: documentID,
		Action:     audit.ActionReview,
		Details: map[string]any{
			"validation_type":   string(ev.Type),
			"overall_status":    string(ev.Status),
			"match_score":       ev.MatchScore,
			"discrepancy_count": ev.DiscrepancyCount,
			"findings_count":    len(ev.Findings),
		},
	}); err != nil {
		return Result{}, err
	}

	return findResult(ctx, tx, resultID)
}

func (r *repo) ListResults(ctx context.Context, page pagination.PageRequest, filters ResultFilters) (*pagination.PageResult[Result], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(resultProjection, resultSort).
		WhereSearch(page.Search, "Summary")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count validation results: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanResult)
	if err != nil {
		return nil, fmt.Errorf("query validation results: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) FindResult(ctx context.Context, id uuid.UUID) (*Result, error) {
	res, err := findResult(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (r *repo) ListFindings(ctx context.Context, page pagination.PageRequest, filters FindingFilters) (*pagination.PageResult[Finding], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(findingProjection, findingSort).
		WhereSearch(page.Search, "Field", "Description")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count findings: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanFinding)
	if err != nil {
		return nil, fmt.Errorf("query findings: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) ResolveFinding(ctx context.Context, id uuid.UUID, cmd ResolveCommand) (*Resolution, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	resolver := auth.Actor(ctx)

	res, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Resolution, error) {
		f, err := findFinding(ctx, tx, id)
		if err != nil {
			return Resolution{}, err
		}
		if f.ResolutionStatus != ResolutionPending {
			return Resolution{}, core.Illegal("finding", string(f.ResolutionStatus), "resolve")
		}

		err = repository.ExecExpectOne(
			ctx, tx,
			`UPDATE validation_findings
			SET resolution_status = $1, resolved_by = $2, resolved_at = now()
			WHERE id = $3 AND resolution_status = $4`,
			cmd.Status, resolver, id, ResolutionPending,
		)
		if errors.Is(err, sql.ErrNoRows) {
			return Resolution{}, core.Conflict("finding", id)
		}
		if err != nil {
			return Resolution{}, err
		}

		var out Resolution
		details := map[string]any{
			"action":            "resolve_finding",
			"finding_id":        id.String(),
			"resolution_status": string(cmd.Status),
		}

		if cmd.Status == ResolutionAccepted && f.FindingType == FindingUpdateProposal {
			p, err := proposals.CreateFromFinding(ctx, tx, proposals.FromFinding{
				FindingID:   f.ID,
				ResultID:    f.ResultID,
				DocumentID:  f.DocumentID,
				FindingType: string(f.FindingType),
				Field:       f.Field,
				Details:     f.Details,
			})
			if err != nil {
				return Resolution{}, err
			}
			out.Proposal = &p
			details["proposal_id"] = p.ID.String()
		}

		if err := audit.Record(ctx, tx, audit.RecordCommand{
			DocumentID: f.DocumentID,
			Action:     audit.ActionReview,
			Details:    details,
		}); err != nil {
			return Resolution{}, err
		}

		out.Finding, err = findFinding(ctx, tx, id)
		return out, err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"finding resolved",
		"id", id,
		"status", cmd.Status,
		"proposal", res.Proposal != nil,
	)
	return &res, nil
}

func findResult(ctx context.Context, q repository.Querier, id uuid.UUID) (Result, error) {
	s, args := query.NewBuilder(resultProjection).BuildSingle("ID", id)

	res, err := repository.QueryOne(ctx, q, s, args, scanResult)
	if err != nil {
		return Result{}, repository.MapError(err, ErrResultNotFound, ErrDuplicate)
	}

	fs, fargs := query.
		NewBuilder(findingProjection, findingSort).
		WhereEquals("ResultID", id).
		Build()

	res.Findings, err = repository.QueryMany(ctx, q, fs, fargs, scanFinding)
	if err != nil {
		return Result{}, fmt.Errorf("query findings: %w", err)
	}
	return res, nil
}

func findFinding(ctx context.Context, q repository.Querier, id uuid.UUID) (Finding, error) {
	s, args := query.NewBuilder(findingProjection).BuildSingle("ID", id)

	f, err := repository.QueryOne(ctx, q, s, args, scanFinding)
	if err != nil {
		return Finding{}, repository.MapError(err, ErrFindingNotFound, ErrDuplicate)
	}
	return f, nil
}
