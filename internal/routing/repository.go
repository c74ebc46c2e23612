package routing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/abekarar/openimis-claimslens/internal/capabilities"
	"github.com/abekarar/openimis-claimslens/internal/engines"
	"github.com/abekarar/openimis-claimslens/pkg/pagination"
	"github.com/abekarar/openimis-claimslens/pkg/query"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db           *sql.DB
	engines      engines.System
	capabilities capabilities.System
	logger       *slog.Logger
	pagination   pagination.Config
}

// New creates the routing system. Engines and capability scores are read
// through their own systems.
func New(
	db *sql.DB,
	eng engines.System,
	caps capabilities.System,
	logger *slog.Logger,
	pagination pagination.Config,
) System {
	return &repo{
		db:           db,
		engines:      eng,
		capabilities: caps,
		logger:       logger.With("system", "routing"),
		pagination:   pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) Policy(ctx context.Context) (*Policy, error) {
	p, err := repository.QueryOne(
		ctx, r.db,
		"SELECT accuracy_weight, cost_weight, speed_weight, updated_at FROM routing_policy WHERE id = 1",
		nil, scanPolicy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		d := DefaultPolicy()
		return &d, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query routing policy: %w", err)
	}
	return &p, nil
}

func (r *repo) UpdatePolicy(ctx context.Context, p Policy) (*Policy, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO routing_policy(id, accuracy_weight, cost_weight, speed_weight, updated_at)
		VALUES (1, $1, $2, $3, now())
		ON CONFLICT (id) DO UPDATE SET
			accuracy_weight = EXCLUDED.accuracy_weight,
			cost_weight = EXCLUDED.cost_weight,
			speed_weight = EXCLUDED.speed_weight,
			updated_at = now()
		RETURNING accuracy_weight, cost_weight, speed_weight, updated_at`

	out, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Policy, error) {
		return repository.QueryOne(ctx, tx, q, []any{p.AccuracyWeight, p.CostWeight, p.SpeedWeight}, scanPolicy)
	})
	if err != nil {
		return nil, fmt.Errorf("update routing policy: %w", err)
	}

	r.logger.Info(
		"routing policy updated",
		"accuracy", out.AccuracyWeight,
		"cost", out.CostWeight,
		"speed", out.SpeedWeight,
	)
	return &out, nil
}

func (r *repo) ListRules(ctx context.Context, page pagination.PageRequest, filters RuleFilters) (*pagination.PageResult[Rule], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(ruleProjection, defaultRuleSort).
		WhereSearch(page.Search, "EngineName", "Language")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count routing rules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query routing rules: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) FindRule(ctx context.Context, id uuid.UUID) (*Rule, error) {
	rule, err := findRule(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *repo) CreateRule(ctx context.Context, cmd RuleCommand) (*Rule, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		var id uuid.UUID
		err := tx.QueryRowContext(
			ctx,
			`INSERT INTO engine_routing_rules(engine_config_id, language, document_type_id, min_confidence, priority, is_active)
			VALUES ($1, $2, $3, $4, $5, $6)
			`+returningRule,
			cmd.EngineID, cmd.Language, cmd.DocumentTypeID, cmd.MinConfidence, *cmd.Priority, cmd.active(),
		).Scan(&id)
		if err != nil {
			return Rule{}, err
		}
		return findRule(ctx, tx, id)
	})
	if err != nil {
		return nil, r.mapWriteError(err)
	}

	r.logger.Info("routing rule created", "id", rule.ID, "engine", rule.EngineName, "priority", rule.Priority)
	return &rule, nil
}

func (r *repo) UpdateRule(ctx context.Context, id uuid.UUID, cmd RuleCommand) (*Rule, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		if err := repository.ExecExpectOne(
			ctx, tx,
			`UPDATE engine_routing_rules
			SET engine_config_id = $1, language = $2, document_type_id = $3, min_confidence = $4,
				priority = $5, is_active = $6, updated_at = now()
			WHERE id = $7`,
			cmd.EngineID, cmd.Language, cmd.DocumentTypeID, cmd.MinConfidence, *cmd.Priority, cmd.active(), id,
		); err != nil {
			return Rule{}, err
		}
		return findRule(ctx, tx, id)
	})
	if err != nil {
		return nil, r.mapWriteError(err)
	}

	r.logger.Info("routing rule updated", "id", rule.ID, "priority", rule.Priority)
	return &rule, nil
}

func (r *repo) DeleteRule(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM engine_routing_rules WHERE id = $1", id)
	})
	if err != nil {
		return repository.MapError(err, ErrRuleNotFound, ErrDuplicate)
	}

	r.logger.Info("routing rule deleted", "id", id)
	return nil
}

func (r *repo) Route(ctx context.Context, req Request) (*Decision, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	snap, err := r.snapshot(ctx, req)
	if err != nil {
		return nil, err
	}

	d, err := Select(snap, req)
	if err != nil {
		r.logger.Warn("routing exhausted", "language", req.Language, "document_type", req.DocumentTypeID)
		return nil, err
	}

	r.logger.Info(
		"engine selected",
		"engine", d.EngineName,
		"reason", d.Reason,
		"language", req.Language,
	)
	return &d, nil
}

// snapshot loads engines, rules, scores, and policy concurrently.
func (r *repo) snapshot(ctx context.Context, req Request) (Snapshot, error) {
	var snap Snapshot
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := r.engines.Active(gctx)
		snap.Engines = items
		return err
	})
	g.Go(func() error {
		items, err := r.activeRules(gctx)
		snap.Rules = items
		return err
	})
	g.Go(func() error {
		items, err := r.capabilities.Active(gctx, req.Language, req.DocumentTypeID)
		snap.Scores = items
		return err
	})
	g.Go(func() error {
		p, err := r.Policy(gctx)
		if err == nil {
			snap.Policy = *p
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return Snapshot{}, fmt.Errorf("load routing snapshot: %w", err)
	}
	return snap, nil
}

func (r *repo) activeRules(ctx context.Context) ([]Rule, error) {
	active := true
	q, args := query.
		NewBuilder(ruleProjection, defaultRuleSort).
		WhereEquals("IsActive", &active).
		Build()
	return repository.QueryMany(ctx, r.db, q, args, scanRule)
}

func (r *repo) mapWriteError(err error) error {
	if repository.IsForeignKeyViolation(err) {
		return ErrUnknownEngine
	}
	return repository.MapError(err, ErrRuleNotFound, ErrDuplicate)
}

func findRule(ctx context.Context, db repository.Querier, id uuid.UUID) (Rule, error) {
	q, args := query.NewBuilder(ruleProjection).BuildSingle("ID", id)
	rule, err := repository.QueryOne(ctx, db, q, args, scanRule)
	if err != nil {
		return Rule{}, repository.MapError(err, ErrRuleNotFound, ErrDuplicate)
	}
	return rule, nil
}
