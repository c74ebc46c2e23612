package rules

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

// New creates a validation rule repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "rules"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Rule], error) {
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
		return nil, fmt.Errorf("count rules: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}

	result := pagination.NewPageResultFor(items, total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Rule, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)

	rule, err := repository.QueryOne(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &rule, nil
}

func (r *repo) Active(ctx context.Context) ([]Rule, error) {
	active := true
	q, args := Filters{IsActive: &active}.
		Apply(query.NewBuilder(projection, defaultSort)).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanRule)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	return items, nil
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Rule, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		INSERT INTO validation_rules(code, name, rule_type, rule_definition, severity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		` + returning

	args := []any{cmd.Code, cmd.Name, cmd.RuleType, repository.NewJSON(cmd.Definition), cmd.Severity, cmd.active()}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		return repository.QueryOne(ctx, tx, q, args, scanRule)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule created", "id", rule.ID, "code", rule.Code)
	return &rule, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Rule, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	q := `
		UPDATE validation_rules
		SET code = $1, name = $2, rule_type = $3, rule_definition = $4, severity = $5,
			is_active = $6, updated_at = now()
		WHERE id = $7
		` + returning

	args := []any{cmd.Code, cmd.Name, cmd.RuleType, repository.NewJSON(cmd.Definition), cmd.Severity, cmd.active(), id}

	rule, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Rule, error) {
		return repository.QueryOne(ctx, tx, q, args, scanRule)
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule updated", "id", rule.ID, "code", rule.Code)
	return &rule, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM validation_rules WHERE id = $1", id)
	})
	if repository.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("rule deleted", "id", id)
	return nil
}

func (r *repo) Import(ctx context.Context, data []byte) (*ImportResult, error) {
	cmds, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}

	q := `
		INSERT INTO validation_rules(code, name, rule_type, rule_definition, severity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			rule_type = EXCLUDED.rule_type,
			rule_definition = EXCLUDED.rule_definition,
			severity = EXCLUDED.severity,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		` + returning + `, (xmax = 0)`

	result, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (ImportResult, error) {
		out := ImportResult{Rules: make([]Rule, 0, len(cmds))}
		for _, cmd := range cmds {
			args := []any{cmd.Code, cmd.Name, cmd.RuleType, repository.NewJSON(cmd.Definition), cmd.Severity, cmd.active()}

			var inserted bool
			rule, err := repository.QueryOne(ctx, tx, q, args, func(s repository.Scanner) (Rule, error) {
				return scanRule(insertedScanner{s, &inserted})
			})
			if err != nil {
				return ImportResult{}, fmt.Errorf("upsert %s: %w", cmd.Code, err)
			}

			if inserted {
				out.Created++
			} else {
				out.Updated++
			}
			out.Rules = append(out.Rules, rule)
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info("rules imported", "created", result.Created, "updated", result.Updated)
	return &result, nil
}

// insertedScanner appends the upsert's inserted flag to a rule scan.
type insertedScanner struct {
	repository.Scanner
	inserted *bool
}

func (s insertedScanner) Scan(dest ...any) error {
	return s.Scanner.Scan(append(dest, s.inserted)...)
}
