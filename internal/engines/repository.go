package engines

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
	sealer     *Sealer
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates an engine config repository implementing the System interface.
func New(db *sql.DB, sealer *Sealer, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		sealer:     sealer,
		logger:     logger.With("system", "engines"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest, filters Filters) (*pagination.PageResult[Engine], error) {
	page.Normalize(r.pagination)

	qb := query.
		NewBuilder(projection, defaultSort).
		WhereSearch(page.Search, "Name", "ModelName")

	filters.Apply(qb)

	if len(page.Sort) > 0 {
		qb.OrderByFields(page.Sort)
	}

	countSQL, countArgs := qb.BuildCount()
	total, err := repository.Count(ctx, r.db, countSQL, countArgs)
	if err != nil {
		return nil, fmt.Errorf("count engines: %w", err)
	}

	pageSQL, pageArgs := qb.BuildPage(page.PageSize, page.Offset())
	items, err := repository.QueryMany(ctx, r.db, pageSQL, pageArgs, scanEngine)
	if err != nil {
		return nil, fmt.Errorf("query engines: %w", err)
	}

	result := pagination.NewPageResultFor(unseal(items), total, page)
	return &result, nil
}

func (r *repo) Find(ctx context.Context, id uuid.UUID) (*Engine, error) {
	e, err := r.find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}
	return &e.Engine, nil
}

func (r *repo) Active(ctx context.Context) ([]Engine, error) {
	active := true
	q, args := query.
		NewBuilder(projection, defaultSort).
		WhereEquals("IsActive", &active).
		Build()

	items, err := repository.QueryMany(ctx, r.db, q, args, scanEngine)
	if err != nil {
		return nil, fmt.Errorf("query active engines: %w", err)
	}
	return unseal(items), nil
}

func (r *repo) Credentials(ctx context.Context, id uuid.UUID) (*Credentials, error) {
	e, err := r.find(ctx, r.db, id)
	if err != nil {
		return nil, err
	}

	key, err := r.sealer.Open(e.sealed)
	if err != nil {
		return nil, fmt.Errorf("engine %s: %w", id, err)
	}

	r.logger.Info("engine credentials read", "id", id)
	return &Credentials{EngineID: e.ID, EndpointURL: e.EndpointURL, APIKey: key}, nil
}

func (r *repo) Create(ctx context.Context, cmd Command) (*Engine, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var sealed []byte
	if cmd.APIKey != nil {
		var err error
		if sealed, err = r.sealer.Seal(*cmd.APIKey); err != nil {
			return nil, fmt.Errorf("seal api key: %w", err)
		}
	}

	q := `
		INSERT INTO engine_configs(name, adapter, endpoint_url, model_name, deployment_mode,
			is_primary, is_fallback, is_active, max_tokens, temperature, timeout_seconds, api_key_sealed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		` + returning

	args := []any{
		cmd.Name, cmd.Adapter, cmd.EndpointURL, cmd.ModelName, cmd.Deployment,
		cmd.IsPrimary, cmd.IsFallback, cmd.active(), cmd.MaxTokens, *cmd.Temperature, cmd.TimeoutSeconds, sealed,
	}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (sealedEngine, error) {
		if err := lockPrimary(ctx, tx, cmd.IsPrimary); err != nil {
			return sealedEngine{}, err
		}
		e, err := repository.QueryOne(ctx, tx, q, args, scanEngine)
		if err != nil {
			return sealedEngine{}, err
		}
		if e.IsPrimary {
			if err := clearPrimary(ctx, tx, e.ID); err != nil {
				return sealedEngine{}, err
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("engine created", "id", e.ID, "name", e.Name, "primary", e.IsPrimary)
	return &e.Engine, nil
}

func (r *repo) Update(ctx context.Context, id uuid.UUID, cmd Command) (*Engine, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	e, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (sealedEngine, error) {
		if err := lockPrimary(ctx, tx, cmd.IsPrimary); err != nil {
			return sealedEngine{}, err
		}
		current, err := r.find(ctx, tx, id)
		if err != nil {
			return sealedEngine{}, err
		}

		sealed := current.sealed
		if cmd.APIKey != nil {
			if sealed, err = r.sealer.Seal(*cmd.APIKey); err != nil {
				return sealedEngine{}, fmt.Errorf("seal api key: %w", err)
			}
		}

		q := `
			UPDATE engine_configs
			SET name = $1, adapter = $2, endpoint_url = $3, model_name = $4, deployment_mode = $5,
				is_primary = $6, is_fallback = $7, is_active = $8, max_tokens = $9, temperature = $10,
				timeout_seconds = $11, api_key_sealed = $12, updated_at = now()
			WHERE id = $13
			` + returning

		args := []any{
			cmd.Name, cmd.Adapter, cmd.EndpointURL, cmd.ModelName, cmd.Deployment,
			cmd.IsPrimary, cmd.IsFallback, cmd.active(), cmd.MaxTokens, *cmd.Temperature, cmd.TimeoutSeconds,
			sealed, id,
		}

		e, err := repository.QueryOne(ctx, tx, q, args, scanEngine)
		if err != nil {
			return sealedEngine{}, err
		}
		if e.IsPrimary {
			if err := clearPrimary(ctx, tx, e.ID); err != nil {
				return sealedEngine{}, err
			}
		}
		return e, nil
	})
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("engine updated", "id", e.ID, "name", e.Name, "primary", e.IsPrimary)
	return &e.Engine, nil
}

func (r *repo) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (struct{}, error) {
		return struct{}{}, repository.ExecExpectOne(ctx, tx, "DELETE FROM engine_configs WHERE id = $1", id)
	})
	if repository.IsForeignKeyViolation(err) {
		return ErrInUse
	}
	if err != nil {
		return repository.MapError(err, ErrNotFound, ErrDuplicate)
	}

	r.logger.Info("engine deleted", "id", id)
	return nil
}

func (r *repo) find(ctx context.Context, db repository.Querier, id uuid.UUID) (sealedEngine, error) {
	q, args := query.NewBuilder(projection).BuildSingle("ID", id)
	e, err := repository.QueryOne(ctx, db, q, args, scanEngine)
	if err != nil {
		return sealedEngine{}, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return e, nil
}

// lockPrimary serializes writers that claim the primary flag.
func lockPrimary(ctx context.Context, tx *sql.Tx, primary bool) error {
	if !primary {
		return nil
	}
	return repository.LockKey(ctx, tx, "engine_configs:primary")
}

// clearPrimary keeps at most one primary engine.
func clearPrimary(ctx context.Context, tx *sql.Tx, keep uuid.UUID) error {
	_, err := tx.ExecContext(
		ctx,
		"UPDATE engine_configs SET is_primary = false, updated_at = now() WHERE id <> $1 AND is_primary",
		keep,
	)
	if err != nil {
		return fmt.Errorf("clear primary: %w", err)
	}
	return nil
}
