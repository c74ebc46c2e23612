package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

type repo struct {
	db     *sql.DB
	logger *slog.Logger
}

// New creates a settings repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger) System {
	return &repo{
		db:     db,
		logger: logger.With("system", "settings"),
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger)
}

const selectSettings = `
	SELECT auto_approve_threshold, review_threshold, partial_match_threshold,
		numeric_tolerance, date_formats, updated_at
	FROM module_settings
	WHERE id = 1`

func (r *repo) Get(ctx context.Context) (*Settings, error) {
	s, err := get(ctx, r.db)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repo) Update(ctx context.Context, cmd UpdateCommand) (*Settings, error) {
	s, err := repository.WithTx(ctx, r.db, func(tx *sql.Tx) (Settings, error) {
		if err := repository.LockKey(ctx, tx, "module_settings"); err != nil {
			return Settings{}, err
		}

		current, err := get(ctx, tx)
		if err != nil {
			return Settings{}, err
		}

		next := current.Apply(cmd)
		if err := next.Validate(); err != nil {
			return Settings{}, err
		}

		q := `
			INSERT INTO module_settings(id, auto_approve_threshold, review_threshold,
				partial_match_threshold, numeric_tolerance, date_formats, updated_at)
			VALUES (1, $1, $2, $3, $4, $5, now())
			ON CONFLICT (id) DO UPDATE SET
				auto_approve_threshold = EXCLUDED.auto_approve_threshold,
				review_threshold = EXCLUDED.review_threshold,
				partial_match_threshold = EXCLUDED.partial_match_threshold,
				numeric_tolerance = EXCLUDED.numeric_tolerance,
				date_formats = EXCLUDED.date_formats,
				updated_at = now()
			RETURNING auto_approve_threshold, review_threshold, partial_match_threshold,
				numeric_tolerance, date_formats, updated_at`

		args := []any{
			next.AutoApproveThreshold,
			next.ReviewThreshold,
			next.PartialMatchThreshold,
			next.NumericTolerance,
			repository.NewJSON(next.DateFormats),
		}
		return repository.QueryOne(ctx, tx, q, args, scanSettings)
	})
	if err != nil {
		return nil, err
	}

	r.logger.Info(
		"settings updated",
		"auto_approve_threshold", s.AutoApproveThreshold,
		"review_threshold", s.ReviewThreshold,
	)
	return &s, nil
}

func get(ctx context.Context, q repository.Querier) (Settings, error) {
	s, err := repository.QueryOne(ctx, q, selectSettings, nil, scanSettings)
	if errors.Is(err, sql.ErrNoRows) {
		return Defaults(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("query settings: %w", err)
	}
	return s, nil
}

func scanSettings(s repository.Scanner) (Settings, error) {
	var (
		out     Settings
		formats repository.JSON[[]string]
	)
	err := s.Scan(
		&out.AutoApproveThreshold,
		&out.ReviewThreshold,
		&out.PartialMatchThreshold,
		&out.NumericTolerance,
		&formats,
		&out.UpdatedAt,
	)
	out.DateFormats = formats.V
	return out, err
}
