package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

const target = "registry"

type repo struct {
	db      *sql.DB
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a registry client over the registry schema of db. Each call
// is bounded by timeout.
func New(db *sql.DB, timeout time.Duration, logger *slog.Logger) System {
	return &repo{
		db:      db,
		timeout: timeout,
		logger:  logger.With("system", "registry"),
	}
}

func (r *repo) Claim(ctx context.Context, id uuid.UUID) (*Claim, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	c, err := repository.QueryOne(
		ctx, r.db,
		`SELECT c.id, c.insuree_id, c.health_facility_id, c.date_from, c.fields,
			i.fields, f.fields
		FROM registry.claims c
		JOIN registry.insurees i ON i.id = c.insuree_id
		JOIN registry.health_facilities f ON f.id = c.health_facility_id
		WHERE c.id = $1`,
		[]any{id},
		scanClaim,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrClaimNotFound
	}
	if err != nil {
		return nil, core.External(target, fmt.Errorf("claim %s: %w", id, err))
	}

	lines, err := repository.QueryMany(
		ctx, r.db,
		`SELECT kind, code, qty, price FROM registry.claim_lines WHERE claim_id = $1 ORDER BY kind, code`,
		[]any{id},
		scanLine,
	)
	if err != nil {
		return nil, core.External(target, fmt.Errorf("claim %s lines: %w", id, err))
	}

	for _, l := range lines {
		if l.kind == "item" {
			c.Items = append(c.Items, l.Line)
		} else {
			c.Services = append(c.Services, l.Line)
		}
	}
	return &c, nil
}

func (r *repo) Record(ctx context.Context, model Model, id uuid.UUID) (*Record, error) {
	table, err := tableFor(model)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rec, err := repository.QueryOne(
		ctx, r.db,
		fmt.Sprintf("SELECT id, fields FROM %s WHERE id = $1", table),
		[]any{id},
		scanRecord,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", model, id, ErrRecordNotFound)
	}
	if err != nil {
		return nil, core.External(target, fmt.Errorf("%s %s: %w", model, id, err))
	}
	return &rec, nil
}

func (r *repo) ActivePolicy(ctx context.Context, insureeID uuid.UUID, on time.Time) (*Policy, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	p, err := repository.QueryOne(
		ctx, r.db,
		`SELECT p.id, p.insuree_id, p.start_date, p.expiry_date, p.status, p.product_id, COALESCE(pr.code, '')
		FROM registry.policies p
		LEFT JOIN registry.products pr ON pr.id = p.product_id
		WHERE p.insuree_id = $1 AND p.status = 'active' AND p.start_date <= $2 AND p.expiry_date >= $2
		ORDER BY p.expiry_date DESC
		LIMIT 1`,
		[]any{insureeID, on},
		scanPolicy,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, core.External(target, fmt.Errorf("policy for %s: %w", insureeID, err))
	}
	return &p, nil
}

func (r *repo) Coverage(ctx context.Context, productID uuid.UUID) (*Coverage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cov := Coverage{ProductID: productID}
	err := r.db.QueryRowContext(ctx, "SELECT code FROM registry.products WHERE id = $1", productID).Scan(&cov.ProductCode)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", productID, ErrRecordNotFound)
	}
	if err != nil {
		return nil, core.External(target, fmt.Errorf("product %s: %w", productID, err))
	}

	codes := func(s repository.Scanner) (string, error) {
		var c string
		err := s.Scan(&c)
		return c, err
	}
	if cov.Items, err = repository.QueryMany(
		ctx, r.db,
		"SELECT item_code FROM registry.product_items WHERE product_id = $1 ORDER BY item_code",
		[]any{productID}, codes,
	); err != nil {
		return nil, core.External(target, fmt.Errorf("product %s items: %w", productID, err))
	}
	if cov.Services, err = repository.QueryMany(
		ctx, r.db,
		"SELECT service_code FROM registry.product_services WHERE product_id = $1 ORDER BY service_code",
		[]any{productID}, codes,
	); err != nil {
		return nil, core.External(target, fmt.Errorf("product %s services: %w", productID, err))
	}
	return &cov, nil
}

func (r *repo) Duplicates(ctx context.Context, claim *Claim) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	ids, err := repository.QueryMany(
		ctx, r.db,
		`SELECT id FROM registry.claims
		WHERE insuree_id = $1 AND health_facility_id = $2 AND date_from = $3 AND id <> $4
		ORDER BY id`,
		[]any{claim.InsureeID, claim.FacilityID, claim.DateFrom, claim.ID},
		func(s repository.Scanner) (uuid.UUID, error) {
			var id uuid.UUID
			err := s.Scan(&id)
			return id, err
		},
	)
	if err != nil {
		return nil, core.External(target, fmt.Errorf("duplicates of %s: %w", claim.ID, err))
	}
	return ids, nil
}

func (r *repo) WriteField(ctx context.Context, model Model, id uuid.UUID, field string, value any) error {
	return r.write(ctx, r.db, model, id, field, value)
}

// WriteFieldTx writes inside tx, so the change commits or rolls back with
// the caller's own updates. The registry schema shares the database.
func (r *repo) WriteFieldTx(ctx context.Context, tx *sql.Tx, model Model, id uuid.UUID, field string, value any) error {
	return r.write(ctx, tx, model, id, field, value)
}

func (r *repo) write(ctx context.Context, e repository.Executor, model Model, id uuid.UUID, field string, value any) error {
	table, err := tableFor(model)
	if err != nil {
		return err
	}
	if field == "" {
		return core.Invalid("field", "is required")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	err = repository.ExecExpectOne(
		ctx, e,
		fmt.Sprintf(
			"UPDATE %s SET fields = jsonb_set(fields, ARRAY[$1::text], $2::jsonb, true), updated_at = now() WHERE id = $3",
			table,
		),
		field, repository.NewJSON(value), id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", model, id, ErrRecordNotFound)
	}
	if err != nil {
		return core.External(target, fmt.Errorf("write %s.%s: %w", model, field, err))
	}

	r.logger.Info("registry field written", "model", model, "id", id, "field", field)
	return nil
}

func tableFor(model Model) (string, error) {
	switch model {
	case ModelInsuree:
		return "registry.insurees", nil
	case ModelHealthFacility:
		return "registry.health_facilities", nil
	default:
		return "", ErrUnknownModel
	}
}

type kindLine struct {
	Line
	kind string
}

func scanClaim(s repository.Scanner) (Claim, error) {
	var (
		c                         Claim
		fields, insuree, facility repository.JSON[map[string]any]
	)
	err := s.Scan(&c.ID, &c.InsureeID, &c.FacilityID, &c.DateFrom, &fields, &insuree, &facility)
	c.Fields = fields.V
	c.Insuree = Record{ID: c.InsureeID, Fields: insuree.V}
	c.Facility = Record{ID: c.FacilityID, Fields: facility.V}
	return c, err
}

func scanLine(s repository.Scanner) (kindLine, error) {
	var l kindLine
	err := s.Scan(&l.kind, &l.Code, &l.Quantity, &l.Price)
	return l, err
}

func scanRecord(s repository.Scanner) (Record, error) {
	var (
		rec    Record
		fields repository.JSON[map[string]any]
	)
	err := s.Scan(&rec.ID, &fields)
	rec.Fields = fields.V
	return rec, err
}

func scanPolicy(s repository.Scanner) (Policy, error) {
	var p Policy
	err := s.Scan(&p.ID, &p.InsureeID, &p.StartDate, &p.ExpiryDate, &p.Status, &p.ProductID, &p.ProductCode)
	return p, err
}
