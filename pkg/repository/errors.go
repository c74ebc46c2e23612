package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgDuplicateKeyCode      = "23505"
	pgForeignKeyCode        = "23503"
	pgCheckViolationCode    = "23514"
	pgSerializationFailCode = "40001"
)

// MapError translates database errors to domain errors.
// It maps sql.ErrNoRows to notFoundErr and PostgreSQL unique violation (23505)
// to duplicateErr. Other errors are returned unchanged.
func MapError(err error, notFoundErr, duplicateErr error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return notFoundErr
	}

	if pgCode(err) == pgDuplicateKeyCode {
		return duplicateErr
	}

	return err
}

// IsForeignKeyViolation reports whether err is a PostgreSQL foreign key violation (23503).
func IsForeignKeyViolation(err error) bool {
	return pgCode(err) == pgForeignKeyCode
}

// IsCheckViolation reports whether err is a PostgreSQL check constraint violation (23514).
func IsCheckViolation(err error) bool {
	return pgCode(err) == pgCheckViolationCode
}

// IsSerializationFailure reports whether err is a PostgreSQL serialization failure (40001).
func IsSerializationFailure(err error) bool {
	return pgCode(err) == pgSerializationFailCode
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
