package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/abekarar/openimis-claimslens/pkg/repository"
)

var (
	errMissing = errors.New("missing")
	errExists  = errors.New("exists")
)

func TestMapError(t *testing.T) {
	other := errors.New("boom")
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"nil", nil, nil},
		{"no rows", sql.ErrNoRows, errMissing},
		{"wrapped no rows", fmt.Errorf("load: %w", sql.ErrNoRows), errMissing},
		{"unique violation", &pgconn.PgError{Code: "23505"}, errExists},
		{"other", other, other},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := repository.MapError(tt.err, errMissing, errExists); !errors.Is(got, tt.want) && got != tt.want {
				t.Errorf("MapError = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConstraintPredicates(t *testing.T) {
	fk := fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23503"})
	if !repository.IsForeignKeyViolation(fk) {
		t.Error("IsForeignKeyViolation = false for 23503")
	}
	if repository.IsCheckViolation(fk) {
		t.Error("IsCheckViolation = true for 23503")
	}
	if !repository.IsSerializationFailure(&pgconn.PgError{Code: "40001"}) {
		t.Error("IsSerializationFailure = false for 40001")
	}
}

func TestHashKey(t *testing.T) {
	a := repository.HashKey("prompts:classification")
	if a != repository.HashKey("prompts:classification") {
		t.Error("HashKey is not stable")
	}
	if a == repository.HashKey("prompts:extraction") {
		t.Error("distinct keys hashed to the same lock")
	}
}
