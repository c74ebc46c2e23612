package repository

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSON adapts a Go value to a jsonb column.
// A NULL column scans as the zero value of T.
type JSON[T any] struct {
	V T
}

// NewJSON wraps v for use as a query argument.
func NewJSON[T any](v T) JSON[T] {
	return JSON[T]{V: v}
}

// Value implements driver.Valuer.
func (j JSON[T]) Value() (driver.Value, error) {
	data, err := json.Marshal(j.V)
	if err != nil {
		return nil, fmt.Errorf("marshal json column: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner.
func (j *JSON[T]) Scan(src any) error {
	var zero T
	switch v := src.(type) {
	case nil:
		j.V = zero
		return nil
	case []byte:
		return json.Unmarshal(v, &j.V)
	case string:
		return json.Unmarshal([]byte(v), &j.V)
	default:
		return fmt.Errorf("scan json column: unsupported type %T", src)
	}
}
