package rules

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for validation rule operations.
var (
	ErrNotFound  = errors.New("validation rule not found")
	ErrDuplicate = errors.New("validation rule code already exists")
	ErrInUse     = errors.New("validation rule is referenced by findings")
	ErrEmpty     = errors.New("rule document is empty")
)

// MapHTTPStatus maps rule domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) || errors.Is(err, ErrInUse) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrEmpty) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
