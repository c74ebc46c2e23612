package engines

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for engine config operations.
var (
	ErrNotFound  = errors.New("engine config not found")
	ErrDuplicate = errors.New("engine name already exists")
	ErrInUse     = errors.New("engine config is referenced by documents, scores, or rules")
)

// MapHTTPStatus maps engine errors to HTTP status codes.
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
	return http.StatusInternalServerError
}
