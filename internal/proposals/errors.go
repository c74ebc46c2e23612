package proposals

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/registry"
)

// Domain errors for proposal operations.
var (
	ErrNotFound  = errors.New("registry proposal not found")
	ErrDuplicate = errors.New("finding already has a proposal")
)

// MapHTTPStatus maps proposal domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, registry.ErrRecordNotFound) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
