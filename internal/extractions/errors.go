package extractions

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/documents"
)

// Domain errors for extraction operations.
var (
	ErrNotFound  = errors.New("extraction result not found")
	ErrDuplicate = errors.New("extraction result already exists")
)

// MapHTTPStatus maps extraction domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, documents.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
