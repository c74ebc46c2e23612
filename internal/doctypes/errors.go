package doctypes

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for document type operations.
var (
	ErrNotFound  = errors.New("document type not found")
	ErrDuplicate = errors.New("document type code already exists")
	ErrInUse     = errors.New("document type is referenced by documents")
)

// MapHTTPStatus maps document type errors to HTTP status codes.
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
