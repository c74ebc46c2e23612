package validation

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/documents"
	"github.com/abekarar/openimis-claimslens/internal/extractions"
	"github.com/abekarar/openimis-claimslens/internal/proposals"
	"github.com/abekarar/openimis-claimslens/internal/registry"
)

// Domain errors for validation operations.
var (
	ErrResultNotFound  = errors.New("validation result not found")
	ErrFindingNotFound = errors.New("validation finding not found")
	ErrDuplicate       = errors.New("validation record already exists")
)

// MapHTTPStatus maps validation domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	switch {
	case errors.Is(err, ErrResultNotFound),
		errors.Is(err, ErrFindingNotFound),
		errors.Is(err, documents.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate), errors.Is(err, proposals.ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, extractions.ErrNotFound),
		errors.Is(err, registry.ErrClaimNotFound):
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
