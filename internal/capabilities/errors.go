package capabilities

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for capability score operations.
var (
	ErrNotFound      = errors.New("capability score not found")
	ErrDuplicate     = errors.New("an active score already exists for this engine, language, and document type")
	ErrUnknownEngine = errors.New("engine config or document type does not exist")
)

// MapHTTPStatus maps capability errors to HTTP status codes.
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
	if errors.Is(err, ErrUnknownEngine) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
