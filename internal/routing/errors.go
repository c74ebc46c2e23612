package routing

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for routing operations.
var (
	ErrRuleNotFound  = errors.New("routing rule not found")
	ErrDuplicate     = errors.New("routing rule already exists")
	ErrUnknownEngine = errors.New("engine config or document type does not exist")
)

// MapHTTPStatus maps routing errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	if errors.Is(err, ErrRuleNotFound) {
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
