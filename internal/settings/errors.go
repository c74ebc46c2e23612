package settings

import (
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// MapHTTPStatus maps settings errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	return http.StatusInternalServerError
}
