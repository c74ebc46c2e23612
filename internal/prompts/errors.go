package prompts

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
)

// Domain errors for prompt template operations.
var (
	ErrNotFound            = errors.New("prompt template not found")
	ErrDuplicate           = errors.New("prompt template version already exists")
	ErrInvalidType         = errors.New("prompt type must be classification or extraction")
	ErrUnknownDocumentType = errors.New("document type does not exist")
)

// MapHTTPStatus maps prompt domain errors to HTTP status codes.
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
	if errors.Is(err, ErrInvalidType) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrUnknownDocumentType) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
