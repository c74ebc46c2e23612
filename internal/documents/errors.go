package documents

import (
	"errors"
	"net/http"

	"github.com/abekarar/openimis-claimslens/internal/core"
	"github.com/abekarar/openimis-claimslens/internal/registry"
	"github.com/abekarar/openimis-claimslens/pkg/storage"
)

// Domain errors for document operations.
var (
	ErrNotFound            = errors.New("document not found")
	ErrDuplicate           = errors.New("document already exists")
	ErrFileTooLarge        = errors.New("file exceeds maximum upload size")
	ErrUnsupportedType     = errors.New("file type is not accepted")
	ErrInvalidFile         = errors.New("invalid file")
	ErrUnknownDocumentType = errors.New("document type does not exist")
)

// MapHTTPStatus maps document domain errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if status := core.MapHTTPStatus(err); status != 0 {
		return status
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, storage.ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrDuplicate) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrFileTooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	if errors.Is(err, ErrUnsupportedType) {
		return http.StatusUnsupportedMediaType
	}
	if errors.Is(err, ErrInvalidFile) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrUnknownDocumentType) || errors.Is(err, registry.ErrClaimNotFound) {
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}
