package registry

import "errors"

// Domain errors for registry lookups. They are not wrapped as external
// failures: the registry answered, the record is simply absent.
var (
	ErrClaimNotFound  = errors.New("claim not found in registry")
	ErrRecordNotFound = errors.New("registry record not found")
	ErrUnknownModel   = errors.New("registry model must be insuree or health_facility")
)
