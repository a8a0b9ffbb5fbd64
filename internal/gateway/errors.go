package gateway

import "errors"

// Error kinds surfaced by the pipeline. Handlers map them to HTTP statuses
// with errors.Is.
var (
	// ErrInvalidService: the requested service class is not registered.
	ErrInvalidService = errors.New("invalid service")
	// ErrInvalidPlan: the resolved plan name is not in the registry.
	ErrInvalidPlan = errors.New("invalid plan")
	// ErrRateLimited: the admission decision denied the request.
	ErrRateLimited = errors.New("too many requests")
	// ErrBackendUnavailable: the chosen backend instance failed.
	ErrBackendUnavailable = errors.New("backend unavailable")
	// ErrStoreUnavailable: the key/value store failed mid-request.
	ErrStoreUnavailable = errors.New("store unavailable")
)
