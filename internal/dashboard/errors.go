package dashboard

import "errors"

var (
	// ErrUnauthenticated indicates a request without a caller identity.
	ErrUnauthenticated = errors.New("dashboard: caller identity required")
	// ErrForbidden indicates a caller unknown to the user directory.
	ErrForbidden = errors.New("dashboard: caller not permitted")
	// ErrValidation indicates invalid query parameters.
	ErrValidation = errors.New("dashboard: invalid query")
)
