package backend

import "errors"

// Domain-specific errors for backend operations.
var (
	// ErrUnknownAPIVersion is returned by Open for an unsupported protocol version.
	ErrUnknownAPIVersion = errors.New("backend: unknown api version")

	// ErrConnectionFailed is returned when a client handle cannot be created.
	ErrConnectionFailed = errors.New("backend: connection failed")

	// ErrNotReady is returned when the server answers a ping but is not ready.
	ErrNotReady = errors.New("backend: server not ready")

	// ErrOrgRequired is returned when a v2 bucket is created without an organisation.
	ErrOrgRequired = errors.New("backend: organisation required")

	// ErrNoDatabase is returned by WritePoints before a database is selected.
	ErrNoDatabase = errors.New("backend: no database selected")

	// ErrQueryFailed is returned when a v1 query reports an error.
	ErrQueryFailed = errors.New("backend: query failed")

	// ErrWriteFailed is returned when points cannot be written.
	ErrWriteFailed = errors.New("backend: write failed")
)
