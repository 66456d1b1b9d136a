package recorder

import "errors"

// Domain-specific errors for recorder operations.
var (
	// ErrSettingsVersion is returned when stored settings cannot be migrated.
	ErrSettingsVersion = errors.New("recorder: unsupported settings version")

	// ErrConnect wraps failures while establishing a backend connection.
	ErrConnect = errors.New("recorder: connect failed")
)
