package settings

import "errors"

// Domain-specific errors for settings operations.
var (
	// ErrInvalidPath is returned when a dotted path is empty or malformed.
	ErrInvalidPath = errors.New("settings: invalid path")

	// ErrNotMapping is returned when a path traverses a non-mapping value.
	ErrNotMapping = errors.New("settings: path traverses a non-mapping value")

	// ErrLoadFailed is returned when the settings file cannot be read or parsed.
	ErrLoadFailed = errors.New("settings: load failed")

	// ErrSaveFailed is returned when the settings file cannot be written.
	ErrSaveFailed = errors.New("settings: save failed")

	// ErrWatchFailed is returned when the file watcher cannot be started.
	ErrWatchFailed = errors.New("settings: watch failed")
)
