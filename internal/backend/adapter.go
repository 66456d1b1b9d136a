package backend

import (
	"context"
	"fmt"
	"time"
)

// Default timeouts for backend operations.
const (
	// DefaultIOTimeout bounds each network call an adapter makes.
	DefaultIOTimeout = 10 * time.Second
)

// Adapter is the capability set shared by the protocol variants.
//
// Adapters are not safe for concurrent use; the recorder serialises access.
type Adapter interface {
	// Ping verifies the server is reachable.
	Ping(ctx context.Context) error

	// CheckDatabase reports whether the named database or bucket exists.
	CheckDatabase(ctx context.Context, name string) (bool, error)

	// CreateDatabase creates the named database or bucket.
	CreateDatabase(ctx context.Context, name string) error

	// SwitchDatabase selects the write target.
	SwitchDatabase(name string) error

	// WritePoints writes a batch to the selected database. The retention
	// policy is ignored by adapters that have no such concept.
	WritePoints(ctx context.Context, points []Point, retentionPolicy string) error

	// Close releases resources. Errors are swallowed.
	Close()
}

// Opener constructs an adapter from a config snapshot.
type Opener func(cfg Config) (Adapter, error)

// Open constructs the adapter variant selected by cfg.APIVersion.
// No network traffic happens until the first adapter call.
func Open(cfg Config) (Adapter, error) {
	switch cfg.APIVersion {
	case V1:
		return openV1(cfg)
	case V2:
		return openV2(cfg)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownAPIVersion, int(cfg.APIVersion))
	}
}
