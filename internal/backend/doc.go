// Package backend provides the InfluxDB protocol adapters points are written through.
//
// Two protocol generations are supported behind one Adapter interface:
//
//   - v1: host/port addressing, optional basic credentials, TLS, and an
//     optional UDP write transport. Databases are flat names and writes may
//     name a retention policy.
//   - v2: a server URL with a token (or username/password sign-in) and an
//     organisation. "Database" means bucket; retention policies are ignored.
//
// # Configuration
//
// Config is a comparable snapshot of connection parameters derived purely
// from settings by ConfigFromSettings. Callers compare snapshots to decide
// whether a reconnect is needed before touching the network.
//
//	cfg := backend.ConfigFromSettings(store)
//	adapter, err := backend.Open(cfg)
//	if err != nil {
//	    return err
//	}
//	defer adapter.Close()
//
//	if err := adapter.Ping(ctx); err != nil {
//	    return err
//	}
//
// # Points
//
// Point is the shaped record written by adapters. Adapters do not validate
// field types; shaping happens before a point reaches this package.
package backend
