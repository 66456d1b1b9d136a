// Package settings provides the persisted plugin settings store.
//
// Settings are a nested YAML mapping addressed by dotted paths
// ("v2.database", "interval"). Values not present in the file fall back to a
// defaults map supplied at load time. Typed getters coerce values the way an
// operator-edited file needs: "8086" reads as an int, 10 reads as a float.
//
// # Versioning
//
// The file carries a schema version under the reserved key _config_version.
// Migrate compares it with the target version and runs a migration callback,
// saving the file when the callback succeeds.
//
// # Restricted Paths
//
// Credentials are marked restricted. Redacted returns a copy of the data with
// restricted values masked so the whole store can be logged safely.
//
// # Watching
//
// Watch follows the settings file with fsnotify and reloads it after edits,
// invoking a callback so the recorder can reconnect with the new values.
package settings
