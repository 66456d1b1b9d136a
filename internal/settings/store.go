package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// VersionKey is the reserved top-level key holding the settings schema version.
const VersionKey = "_config_version"

// redactedValue replaces restricted values in Redacted output.
const redactedValue = "*****"

// filePerm keeps credentials in the settings file private to the owner.
const filePerm = 0o600

// Store is a dotted-path view over a YAML settings file.
//
// Thread Safety: all methods are safe for concurrent use.
type Store struct {
	path     string
	defaults map[string]any

	mu         sync.RWMutex
	data       map[string]any
	restricted map[string]bool
}

// Load reads the settings file at path. A missing file yields an empty store
// that is created on the first Save.
//
// Parameters:
//   - path: Location of the YAML settings file
//   - defaults: Values returned for paths absent from the file (may be nil)
//
// Returns:
//   - *Store: Loaded store
//   - error: ErrLoadFailed if the file exists but cannot be read or parsed
func Load(path string, defaults map[string]any) (*Store, error) {
	s := &Store{
		path:       path,
		defaults:   defaults,
		restricted: make(map[string]bool),
	}
	if s.defaults == nil {
		s.defaults = map[string]any{}
	}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the location of the settings file.
func (s *Store) Path() string {
	return s.path
}

// Reload replaces the in-memory data with the current file contents.
// On error the previous data is kept.
func (s *Store) Reload() error {
	data, err := readFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.data = data
	s.mu.Unlock()
	return nil
}

func readFile(path string) (map[string]any, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailed, err)
	}

	data := map[string]any{}
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %w", ErrLoadFailed, path, err)
	}
	return data, nil
}

// Save writes the settings to disk atomically (temp file + rename).
func (s *Store) Save() error {
	s.mu.RLock()
	raw, err := yaml.Marshal(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: encoding: %w", ErrSaveFailed, err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	return nil
}

// splitPath validates and splits a dotted path.
func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	parts := strings.Split(path, ".")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return parts, nil
}

// lookup walks a nested mapping.
func lookup(m map[string]any, parts []string) (any, bool) {
	var cur any = m
	for _, p := range parts {
		node, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = node[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// Get returns the value at path, falling back to the defaults.
// A nil value stored in the file counts as present.
func (s *Store) Get(path string) (any, bool) {
	parts, err := splitPath(path)
	if err != nil {
		return nil, false
	}

	s.mu.RLock()
	v, ok := lookup(s.data, parts)
	s.mu.RUnlock()
	if ok {
		return v, true
	}
	return lookup(s.defaults, parts)
}

// Set stores v at path, creating intermediate mappings. It does not save.
func (s *Store) Set(path string, v any) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	node := s.data
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p]
		if !ok || next == nil {
			child := map[string]any{}
			node[p] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotMapping, path)
		}
		node = child
	}
	node[parts[len(parts)-1]] = v
	return nil
}

// Delete removes the value at path. Missing paths are not an error.
func (s *Store) Delete(path string) error {
	parts, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	parent, ok := lookup(s.data, parts[:len(parts)-1])
	if !ok {
		return nil
	}
	node, ok := parent.(map[string]any)
	if !ok {
		return nil
	}
	delete(node, parts[len(parts)-1])
	return nil
}

// GetString returns the value at path as a string ("" when unset).
func (s *Store) GetString(path string) string {
	v, _ := s.Get(path)
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

// GetInt returns the value at path as an int (0 when unset or not numeric).
// Floats are truncated and numeric strings are parsed.
func (s *Store) GetInt(path string) int {
	v, _ := s.Get(path)
	switch val := v.(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	case bool:
		if val {
			return 1
		}
		return 0
	case string:
		str := strings.TrimSpace(val)
		if n, err := strconv.Atoi(str); err == nil {
			return n
		}
		if f, err := strconv.ParseFloat(str, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return int(f)
		}
	}
	return 0
}

// GetFloat returns the value at path as a float64 (0 when unset or not numeric).
func (s *Store) GetFloat(path string) float64 {
	v, _ := s.Get(path)
	switch val := v.(type) {
	case float64:
		return val
	case int:
		return float64(val)
	case int64:
		return float64(val)
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return f
		}
	}
	return 0
}

// GetBool returns the value at path as a bool. Strings "true", "yes", "y",
// "on" and "1" (any case) are true; numbers are true when non-zero.
func (s *Store) GetBool(path string) bool {
	v, _ := s.Get(path)
	switch val := v.(type) {
	case bool:
		return val
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "y", "on", "1":
			return true
		}
	}
	return false
}

// Version returns the stored schema version. ok is false when the file has
// no version.
func (s *Store) Version() (version int, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, present := s.data[VersionKey]
	if !present || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int:
		return val, true
	case int64:
		return int(val), true
	case float64:
		return int(val), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// MigrateFunc upgrades the settings to target. current is nil when the file
// carries no version.
type MigrateFunc func(s *Store, target int, current *int) error

// Migrate brings the stored data to the target version.
//
// Nothing happens when the version already matches. A file with no data at
// all is stamped with the target version without running fn. Otherwise fn
// runs and, if it succeeds, the version is updated and the file saved.
func (s *Store) Migrate(target int, fn MigrateFunc) error {
	current, ok := s.Version()
	if ok && current == target {
		return nil
	}

	s.mu.RLock()
	empty := len(s.data) == 0
	s.mu.RUnlock()

	if !empty {
		var cur *int
		if ok {
			cur = &current
		}
		if err := fn(s, target, cur); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.data[VersionKey] = target
	s.mu.Unlock()
	return s.Save()
}

// SetRestricted marks dotted paths as restricted.
func (s *Store) SetRestricted(paths ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range paths {
		s.restricted[p] = true
	}
}

// Restricted reports whether path holds a restricted value.
func (s *Store) Restricted(path string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.restricted[path]
}

// RestrictedPaths returns the restricted paths in sorted order.
func (s *Store) RestrictedPaths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	paths := make([]string, 0, len(s.restricted))
	for p := range s.restricted {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Snapshot returns a detached copy of the store taken under a single lock.
// Reading several keys from the copy sees one consistent version of the
// file even while a concurrent Reload replaces the original's data. The copy
// shares defaults with the original and should not be saved.
func (s *Store) Snapshot() *Store {
	s.mu.RLock()
	defer s.mu.RUnlock()

	restricted := make(map[string]bool, len(s.restricted))
	for p := range s.restricted {
		restricted[p] = true
	}
	return &Store{
		path:       s.path,
		defaults:   s.defaults,
		data:       redactCopy(s.data, "", nil),
		restricted: restricted,
	}
}

// Redacted returns a deep copy of the file data with non-empty restricted
// values masked.
func (s *Store) Redacted() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return redactCopy(s.data, "", s.restricted)
}

func redactCopy(m map[string]any, prefix string, restricted map[string]bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			out[k] = redactCopy(val, path, restricted)
		default:
			if restricted[path] && val != nil && val != "" {
				out[k] = redactedValue
			} else {
				out[k] = val
			}
		}
	}
	return out
}
