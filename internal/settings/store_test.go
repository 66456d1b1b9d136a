package settings

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "influxdb.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("writing settings file: %v", err)
	}
	return path
}

// =============================================================================
// Load Tests
// =============================================================================

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.yaml")

	s, err := Load(path, map[string]any{"interval": 10})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := s.GetInt("interval"); got != 10 {
		t.Errorf("GetInt(interval) = %d, want default 10", got)
	}
	if _, ok := s.Version(); ok {
		t.Error("Version() ok = true for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeFile(t, "api_version: [unclosed")

	_, err := Load(path, nil)
	if !errors.Is(err, ErrLoadFailed) {
		t.Errorf("Load() error = %v, want ErrLoadFailed", err)
	}
}

// =============================================================================
// Getter Tests
// =============================================================================

func TestGetters(t *testing.T) {
	path := writeFile(t, `
api_version: 1
interval: 2.5
prefix: "op_"
v1:
  host: influx.local
  port: "8087"
  ssl: "yes"
  udp: 0
v2:
  url: http://influx:8086
  verify_ssl: false
`)
	defaults := map[string]any{
		"prefix": "octoprint_",
		"v1":     map[string]any{"database": "octoprint", "verify_ssl": true},
	}

	s, err := Load(path, defaults)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  any
		want any
	}{
		{"int", s.GetInt("api_version"), 1},
		{"float", s.GetFloat("interval"), 2.5},
		{"float truncated to int", s.GetInt("interval"), 2},
		{"int as float", s.GetFloat("api_version"), 1.0},
		{"string from file", s.GetString("prefix"), "op_"},
		{"nested string", s.GetString("v1.host"), "influx.local"},
		{"numeric string as int", s.GetInt("v1.port"), 8087},
		{"yes as bool", s.GetBool("v1.ssl"), true},
		{"zero as bool", s.GetBool("v1.udp"), false},
		{"false bool", s.GetBool("v2.verify_ssl"), false},
		{"nested default", s.GetString("v1.database"), "octoprint"},
		{"nested default bool", s.GetBool("v1.verify_ssl"), true},
		{"missing string", s.GetString("v2.token"), ""},
		{"missing int", s.GetInt("v1.missing"), 0},
		{"traverse scalar", s.GetString("prefix.deeper"), ""},
		{"int as string", s.GetString("api_version"), "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.got); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGet_InvalidPath(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "s.yaml"), nil)

	for _, path := range []string{"", ".", "v1..host"} {
		if _, ok := s.Get(path); ok {
			t.Errorf("Get(%q) ok = true, want false", path)
		}
	}
}

// =============================================================================
// Set / Save Tests
// =============================================================================

func TestSetSaveReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "influxdb.yaml")
	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := s.Set("v2.database", "metrics"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set("interval", 5); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if perm := info.Mode().Perm(); perm != filePerm {
		t.Errorf("file mode = %o, want %o", perm, filePerm)
	}

	reloaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := reloaded.GetString("v2.database"); got != "metrics" {
		t.Errorf("v2.database = %q, want metrics", got)
	}
	if got := reloaded.GetInt("interval"); got != 5 {
		t.Errorf("interval = %d, want 5", got)
	}
}

func TestSet_NotMapping(t *testing.T) {
	s, _ := Load(filepath.Join(t.TempDir(), "s.yaml"), nil)
	_ = s.Set("prefix", "x")

	if err := s.Set("prefix.sub", "y"); !errors.Is(err, ErrNotMapping) {
		t.Errorf("Set() error = %v, want ErrNotMapping", err)
	}
	if err := s.Set("", "y"); !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Set(\"\") error = %v, want ErrInvalidPath", err)
	}
}

func TestReload_KeepsDataOnError(t *testing.T) {
	path := writeFile(t, "prefix: a_\n")
	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := os.WriteFile(path, []byte("prefix: [broken"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := s.Reload(); !errors.Is(err, ErrLoadFailed) {
		t.Errorf("Reload() error = %v, want ErrLoadFailed", err)
	}
	if got := s.GetString("prefix"); got != "a_" {
		t.Errorf("prefix = %q after failed reload, want a_", got)
	}
}

// =============================================================================
// Migration Tests
// =============================================================================

func TestMigrate(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name        string
		content     string
		fnErr       error
		wantCalled  bool
		wantCurrent *int
		wantErr     error
		wantVersion int
	}{
		{
			name:        "already current",
			content:     "_config_version: 1\nprefix: a_\n",
			wantVersion: 1,
		},
		{
			name:        "empty file stamped without migrating",
			content:     "",
			wantVersion: 1,
		},
		{
			name:        "unversioned data",
			content:     "prefix: a_\n",
			wantCalled:  true,
			wantVersion: 1,
		},
		{
			name:        "older version",
			content:     "_config_version: 0\nprefix: a_\n",
			wantCalled:  true,
			wantCurrent: intPtr(0),
			wantVersion: 1,
		},
		{
			name:        "migration fails",
			content:     "_config_version: 7\n",
			fnErr:       errBoom,
			wantCalled:  true,
			wantCurrent: intPtr(7),
			wantErr:     errBoom,
			wantVersion: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.content)
			s, err := Load(path, nil)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}

			called := false
			var gotCurrent *int
			err = s.Migrate(1, func(_ *Store, target int, current *int) error {
				called = true
				gotCurrent = current
				if target != 1 {
					t.Errorf("target = %d, want 1", target)
				}
				return tt.fnErr
			})

			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Migrate() error = %v, want %v", err, tt.wantErr)
			}
			if called != tt.wantCalled {
				t.Errorf("fn called = %v, want %v", called, tt.wantCalled)
			}
			if diff := cmp.Diff(tt.wantCurrent, gotCurrent); diff != "" {
				t.Errorf("current mismatch (-want +got):\n%s", diff)
			}

			reloaded, _ := Load(path, nil)
			if v, _ := reloaded.Version(); v != tt.wantVersion {
				t.Errorf("saved version = %d, want %d", v, tt.wantVersion)
			}
		})
	}
}

func intPtr(v int) *int { return &v }

// =============================================================================
// Restricted Path Tests
// =============================================================================

func TestRedacted(t *testing.T) {
	path := writeFile(t, `
v1:
  host: influx.local
  username: admin
  password: hunter2
v2:
  token: ""
  org: acme
`)
	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s.SetRestricted("v1.username", "v1.password", "v2.token", "v2.org")

	want := map[string]any{
		"v1": map[string]any{
			"host":     "influx.local",
			"username": redactedValue,
			"password": redactedValue,
		},
		"v2": map[string]any{
			"token": "",
			"org":   redactedValue,
		},
	}
	if diff := cmp.Diff(want, s.Redacted()); diff != "" {
		t.Errorf("Redacted() mismatch (-want +got):\n%s", diff)
	}

	if got := s.GetString("v1.password"); got != "hunter2" {
		t.Errorf("Redacted() modified store data: password = %q", got)
	}
	if !s.Restricted("v2.org") || s.Restricted("v1.host") {
		t.Error("Restricted() reported wrong paths")
	}
	if diff := cmp.Diff([]string{"v1.password", "v1.username", "v2.org", "v2.token"}, s.RestrictedPaths()); diff != "" {
		t.Errorf("RestrictedPaths() mismatch (-want +got):\n%s", diff)
	}
}

func TestDelete(t *testing.T) {
	path := writeFile(t, "host: a\nv1:\n  host: b\n")
	s, err := Load(path, map[string]any{"host": "default"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if err := s.Delete("v1.host"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, ok := s.Get("v1.host"); ok {
		t.Error("v1.host still present after Delete")
	}

	if err := s.Delete("host"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got := s.GetString("host"); got != "default" {
		t.Errorf("host = %q after Delete, want default fallback", got)
	}

	if err := s.Delete("missing.path"); err != nil {
		t.Errorf("Delete(missing) error = %v, want nil", err)
	}
}

// =============================================================================
// Snapshot Tests
// =============================================================================

func TestSnapshot_Detached(t *testing.T) {
	path := writeFile(t, "v2:\n  url: http://a:8086\n  token: one\n")
	s, err := Load(path, map[string]any{"prefix": "octoprint_"})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	s.SetRestricted("v2.token")

	snap := s.Snapshot()

	if err := s.Set("v2.url", "http://b:8086"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := os.WriteFile(path, []byte("v2:\n  url: http://c:8086\n  token: two\n"), 0o600); err != nil {
		t.Fatalf("rewriting settings file: %v", err)
	}
	if err := s.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}

	if got := snap.GetString("v2.url"); got != "http://a:8086" {
		t.Errorf("snapshot v2.url = %q, want http://a:8086", got)
	}
	if got := snap.GetString("v2.token"); got != "one" {
		t.Errorf("snapshot v2.token = %q, want one", got)
	}
	if got := snap.GetString("prefix"); got != "octoprint_" {
		t.Errorf("snapshot prefix = %q, want default", got)
	}
	if !snap.Restricted("v2.token") {
		t.Error("snapshot lost restricted paths")
	}
	if got := s.GetString("v2.token"); got != "two" {
		t.Errorf("store v2.token = %q, want two", got)
	}
}

func TestSnapshot_ConsistentDuringReload(t *testing.T) {
	versions := []string{
		"v2:\n  url: http://a:8086\n  token: a\n",
		"v2:\n  url: http://b:8086\n  token: b\n",
	}
	path := writeFile(t, versions[0])
	s, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Pre-parse both versions so the writer only swaps data.
	parsed := make([]map[string]any, len(versions))
	for i, content := range versions {
		p := writeFile(t, content)
		m, err := readFile(p)
		if err != nil {
			t.Fatalf("readFile() error = %v", err)
		}
		parsed[i] = m
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2000; i++ {
			s.mu.Lock()
			s.data = parsed[i%2]
			s.mu.Unlock()
		}
	}()

	for {
		select {
		case <-done:
			return
		default:
		}
		snap := s.Snapshot()
		url, token := snap.GetString("v2.url"), snap.GetString("v2.token")
		if url != "http://"+token+":8086" {
			t.Fatalf("snapshot mixed versions: url=%q token=%q", url, token)
		}
	}
}
