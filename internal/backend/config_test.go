package backend

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// mapSettings is a flat dotted-path settings fake.
type mapSettings map[string]any

func (m mapSettings) GetString(path string) string {
	s, _ := m[path].(string)
	return s
}

func (m mapSettings) GetInt(path string) int {
	n, _ := m[path].(int)
	return n
}

func (m mapSettings) GetFloat(path string) float64 {
	f, _ := m[path].(float64)
	return f
}

func (m mapSettings) GetBool(path string) bool {
	b, _ := m[path].(bool)
	return b
}

func TestParseAPIVersion(t *testing.T) {
	tests := []struct {
		in   int
		want APIVersion
	}{
		{1, V1},
		{2, V2},
		{0, V2},
		{3, V2},
		{-1, V2},
	}

	for _, tt := range tests {
		if got := ParseAPIVersion(tt.in); got != tt.want {
			t.Errorf("ParseAPIVersion(%d) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromSettings(t *testing.T) {
	tests := []struct {
		name     string
		settings mapSettings
		want     Config
	}{
		{
			name: "v1 minimal",
			settings: mapSettings{
				"api_version": 1,
				"prefix":      "octoprint_",
				"v1.database": "octoprint",
			},
			want: Config{APIVersion: V1, Database: "octoprint", Prefix: "octoprint_", VerifySSL: true},
		},
		{
			name: "v1 credentials ignored without authenticate",
			settings: mapSettings{
				"api_version": 1,
				"v1.username": "admin",
				"v1.password": "hunter2",
			},
			want: Config{APIVersion: V1, VerifySSL: true},
		},
		{
			name: "v1 full",
			settings: mapSettings{
				"api_version":         1,
				"v1.host":             "influx.local",
				"v1.port":             8087,
				"v1.authenticate":     true,
				"v1.username":         "admin",
				"v1.password":         "hunter2",
				"v1.ssl":              true,
				"v1.verify_ssl":       false,
				"v1.udp":              true,
				"v1.database":         "printer",
				"v1.retention_policy": "week",
			},
			want: Config{
				APIVersion:      V1,
				Host:            "influx.local",
				Port:            8087,
				Username:        "admin",
				Password:        "hunter2",
				SSL:             true,
				VerifySSL:       false,
				UDP:             true,
				Database:        "printer",
				RetentionPolicy: "week",
			},
		},
		{
			name: "v1 verify_ssl only applies with ssl",
			settings: mapSettings{
				"api_version":   1,
				"v1.verify_ssl": false,
				"v1.port":       -5,
			},
			want: Config{APIVersion: V1, VerifySSL: true},
		},
		{
			name: "v2 token",
			settings: mapSettings{
				"api_version":   2,
				"v2.url":        "http://influx:8086",
				"v2.token":      "secret",
				"v2.username":   "ignored",
				"v2.org":        "acme",
				"v2.verify_ssl": true,
				"v2.database":   "octoprint",
			},
			want: Config{
				APIVersion: V2,
				URL:        "http://influx:8086",
				Token:      "secret",
				Org:        "acme",
				VerifySSL:  true,
				Database:   "octoprint",
			},
		},
		{
			name: "v2 username password",
			settings: mapSettings{
				"api_version":              2,
				"v2.use_username_password": true,
				"v2.username":              "admin",
				"v2.password":              "hunter2",
				"v2.token":                 "ignored",
			},
			want: Config{APIVersion: V2, Username: "admin", Password: "hunter2"},
		},
		{
			name:     "unknown version falls back to v2",
			settings: mapSettings{"api_version": 7, "v1.host": "ignored", "v2.url": "http://x"},
			want:     Config{APIVersion: V2, URL: "http://x"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConfigFromSettings(tt.settings)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("ConfigFromSettings() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConfigFromSettings_Equality(t *testing.T) {
	s := mapSettings{"api_version": 2, "v2.url": "http://influx:8086", "v2.database": "octoprint"}

	if ConfigFromSettings(s) != ConfigFromSettings(s) {
		t.Error("configs from identical settings are not equal")
	}

	changed := mapSettings{"api_version": 2, "v2.url": "http://influx:8086", "v2.database": "other"}
	if ConfigFromSettings(s) == ConfigFromSettings(changed) {
		t.Error("configs from different settings are equal")
	}
}

func TestConfigLogValue_OmitsSecrets(t *testing.T) {
	configs := []Config{
		{APIVersion: V1, Host: "h", Username: "admin", Password: "hunter2", Database: "db"},
		{APIVersion: V2, URL: "http://u", Token: "tok-secret", Org: "acme-org", Database: "db"},
	}

	for _, cfg := range configs {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, nil))
		logger.Info("reconnecting", "config", cfg)

		out := buf.String()
		for _, secret := range []string{"admin", "hunter2", "tok-secret", "acme-org"} {
			if strings.Contains(out, secret) {
				t.Errorf("log output contains %q: %s", secret, out)
			}
		}
		if !strings.Contains(out, `"database":"db"`) {
			t.Errorf("log output missing database: %s", out)
		}
	}
}
