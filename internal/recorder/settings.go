package recorder

import (
	"fmt"

	"github.com/agrif/OctoPrint-InfluxDB/internal/settings"
)

// SettingsVersion is the current settings schema version.
const SettingsVersion = 1

// defaultIntervalSeconds is the sampling interval used when none is configured.
const defaultIntervalSeconds = 10.0

// RestrictedPaths are the settings holding credentials.
var RestrictedPaths = []string{
	"v1.username",
	"v1.password",
	"v2.username",
	"v2.password",
	"v2.token",
	"v2.org",
}

// legacyV1Keys were stored at the top level before settings were versioned.
var legacyV1Keys = []string{
	"host",
	"port",
	"authenticate",
	"username",
	"password",
	"ssl",
	"verify_ssl",
	"udp",
	"database",
	"retention_policy",
}

// DefaultSettings returns the values used for keys absent from the settings file.
func DefaultSettings() map[string]any {
	return map[string]any{
		"api_version": 2,
		"interval":    defaultIntervalSeconds,
		"prefix":      "octoprint_",
		"hostmethod":  "node",
		"hostcustom":  "",
		"v1": map[string]any{
			"host":             "",
			"port":             0,
			"authenticate":     false,
			"username":         "",
			"password":         "",
			"ssl":              false,
			"verify_ssl":       true,
			"udp":              false,
			"database":         "octoprint",
			"retention_policy": "",
		},
		"v2": map[string]any{
			"url":                   "http://localhost:8086",
			"use_username_password": false,
			"username":              "",
			"password":              "",
			"token":                 "",
			"org":                   "",
			"verify_ssl":            true,
			"database":              "octoprint",
		},
	}
}

// MigrateSettings upgrades the store to SettingsVersion.
//
// Unversioned settings predate v2 support: they are pinned to api_version 1
// and any top-level connection keys are moved under "v1.". Every other
// version mismatch is fatal.
func MigrateSettings(s *settings.Store) error {
	return s.Migrate(SettingsVersion, migrateSettings)
}

func migrateSettings(s *settings.Store, target int, current *int) error {
	if current != nil || target != SettingsVersion {
		from := "none"
		if current != nil {
			from = fmt.Sprint(*current)
		}
		return fmt.Errorf("%w: cannot migrate from %s to %d", ErrSettingsVersion, from, target)
	}

	if err := s.Set("api_version", 1); err != nil {
		return err
	}
	for _, key := range legacyV1Keys {
		v, ok := s.Get(key)
		if !ok || isMapping(v) {
			continue
		}
		if err := s.Set("v1."+key, v); err != nil {
			return err
		}
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func isMapping(v any) bool {
	_, ok := v.(map[string]any)
	return ok
}
