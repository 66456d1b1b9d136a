package backend

import (
	"fmt"
	"log/slog"
)

// APIVersion selects the InfluxDB protocol generation.
type APIVersion int

// Supported protocol versions.
const (
	V1 APIVersion = 1
	V2 APIVersion = 2
)

// ParseAPIVersion maps a configured integer to a protocol version.
// Anything other than 1 selects v2.
func ParseAPIVersion(v int) APIVersion {
	if v == int(V1) {
		return V1
	}
	return V2
}

// String returns "v1" or "v2".
func (v APIVersion) String() string {
	return fmt.Sprintf("v%d", int(v))
}

// Settings is the read side of the settings store.
type Settings interface {
	GetString(path string) string
	GetInt(path string) int
	GetFloat(path string) float64
	GetBool(path string) bool
}

// Config is an immutable snapshot of connection parameters.
//
// It is comparable with ==; two snapshots built from unchanged settings are
// equal, which lets callers skip redundant reconnects. Fields that do not
// apply to APIVersion are left zero.
type Config struct {
	APIVersion APIVersion

	// v1
	Host            string
	Port            int
	SSL             bool
	UDP             bool
	RetentionPolicy string

	// v2
	URL   string
	Token string
	Org   string

	// shared
	Username  string
	Password  string
	VerifySSL bool
	Database  string
	Prefix    string
}

// ConfigFromSettings derives a connection snapshot from settings without
// touching the network.
//
// Keys are read from the namespace of the configured api_version ("v1." or
// "v2."). Optional values that are empty or zero are left unset so the
// adapters apply their own defaults.
func ConfigFromSettings(s Settings) Config {
	cfg := Config{
		APIVersion: ParseAPIVersion(s.GetInt("api_version")),
		Prefix:     s.GetString("prefix"),
	}

	switch cfg.APIVersion {
	case V1:
		cfg.Host = s.GetString("v1.host")
		if port := s.GetInt("v1.port"); port > 0 {
			cfg.Port = port
		}
		if s.GetBool("v1.authenticate") {
			cfg.Username = s.GetString("v1.username")
			cfg.Password = s.GetString("v1.password")
		}
		cfg.Database = s.GetString("v1.database")
		cfg.SSL = s.GetBool("v1.ssl")
		// Certificate checks only mean something over TLS.
		cfg.VerifySSL = true
		if cfg.SSL {
			cfg.VerifySSL = s.GetBool("v1.verify_ssl")
		}
		cfg.UDP = s.GetBool("v1.udp")
		cfg.RetentionPolicy = s.GetString("v1.retention_policy")

	default:
		cfg.URL = s.GetString("v2.url")
		if s.GetBool("v2.use_username_password") {
			cfg.Username = s.GetString("v2.username")
			cfg.Password = s.GetString("v2.password")
		} else {
			cfg.Token = s.GetString("v2.token")
		}
		cfg.Org = s.GetString("v2.org")
		cfg.VerifySSL = s.GetBool("v2.verify_ssl")
		cfg.Database = s.GetString("v2.database")
	}

	return cfg
}

// LogValue implements slog.LogValuer. Credentials and the organisation are
// never included.
func (c Config) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("api_version", c.APIVersion.String()),
	}

	switch c.APIVersion {
	case V1:
		attrs = append(attrs,
			slog.String("host", c.Host),
			slog.Int("port", c.Port),
			slog.Bool("ssl", c.SSL),
			slog.Bool("verify_ssl", c.VerifySSL),
			slog.Bool("udp", c.UDP),
		)
		if c.RetentionPolicy != "" {
			attrs = append(attrs, slog.String("retention_policy", c.RetentionPolicy))
		}
	default:
		attrs = append(attrs,
			slog.String("url", c.URL),
			slog.Bool("verify_ssl", c.VerifySSL),
			slog.Bool("token_auth", c.Token != ""),
		)
	}

	attrs = append(attrs,
		slog.Bool("authenticate", c.Username != ""),
		slog.String("database", c.Database),
		slog.String("prefix", c.Prefix),
	)
	return slog.GroupValue(attrs...)
}
