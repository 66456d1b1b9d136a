// Package logging provides structured logging for the forwarder.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//   - Redaction of secret attributes (username, password, token, org, api_key)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "interval", 10)
//	logger.Error("failed to connect", "error", err)
//
// # Security
//
// Secret settings are redacted by attribute key, at any group depth.
// Values that implement slog.LogValuer (backend.Config) omit secrets themselves;
// the key-based redaction is the second line.
package logging
