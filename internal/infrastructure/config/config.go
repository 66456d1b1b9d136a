package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the forwarder daemon.
// All configuration is loaded from YAML and can be overridden by environment variables.
//
// Backend connection parameters are not part of this file: they live in the
// settings store (see SettingsConfig) so they can be changed while running.
type Config struct {
	Settings  SettingsConfig  `yaml:"settings"`
	OctoPrint OctoPrintConfig `yaml:"octoprint"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SettingsConfig points at the plugin settings file.
type SettingsConfig struct {
	Path  string `yaml:"path"`
	Watch bool   `yaml:"watch"`
}

// OctoPrintConfig contains the OctoPrint REST API connection settings.
type OctoPrintConfig struct {
	URL     string `yaml:"url"`
	APIKey  string `yaml:"api_key"`
	Timeout int    `yaml:"timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`

	// BaseTopic is the OctoPrint-MQTT plugin's base topic, including the
	// trailing slash (default "octoPrint/").
	BaseTopic string `yaml:"base_topic"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OCTOPRINT_INFLUXDB_SECTION_KEY
// For example: OCTOPRINT_INFLUXDB_OCTOPRINT_API_KEY, OCTOPRINT_INFLUXDB_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns the built-in configuration with environment overrides applied.
// Used when no configuration file exists.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Settings: SettingsConfig{
			Path:  "./data/influxdb.yaml",
			Watch: true,
		},
		OctoPrint: OctoPrintConfig{
			URL:     "http://localhost:5000",
			Timeout: 5,
		},
		MQTT: MQTTConfig{
			Enabled: true,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "octoprint-influxdb",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			BaseTopic: "octoPrint/",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OCTOPRINT_INFLUXDB_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OCTOPRINT_INFLUXDB_SETTINGS_PATH"); v != "" {
		cfg.Settings.Path = v
	}

	// OctoPrint
	if v := os.Getenv("OCTOPRINT_INFLUXDB_OCTOPRINT_URL"); v != "" {
		cfg.OctoPrint.URL = v
	}
	if v := os.Getenv("OCTOPRINT_INFLUXDB_OCTOPRINT_API_KEY"); v != "" {
		cfg.OctoPrint.APIKey = v
	}

	// MQTT
	if v := os.Getenv("OCTOPRINT_INFLUXDB_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OCTOPRINT_INFLUXDB_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("OCTOPRINT_INFLUXDB_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OCTOPRINT_INFLUXDB_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("OCTOPRINT_INFLUXDB_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Settings.Path == "" {
		errs = append(errs, "settings.path is required")
	}

	if c.OctoPrint.URL == "" {
		errs = append(errs, "octoprint.url is required")
	}
	if c.OctoPrint.Timeout < 0 {
		errs = append(errs, "octoprint.timeout must not be negative")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port < 1 || c.MQTT.Broker.Port > 65535 {
			errs = append(errs, "mqtt.broker.port must be between 1 and 65535")
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.BaseTopic != "" && !strings.HasSuffix(c.MQTT.BaseTopic, "/") {
			errs = append(errs, "mqtt.base_topic must end with '/'")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetOctoPrintTimeout returns the OctoPrint request timeout as a Duration.
func (c *Config) GetOctoPrintTimeout() time.Duration {
	if c.OctoPrint.Timeout <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.OctoPrint.Timeout) * time.Second
}
