// Package config handles loading and validating the forwarder daemon configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The daemon configuration only describes how to reach OctoPrint, the MQTT
// broker and where the settings file lives. InfluxDB connection parameters
// are plugin settings and are read through the settings package, because they
// can change at runtime.
//
// Security Considerations:
//   - Sensitive values (API keys, passwords) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.OctoPrint.URL)
package config
