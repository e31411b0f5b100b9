// Package config handles loading and validating sensord configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (API key, MQTT password, InfluxDB token) should be
//     set via environment variables rather than the config file
//   - The config file should have restricted permissions (0600)
//   - An empty auth.api_key means open mode: the service accepts readings
//     from any caller. Valid for trusted networks, logged at startup.
//
// Performance Characteristics:
//   - Configuration is loaded once at startup
//   - No runtime overhead after initial load
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Port)
package config
