// Package config handles loading and validating Climate Core configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading an optional .env file (mail credentials in existing deployments)
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Mail, MQTT and webhook credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Monitor.ReconcileInterval)
package config
