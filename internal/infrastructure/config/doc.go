// Package config handles loading and validating luke dashboard configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Reading the gateway's JSON service document (coap_service.json)
//   - Overriding with environment variables
//   - Validation of required fields
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.CoreRD.URL)
package config
