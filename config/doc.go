// Package config provides application configuration management.
//
// The config package handles loading and validation of the application's
// configuration from YAML files and the environment. It supports
// configuration for server settings, execution engine limits, logging,
// and per-language interpreter settings.
//
// Usage:
//
//	cfg, err := config.New()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("Server transport: %s\n", cfg.Server.Transport)
package config
