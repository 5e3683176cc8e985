package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server    ServerConfig        `mapstructure:"server"`
	Sandbox   SandboxConfig       `mapstructure:"sandbox"`
	Logging   LoggingConfig       `mapstructure:"logging"`
	Languages map[string]Language `mapstructure:"languages"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Transport    string `mapstructure:"transport"`
	HTTPPort     int    `mapstructure:"http_port"`
	MaxBodyBytes int64  `mapstructure:"max_body_bytes"`
}

// SandboxConfig holds execution engine configuration
type SandboxConfig struct {
	DefaultTimeoutSec int    `mapstructure:"default_timeout_sec"`
	MaxTimeoutSec     int    `mapstructure:"max_timeout_sec"`
	DrainSec          int    `mapstructure:"drain_sec"`
	MaxOutputBytes    int    `mapstructure:"max_output_bytes"`
	MaxFileBytes      int64  `mapstructure:"max_file_bytes"`
	WorkRoot          string `mapstructure:"work_root"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Mode  string `mapstructure:"mode"`
	Level string `mapstructure:"level"`
}

// Language holds per-language overrides for the execution engine.
// Command replaces the interpreter binary; Env adds variables to the
// scrubbed child environment.
type Language struct {
	Command string            `mapstructure:"command"`
	Env     map[string]string `mapstructure:"env"`
}

// New loads and validates the application configuration
func New() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// Set default values
	viper.SetDefault("server.transport", "http")
	viper.SetDefault("server.http_port", 8888)
	viper.SetDefault("server.max_body_bytes", 512*1024)
	viper.SetDefault("sandbox.default_timeout_sec", 30)
	viper.SetDefault("sandbox.max_timeout_sec", 120)
	viper.SetDefault("sandbox.drain_sec", 5)
	viper.SetDefault("sandbox.max_output_bytes", 100*1024)
	viper.SetDefault("sandbox.max_file_bytes", 5*1024*1024)
	viper.SetDefault("sandbox.work_root", "")
	viper.SetDefault("logging.mode", "production")
	viper.SetDefault("logging.level", "info")

	// Python defaults
	viper.SetDefault("languages.python.command", "python3")
	viper.SetDefault("languages.python.env", map[string]string{
		"MPLBACKEND":       "Agg",
		"PYTHONUNBUFFERED": "1",
	})

	// Node.js defaults
	viper.SetDefault("languages.node.command", "node")
	viper.SetDefault("languages.node.env", map[string]string{})

	// The container contract uses PORT to select the listening port
	if err := viper.BindEnv("server.http_port", "PORT"); err != nil {
		return nil, fmt.Errorf("error binding PORT: %w", err)
	}

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// If config file not found, continue with defaults
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation error: %w", err)
	}

	return &config, nil
}

// validate ensures the configuration is valid
func (c *Config) validate() error {
	if c.Server.Transport != "http" && c.Server.Transport != "stdio" {
		return fmt.Errorf("invalid server.transport: %s, must be 'http' or 'stdio'", c.Server.Transport)
	}

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid server.http_port: %d", c.Server.HTTPPort)
	}

	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("server.max_body_bytes must be positive, got: %d", c.Server.MaxBodyBytes)
	}

	if c.Sandbox.DefaultTimeoutSec <= 0 {
		return fmt.Errorf("sandbox.default_timeout_sec must be positive, got: %d", c.Sandbox.DefaultTimeoutSec)
	}

	if c.Sandbox.MaxTimeoutSec < c.Sandbox.DefaultTimeoutSec {
		return fmt.Errorf("sandbox.max_timeout_sec must be at least the default timeout, got: %d", c.Sandbox.MaxTimeoutSec)
	}

	if c.Sandbox.DrainSec <= 0 {
		return fmt.Errorf("sandbox.drain_sec must be positive, got: %d", c.Sandbox.DrainSec)
	}

	if c.Sandbox.MaxOutputBytes <= 0 {
		return fmt.Errorf("sandbox.max_output_bytes must be positive, got: %d", c.Sandbox.MaxOutputBytes)
	}

	if c.Sandbox.MaxFileBytes <= 0 {
		return fmt.Errorf("sandbox.max_file_bytes must be positive, got: %d", c.Sandbox.MaxFileBytes)
	}

	if c.Logging.Mode != "production" && c.Logging.Mode != "development" {
		return fmt.Errorf("invalid logging.mode: %s, must be 'production' or 'development'", c.Logging.Mode)
	}

	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
		"dpanic": true, "panic": true, "fatal": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	for name, lang := range c.Languages {
		if lang.Command == "" {
			return fmt.Errorf("languages.%s.command must not be empty", name)
		}
	}

	return nil
}

// GetDrainTimeout returns the post-kill output drain bound as a duration
func (c *Config) GetDrainTimeout() time.Duration {
	return time.Duration(c.Sandbox.DrainSec) * time.Second
}
