// Package config resolves agentlock settings from a YAML file and
// AGENTLOCK_* environment variables. Environment values win.
package config

import (
	"log/slog"
	"os"
	"strings"
)

// Config holds CLI and engine configuration.
type Config struct {
	LogLevel          string `yaml:"log_level"`
	CatalogPath       string `yaml:"catalog"`
	PolicyDir         string `yaml:"policy_dir"`
	DatabaseDriver    string `yaml:"database_driver"` // "sqlite" | "postgres"
	DatabaseURL       string `yaml:"database_url"`
	OTelEnabled       bool   `yaml:"otel_enabled"`
	OTelEndpoint      string `yaml:"otel_endpoint"`
	SigningKeyPath    string `yaml:"signing_key"` // hex Ed25519 seed
	AllowPolicyErrors bool   `yaml:"allow_policy_errors"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		LogLevel:       "INFO",
		DatabaseDriver: "sqlite",
		DatabaseURL:    "agentlock.db",
		OTelEndpoint:   "localhost:4317",
	}
}

// Load loads configuration from environment variables over the defaults.
func Load() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = strings.EqualFold(v, "true") || v == "1"
		}
	}

	setString("AGENTLOCK_LOG_LEVEL", &c.LogLevel)
	setString("AGENTLOCK_CATALOG", &c.CatalogPath)
	setString("AGENTLOCK_POLICY_DIR", &c.PolicyDir)
	setString("AGENTLOCK_DATABASE_DRIVER", &c.DatabaseDriver)
	setString("AGENTLOCK_DATABASE_URL", &c.DatabaseURL)
	setBool("AGENTLOCK_OTEL_ENABLED", &c.OTelEnabled)
	setString("AGENTLOCK_OTEL_ENDPOINT", &c.OTelEndpoint)
	setString("AGENTLOCK_SIGNING_KEY", &c.SigningKeyPath)
	setBool("AGENTLOCK_ALLOW_POLICY_ERRORS", &c.AllowPolicyErrors)
}

// SlogLevel maps LogLevel to a slog.Level; unknown values mean INFO.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToUpper(c.LogLevel) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}
