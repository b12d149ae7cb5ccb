/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int

	// AudioRoot is the directory relative collection paths resolve against.
	AudioRoot string
	// StatePath is the JSON document the store loads at startup and rewrites
	// on every mutation.
	StatePath string

	JWTSigningKey string

	// Bootstrap admin account, created on first start when no users exist.
	AdminEmail    string
	AdminPassword string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("SKALD_ENV", "development"),
		HTTPBind:    getEnv("SKALD_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("SKALD_HTTP_PORT", 8000),

		AudioRoot: getEnv("SKALD_AUDIO_ROOT", "./audio"),
		StatePath: getEnv("SKALD_STATE_PATH", "./config.json"),

		JWTSigningKey: getEnv("SKALD_JWT_SIGNING_KEY", ""),

		AdminEmail:    getEnv("SKALD_ADMIN_EMAIL", "admin@localhost"),
		AdminPassword: getEnv("SKALD_ADMIN_PASSWORD", ""),

		TracingEnabled:    getEnvBool("SKALD_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("SKALD_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("SKALD_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("SKALD_JWT_SIGNING_KEY must be provided")
	}

	if strings.EqualFold(cfg.Environment, "production") && cfg.AdminPassword == "" {
		return nil, fmt.Errorf("SKALD_ADMIN_PASSWORD must be set in production")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		if val == "true" || val == "1" || val == "yes" {
			return true
		}
		if val == "false" || val == "0" || val == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}
