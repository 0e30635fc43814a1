// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Default CMS endpoints used when no override is configured.
const (
	DefaultCMSAPIURL  = "https://cms.klinichni-izpitvania.bg/wp-json/wp/v2"
	DefaultCMSAuthURL = "https://cms.klinichni-izpitvania.bg/wp-json/ct/v1/auth"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host     string
	Port     string
	Env      string // "development", "production", "testing"
	LogLevel string

	// Headless CMS
	CMSAPIURL  string
	CMSAuthURL string
	CMSTimeout time.Duration

	// Valkey (Redis-compatible cache + session store)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Presentation tuning
	PageCacheTTL   time.Duration
	SearchDebounce time.Duration
	PreviewHeight  int
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. In development a local .env file is
// read first if present. Returns an error if critical values are missing
// in production mode or a value cannot be parsed.
func Load() (*Config, error) {
	if envOrDefault("APP_ENV", "development") == "development" {
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}
	}

	cfg := &Config{
		Host:     envOrDefault("APP_HOST", "0.0.0.0"),
		Port:     envOrDefault("APP_PORT", "8080"),
		Env:      envOrDefault("APP_ENV", "development"),
		LogLevel: envOrDefault("LOG_LEVEL", "info"),

		CMSAPIURL:  strings.TrimRight(envOrDefault("CMS_API_URL", DefaultCMSAPIURL), "/"),
		CMSAuthURL: strings.TrimRight(envOrDefault("CMS_AUTH_URL", DefaultCMSAuthURL), "/"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),
	}

	var err error
	if cfg.CMSTimeout, err = durationOrDefault("CMS_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.PageCacheTTL, err = durationOrDefault("PAGE_CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SearchDebounce, err = durationOrDefault("SEARCH_DEBOUNCE", 500*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.PreviewHeight, err = intOrDefault("PREVIEW_HEIGHT", 320); err != nil {
		return nil, err
	}

	if cfg.Env == "production" {
		if os.Getenv("CMS_API_URL") == "" {
			return nil, fmt.Errorf("CMS_API_URL must be set in production")
		}
	}

	return cfg, nil
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// SlogLevel maps LogLevel onto a slog level. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}

func intOrDefault(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}
