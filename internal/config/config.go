// Package config loads configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string

	// Logging
	LogLevel  string
	LogFormat string

	// Database
	DatabaseURL string

	// Listing behavior. FileTruncate caps files shown per folder and takes
	// precedence over pagination; 0 disables truncation and falls back to
	// PageSize-based pagination.
	FileTruncate int
	PageSize     int

	// Search
	SearchLimit int
}

// Load reads configuration from environment variables with defaults.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:   envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:  envOr("METRICS_ADDR", ":9090"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
		LogFormat:    envOr("LOG_FORMAT", "json"),
		DatabaseURL:  envOr("DATABASE_URL", ""),
		FileTruncate: envInt("FILE_TRUNCATE", 20),
		PageSize:     envInt("PAGE_SIZE", 100),
		SearchLimit:  envInt("SEARCH_LIMIT", 100),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.FileTruncate < 0 {
		return nil, fmt.Errorf("FILE_TRUNCATE must be >= 0")
	}
	if cfg.PageSize <= 0 {
		return nil, fmt.Errorf("PAGE_SIZE must be > 0")
	}
	if cfg.SearchLimit <= 0 {
		return nil, fmt.Errorf("SEARCH_LIMIT must be > 0")
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}
