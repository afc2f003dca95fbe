package storage

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigFromEnv builds a Config from NEO4J_* environment variables, with
// defaults that match a local development database.
func ConfigFromEnv() Config {
	cfg := Config{
		URI:            envOr("NEO4J_URI", "bolt://localhost:7687"),
		Username:       envOr("NEO4J_USER", "neo4j"),
		Password:       os.Getenv("NEO4J_PASSWORD"),
		Database:       os.Getenv("NEO4J_DATABASE"),
		MaxPoolSize:    50,
		ConnectTimeout: 10 * time.Second,
	}

	if v := strings.TrimSpace(os.Getenv("NEO4J_MAX_POOL_SIZE")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.MaxPoolSize = parsed
		}
	}
	if v := strings.TrimSpace(os.Getenv("NEO4J_TIMEOUT_SECONDS")); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			cfg.ConnectTimeout = time.Duration(parsed) * time.Second
		}
	}
	return cfg
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
