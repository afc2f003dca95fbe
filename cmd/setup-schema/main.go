package main

import (
	"context"
	"flag"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/athapong/kgraph-mcp/pkg/graph/storage"
)

var (
	envFile  = flag.String("env", ".env", "Path to environment file")
	logLevel = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
	timeout  = flag.Duration("timeout", 30*time.Second, "Overall timeout for schema setup")
)

// Applies the uniqueness constraints and the fulltext index the ingestion
// engine relies on. Run once at deployment time; safe to run repeatedly.
func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Error loading env file %s: %v", *envFile, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	cfg := storage.ConfigFromEnv()
	store, err := storage.NewNeo4jStore(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to connect to Neo4j at %s: %v", cfg.URI, err)
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()

	if err := store.SetupSchema(ctx); err != nil {
		logger.Fatalf("Schema setup failed: %v", err)
	}
	logger.Info("Schema setup complete")
}
