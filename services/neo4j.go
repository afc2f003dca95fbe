package services

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/athapong/kgraph-mcp/pkg/graph"
	"github.com/athapong/kgraph-mcp/pkg/graph/storage"
)

// DefaultLogger is the process-wide structured logger.
var DefaultLogger = sync.OnceValue(func() *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	return logger
})

// DefaultGraphStore is the process-wide Neo4j store, created on first use
// from NEO4J_* environment variables and shared by all concurrent tool
// calls. The driver owns its own pooling; callers see only request-scoped
// operations.
var DefaultGraphStore = sync.OnceValue(func() *storage.Neo4jStore {
	cfg := storage.ConfigFromEnv()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	store, err := storage.NewNeo4jStore(ctx, cfg, DefaultLogger())
	if err != nil {
		panic(fmt.Sprintf("failed to connect to Neo4j at %s: %v", cfg.URI, err))
	}
	storeOpened.Store(true)
	return store
})

var storeOpened atomic.Bool

// CloseGraphStore releases the shared Neo4j pool on shutdown. A no-op when
// no tool call ever opened the store.
func CloseGraphStore(ctx context.Context) error {
	if !storeOpened.Load() {
		return nil
	}
	return DefaultGraphStore().Close(ctx)
}

// DefaultIngestEngine is the shared ingestion engine over DefaultGraphStore.
var DefaultIngestEngine = sync.OnceValue(func() *graph.Engine {
	return graph.NewEngine(DefaultGraphStore(), DefaultLogger())
})

// DefaultResolver is the shared entity resolver over DefaultGraphStore.
var DefaultResolver = sync.OnceValue(func() *graph.Resolver {
	return graph.NewResolver(DefaultGraphStore(), DefaultLogger())
})

// IngestTimeout is the per-call deadline for one ingestion, sourced from
// INGEST_TIMEOUT_SECONDS. Merges are individually idempotent, so a timed-out
// call is safe to retry wholesale.
func IngestTimeout() time.Duration {
	if v := os.Getenv("INGEST_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return 30 * time.Second
}
