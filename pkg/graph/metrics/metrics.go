package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingestion metrics
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_ingest_total",
			Help: "Total number of ingestion calls",
		},
		[]string{"status"},
	)

	IngestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name: "graph_ingest_duration_seconds",
		Help: "Time spent ingesting one knowledge graph update",
	})

	EntityResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_entity_resolutions_total",
			Help: "Entity resolution outcomes",
		},
		[]string{"outcome"},
	)

	EntitiesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_entities_skipped_total",
		Help: "Entities skipped during ingestion",
	})

	RelationshipsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_relationships_skipped_total",
		Help: "Relationships skipped during ingestion",
	})

	NodeConflictRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "graph_node_conflict_retries_total",
		Help: "Node merges retried after a uniqueness constraint conflict",
	})

	// Graph size metrics, refreshed on stats queries
	GraphNodeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_nodes_total",
			Help: "Total number of nodes in the graph",
		},
		[]string{"label"},
	)

	GraphEdgeCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "graph_edges_total",
			Help: "Total number of edges in the graph",
		},
		[]string{"type"},
	)
)
