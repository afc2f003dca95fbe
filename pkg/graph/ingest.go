package graph

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/athapong/kgraph-mcp/pkg/graph/metrics"
)

// Engine orchestrates one ingestion: document-node creation, per-entity
// resolution and merge, and per-relationship merge with provenance edges.
// Engines are stateless between calls and safe for concurrent use; each call
// owns only its local resolution table.
type Engine struct {
	store    Store
	resolver *Resolver
	logger   *logrus.Logger
}

// NewEngine creates an ingestion engine over store. The store is injected
// rather than reached through a global so tests can substitute a double.
func NewEngine(store Store, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Engine{
		store:    store,
		resolver: NewResolver(store, logger),
		logger:   logger,
	}
}

// Ingest writes one KnowledgeGraphUpdate into the graph. Entities are
// resolved and merged strictly before relationships, because relationship
// endpoints are expressed in terms of possibly-renamed canonical identities.
// Malformed items are logged and skipped, entities and relationships alike;
// only store unavailability and timeouts fail the call. Re-ingesting the same
// update is a no-op with respect to graph shape.
func (e *Engine) Ingest(ctx context.Context, update KnowledgeGraphUpdate) (IngestResult, error) {
	result := IngestResult{SourceURL: update.SourceURL}

	log := e.logger.WithFields(logrus.Fields{
		"ingest_id":  uuid.New().String(),
		"source_url": update.SourceURL,
	})
	log.WithFields(logrus.Fields{
		"entities":      len(update.Entities),
		"relationships": len(update.Relationships),
	}).Info("Ingesting knowledge graph update")

	timer := prometheus.NewTimer(metrics.IngestDuration)
	defer timer.ObserveDuration()

	doc, err := e.store.EnsureDocument(ctx, update.SourceURL)
	if err != nil {
		metrics.IngestTotal.WithLabelValues("error").Inc()
		return result, errors.Wrapf(err, "ensure document %q", update.SourceURL)
	}

	// Resolution table: supplied name -> canonical name, local to this call.
	resolved := make(map[string]string, len(update.Entities))

	for _, entity := range update.Entities {
		canonical, err := e.resolver.Resolve(ctx, entity.Name, entity.Label)
		if err != nil {
			if errors.Is(err, ErrInvalidIdentifier) {
				log.WithFields(logrus.Fields{
					"name":  entity.Name,
					"label": entity.Label,
				}).Warn("Skipping entity with invalid label")
				metrics.EntitiesSkipped.Inc()
				continue
			}
			metrics.IngestTotal.WithLabelValues("error").Inc()
			return result, errors.Wrapf(err, "resolve entity %q", entity.Name)
		}
		resolved[entity.Name] = canonical

		if err := e.mergeNode(ctx, log, entity.Label, canonical, SanitizeProperties(entity.Properties)); err != nil {
			metrics.IngestTotal.WithLabelValues("error").Inc()
			return result, err
		}
		if err := e.store.LinkMention(ctx, doc, canonical); err != nil {
			metrics.IngestTotal.WithLabelValues("error").Inc()
			return result, errors.Wrapf(err, "link mention of %q", canonical)
		}
		result.EntitiesProcessed++
	}

	for _, rel := range update.Relationships {
		if rel.Source == "" || rel.Target == "" {
			log.WithFields(logrus.Fields{
				"type":   rel.Type,
				"source": rel.Source,
				"target": rel.Target,
			}).Warn("Skipping relationship with empty endpoint")
			metrics.RelationshipsSkipped.Inc()
			continue
		}

		// Endpoints not resolved in this call are written as supplied;
		// cross-batch resolution is deferred to a later pass.
		source := canonicalOr(resolved, rel.Source)
		target := canonicalOr(resolved, rel.Target)

		err := e.store.MergeEdge(ctx, rel.Type, source, target, SanitizeProperties(rel.Properties))
		if err != nil {
			if fatal(err) {
				metrics.IngestTotal.WithLabelValues("error").Inc()
				return result, errors.Wrapf(err, "merge edge %s-[%s]->%s", source, rel.Type, target)
			}
			log.WithError(err).WithFields(logrus.Fields{
				"type":   rel.Type,
				"source": source,
				"target": target,
			}).Warn("Skipping relationship")
			metrics.RelationshipsSkipped.Inc()
			continue
		}

		if err := e.store.LinkMention(ctx, doc, source); err != nil {
			metrics.IngestTotal.WithLabelValues("error").Inc()
			return result, errors.Wrapf(err, "link mention of %q", source)
		}
		if err := e.store.LinkMention(ctx, doc, target); err != nil {
			metrics.IngestTotal.WithLabelValues("error").Inc()
			return result, errors.Wrapf(err, "link mention of %q", target)
		}
		result.RelationshipsLinked++
	}

	log.WithFields(logrus.Fields{
		"entities_processed":   result.EntitiesProcessed,
		"relationships_linked": result.RelationshipsLinked,
	}).Info("Ingestion complete")
	metrics.IngestTotal.WithLabelValues("success").Inc()
	return result, nil
}

// mergeNode merges a node, retrying once when a concurrent call created the
// same (label, name) node between our lookup and the merge. The backing
// uniqueness constraint is the tie-breaker; the retry lands on the
// now-existing node as a plain merge.
func (e *Engine) mergeNode(ctx context.Context, log *logrus.Entry, label, name string, props map[string]interface{}) error {
	err := e.store.MergeNode(ctx, label, name, props)
	if err == nil {
		return nil
	}
	if !errors.Is(err, ErrConstraintConflict) {
		return errors.Wrapf(err, "merge node (%s, %q)", label, name)
	}

	log.WithFields(logrus.Fields{
		"label": label,
		"name":  name,
	}).Info("Node created concurrently, retrying as merge")
	metrics.NodeConflictRetries.Inc()

	if err := e.store.MergeNode(ctx, label, name, props); err != nil {
		return errors.Wrapf(err, "merge node (%s, %q) after conflict", label, name)
	}
	return nil
}

func canonicalOr(resolved map[string]string, name string) string {
	if canonical, ok := resolved[name]; ok {
		return canonical
	}
	return name
}
