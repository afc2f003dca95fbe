package graph

import (
	"context"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/kgraph-mcp/pkg/graph/metrics"
)

// fuzzyScoreThreshold is the similarity score a fuzzy candidate must exceed
// (strictly) before an incoming name is folded into an existing node.
const fuzzyScoreThreshold = 0.6

// Resolver decides the canonical name an incoming entity is stored under.
// Exact lookups are cheap, so they run first and short-circuit the more
// expensive fuzzy search, which only exists to catch near-duplicate
// spellings ("Space-X" vs "SpaceX").
type Resolver struct {
	store  Store
	logger *logrus.Logger
}

// NewResolver creates a resolver over store.
func NewResolver(store Store, logger *logrus.Logger) *Resolver {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return &Resolver{store: store, logger: logger}
}

// Resolve returns the canonical name for a (name, label) pair: the stored
// name on an exact hit, the best fuzzy candidate scoring above the threshold,
// or name unchanged when nothing matches. A failing fuzzy lookup (the index
// may not exist yet) degrades to exact-match-only behaviour instead of
// failing the call; a failing exact lookup propagates, since that signals
// the store itself is unreachable.
func (r *Resolver) Resolve(ctx context.Context, name, label string) (string, error) {
	stored, found, err := r.store.FindExactNode(ctx, label, name)
	if err != nil {
		return "", errors.Wrapf(err, "exact lookup for %q", name)
	}
	if found {
		metrics.EntityResolutions.WithLabelValues("exact").Inc()
		return stored, nil
	}

	match, found, err := r.store.FindFuzzyNode(ctx, label, name)
	if err != nil {
		r.logger.WithError(err).WithFields(logrus.Fields{
			"name":  name,
			"label": label,
		}).Warn("Fuzzy lookup unavailable, falling back to exact-match only")
		metrics.EntityResolutions.WithLabelValues("new").Inc()
		return name, nil
	}
	if found && match.Score > fuzzyScoreThreshold {
		r.logger.WithFields(logrus.Fields{
			"name":      name,
			"canonical": match.Name,
			"label":     label,
			"score":     match.Score,
		}).Info("Resolved entity to existing node")
		metrics.EntityResolutions.WithLabelValues("fuzzy").Inc()
		return match.Name, nil
	}

	metrics.EntityResolutions.WithLabelValues("new").Inc()
	return name, nil
}
