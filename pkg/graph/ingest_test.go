package graph

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func foundingUpdate() KnowledgeGraphUpdate {
	return KnowledgeGraphUpdate{
		SourceURL: "https://example.com/a",
		Entities: []Entity{
			{Name: "Elon Musk", Label: "Person"},
			{Name: "SpaceX", Label: "Organization"},
		},
		Relationships: []Relationship{
			{
				Source: "Elon Musk", Target: "SpaceX", Type: "FOUNDED",
				Properties: map[string]interface{}{"year": 2002},
			},
		},
	}
}

func TestIngestEndToEnd(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), foundingUpdate())
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntitiesProcessed)
	assert.Equal(t, 1, result.RelationshipsLinked)
	assert.Equal(t, "https://example.com/a", result.SourceURL)

	edge, ok := store.edges[edgeKey{"FOUNDED", "Elon Musk", "SpaceX"}]
	require.True(t, ok, "FOUNDED edge should exist")
	assert.Equal(t, 2002, edge["year"])

	mentions := store.mentions["https://example.com/a"]
	assert.True(t, mentions["Elon Musk"])
	assert.True(t, mentions["SpaceX"])
}

func TestIngestIdempotent(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	first, err := engine.Ingest(context.Background(), foundingUpdate())
	require.NoError(t, err)

	nodesBefore := len(store.nodes)
	edgesBefore := len(store.edges)

	second, err := engine.Ingest(context.Background(), foundingUpdate())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Len(t, store.nodes, nodesBefore, "re-ingestion must not create nodes")
	assert.Len(t, store.edges, edgesBefore, "re-ingestion must not create edges")
	assert.Equal(t, 2, store.docs["https://example.com/a"], "document node is merged, not duplicated")
}

func TestIngestResolutionPrecedence(t *testing.T) {
	store := newFakeStore()
	store.seedNode("Organization", "SpaceX")
	store.fuzzy[nodeKey{"Organization", "Space-X"}] = FuzzyMatch{Name: "SpaceX", Score: 0.92}
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/fuzzy",
		Entities: []Entity{
			{Name: "Space-X", Label: "Organization", Properties: map[string]interface{}{"note": "variant spelling"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.EntitiesProcessed)

	assert.ElementsMatch(t, []string{"SpaceX"}, store.nodesWithLabel("Organization"),
		"no second Organization node may be created")
	assert.Equal(t, "variant spelling", store.nodes[nodeKey{"Organization", "SpaceX"}]["note"])
	assert.True(t, store.mentions["https://example.com/fuzzy"]["SpaceX"],
		"mention must point at the canonical node")
}

func TestIngestPartialFailureTolerance(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/partial",
		Entities: []Entity{
			{Name: "Sarah Connor", Label: "Person"},
			{Name: "Cyberdyne Systems", Label: "Organization"},
		},
		Relationships: []Relationship{
			{Source: "Sarah Connor", Target: "Cyberdyne Systems", Type: "INVESTIGATING"},
			{Source: "Sarah Connor", Target: "Los Angeles", Type: "LOCATED_IN"},
		},
	})
	require.NoError(t, err, "a missing endpoint must not fail the call")
	assert.Equal(t, 2, result.EntitiesProcessed)
	assert.Equal(t, 1, result.RelationshipsLinked)
}

func TestIngestSkipsEmptyEndpoints(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/empty",
		Entities:  []Entity{{Name: "SpaceX", Label: "Organization"}},
		Relationships: []Relationship{
			{Source: "", Target: "SpaceX", Type: "FOUNDED"},
			{Source: "SpaceX", Target: "", Type: "FOUNDED"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.RelationshipsLinked)
	assert.Empty(t, store.edges)
}

func TestIngestRetriesNodeMergeOnConflict(t *testing.T) {
	store := newFakeStore()
	store.mergeNodeErrs = []error{ErrConstraintConflict}
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/race",
		Entities:  []Entity{{Name: "SpaceX", Label: "Organization"}},
	})
	require.NoError(t, err, "a constraint conflict means another writer won the race; retry as merge")
	assert.Equal(t, 1, result.EntitiesProcessed)
	assert.Equal(t, 2, store.mergeNodeCalls)
	assert.Contains(t, store.nodes, nodeKey{"Organization", "SpaceX"})
}

func TestIngestConflictRetryFailureEscalates(t *testing.T) {
	store := newFakeStore()
	store.mergeNodeErrs = []error{ErrConstraintConflict, ErrConstraintConflict}
	engine := NewEngine(store, quietLogger())

	_, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/race",
		Entities:  []Entity{{Name: "SpaceX", Label: "Organization"}},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConstraintConflict)
}

func TestIngestFatalStoreErrorAbortsRelationships(t *testing.T) {
	store := newFakeStore()
	store.mergeEdgeErr = ErrStoreUnavailable
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), foundingUpdate())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Equal(t, 2, result.EntitiesProcessed, "entities merged before the failure are reported")
	assert.Equal(t, 0, result.RelationshipsLinked)
}

func TestIngestTimeoutSurfaces(t *testing.T) {
	store := newFakeStore()
	store.mergeEdgeErr = ErrTimeout
	engine := NewEngine(store, quietLogger())

	_, err := engine.Ingest(context.Background(), foundingUpdate())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestIngestRelationshipPropertiesAreFirstWriteWins(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	_, err := engine.Ingest(context.Background(), foundingUpdate())
	require.NoError(t, err)

	update := foundingUpdate()
	update.Relationships[0].Properties = map[string]interface{}{"year": 2003}
	_, err = engine.Ingest(context.Background(), update)
	require.NoError(t, err)

	edge := store.edges[edgeKey{"FOUNDED", "Elon Musk", "SpaceX"}]
	assert.Equal(t, 2002, edge["year"], "later merges must not overwrite edge properties")
}

func TestIngestUnresolvedEndpointsPassThrough(t *testing.T) {
	store := newFakeStore()
	store.seedNode("Organization", "Cyberdyne Systems")
	engine := NewEngine(store, quietLogger())

	// "Cyberdyne Systems" is not in this update's entity list, so it bypasses
	// resolution and is used as supplied.
	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/crossbatch",
		Entities:  []Entity{{Name: "Sarah Connor", Label: "Person"}},
		Relationships: []Relationship{
			{Source: "Sarah Connor", Target: "Cyberdyne Systems", Type: "INVESTIGATING"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.RelationshipsLinked)
	assert.Contains(t, store.edges, edgeKey{"INVESTIGATING", "Sarah Connor", "Cyberdyne Systems"})
	assert.True(t, store.mentions["https://example.com/crossbatch"]["Cyberdyne Systems"],
		"both endpoints of a linked relationship get provenance edges")
}

func TestIngestSkipsInvalidIdentifiers(t *testing.T) {
	store := newFakeStore()
	store.invalidIdentifiers["Bad Label"] = true
	store.invalidIdentifiers["BAD-TYPE"] = true
	engine := NewEngine(store, quietLogger())

	result, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/badlabel",
		Entities: []Entity{
			{Name: "Skynet", Label: "Bad Label"},
			{Name: "Cyberdyne Systems", Label: "Organization"},
			{Name: "Miles Dyson", Label: "Person"},
		},
		Relationships: []Relationship{
			{Source: "Miles Dyson", Target: "Cyberdyne Systems", Type: "WORKS_AT"},
			{Source: "Miles Dyson", Target: "Cyberdyne Systems", Type: "BAD-TYPE"},
		},
	})
	require.NoError(t, err, "malformed labels and types are data-shape issues, not call failures")

	assert.Equal(t, 2, result.EntitiesProcessed)
	assert.Equal(t, 1, result.RelationshipsLinked)
	assert.NotContains(t, store.nodes, nodeKey{"Bad Label", "Skynet"})
	assert.Contains(t, store.edges, edgeKey{"WORKS_AT", "Miles Dyson", "Cyberdyne Systems"})
	assert.False(t, store.mentions["https://example.com/badlabel"]["Skynet"],
		"skipped entities get no provenance edge")
}

func TestIngestSanitizesPropertiesBeforeWriting(t *testing.T) {
	store := newFakeStore()
	engine := NewEngine(store, quietLogger())

	_, err := engine.Ingest(context.Background(), KnowledgeGraphUpdate{
		SourceURL: "https://example.com/props",
		Entities: []Entity{
			{
				Name: "SpaceX", Label: "Organization",
				Properties: map[string]interface{}{
					"industry": "Aerospace",
					"nested":   map[string]interface{}{"drop": "me"},
					"none":     nil,
				},
			},
		},
	})
	require.NoError(t, err)

	props := store.nodes[nodeKey{"Organization", "SpaceX"}]
	assert.Equal(t, "Aerospace", props["industry"])
	assert.NotContains(t, props, "nested")
	assert.NotContains(t, props, "none")
}
