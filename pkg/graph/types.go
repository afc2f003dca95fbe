package graph

import (
	"context"
)

// Entity is a named node asserted by a source document. Label is used as the
// node's primary label (Person, Organization, Location, Topic, or any
// caller-supplied label); Name is the resolution key.
type Entity struct {
	Name       string                 `json:"name"`
	Label      string                 `json:"label"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// Relationship is a typed edge between two entities, expressed in terms of
// the names the caller supplied. Endpoints are remapped to canonical names
// before anything is written.
type Relationship struct {
	Source     string                 `json:"source"`
	Target     string                 `json:"target"`
	Type       string                 `json:"type"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

// KnowledgeGraphUpdate is the unit of ingestion: one source document plus
// every entity and relationship it asserts.
type KnowledgeGraphUpdate struct {
	SourceURL     string         `json:"source_url"`
	Entities      []Entity       `json:"entities"`
	Relationships []Relationship `json:"relationships"`
}

// IngestResult summarizes one ingestion call. RelationshipsLinked counts only
// edges that were actually written; skipped relationships are not reflected
// anywhere else.
type IngestResult struct {
	EntitiesProcessed   int    `json:"entities_processed"`
	RelationshipsLinked int    `json:"relationships_linked"`
	SourceURL           string `json:"source_url"`
}

// DocumentRef identifies a Document node that is known to exist.
type DocumentRef string

// FuzzyMatch is the top-ranked candidate from a similarity lookup.
type FuzzyMatch struct {
	Name  string
	Score float64
}

// GraphStats holds node and edge counts grouped by label and type.
type GraphStats struct {
	Nodes map[string]int64 `json:"nodes"`
	Edges map[string]int64 `json:"edges"`
}

// Store abstracts the transactional labeled-property graph the engine writes
// to. Implementations own their connection pooling and expose only
// request-scoped, context-bound operations; every method is one blocking
// round trip.
type Store interface {
	// EnsureDocument idempotently creates the Document node for url. The
	// creation timestamp is set only when the node is first created.
	EnsureDocument(ctx context.Context, url string) (DocumentRef, error)

	// FindExactNode looks up a node by label and exact name, returning the
	// stored name when found.
	FindExactNode(ctx context.Context, label, name string) (string, bool, error)

	// FindFuzzyNode runs a similarity lookup restricted to label and returns
	// the single highest-scoring candidate. An error here may simply mean
	// the fuzzy index does not exist yet.
	FindFuzzyNode(ctx context.Context, label, name string) (FuzzyMatch, bool, error)

	// MergeNode creates the (label, name) node if absent and unions props
	// onto it on both the create and update paths.
	MergeNode(ctx context.Context, label, name string, props map[string]interface{}) error

	// MergeEdge creates a relType edge between two already-existing nodes,
	// looked up by name across any label. Properties are set only at edge
	// creation. Returns ErrEndpointNotFound when either endpoint is missing.
	MergeEdge(ctx context.Context, relType, source, target string, props map[string]interface{}) error

	// LinkMention idempotently records that doc mentions the named node.
	LinkMention(ctx context.Context, doc DocumentRef, name string) error

	// SetupSchema creates uniqueness constraints and the fuzzy-search index.
	// Idempotent; invoked from the operational bootstrap path only.
	SetupSchema(ctx context.Context) error

	// Stats returns node and edge counts grouped by label and type.
	Stats(ctx context.Context) (GraphStats, error)

	// Close releases the underlying connection pool.
	Close(ctx context.Context) error
}
