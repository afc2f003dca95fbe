package graph

import (
	"context"
	"sync"
)

// fakeStore is an in-memory Store double with the same merge semantics the
// Neo4j adapter provides: idempotent node upsert, create-if-absent edges with
// first-write-wins properties, and idempotent mention links.
type fakeStore struct {
	mu sync.Mutex

	docs     map[string]int                    // url -> times created
	nodes    map[nodeKey]map[string]interface{}
	edges    map[edgeKey]map[string]interface{}
	mentions map[string]map[string]bool // doc url -> mentioned names

	fuzzy map[nodeKey]FuzzyMatch // (label, queried name) -> candidate

	invalidIdentifiers map[string]bool // labels/types the adapter would reject

	exactErr      error
	fuzzyErr      error
	mergeNodeErrs []error // consumed one per MergeNode call
	mergeEdgeErr  error
	mentionErr    error

	fuzzyCalls     int
	mergeNodeCalls int
}

type nodeKey struct{ label, name string }

type edgeKey struct{ relType, source, target string }

func newFakeStore() *fakeStore {
	return &fakeStore{
		docs:               make(map[string]int),
		nodes:              make(map[nodeKey]map[string]interface{}),
		edges:              make(map[edgeKey]map[string]interface{}),
		mentions:           make(map[string]map[string]bool),
		fuzzy:              make(map[nodeKey]FuzzyMatch),
		invalidIdentifiers: make(map[string]bool),
	}
}

func (f *fakeStore) seedNode(label, name string) {
	f.nodes[nodeKey{label, name}] = map[string]interface{}{}
}

func (f *fakeStore) EnsureDocument(ctx context.Context, url string) (DocumentRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs[url]++
	if f.mentions[url] == nil {
		f.mentions[url] = make(map[string]bool)
	}
	return DocumentRef(url), nil
}

func (f *fakeStore) FindExactNode(ctx context.Context, label, name string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exactErr != nil {
		return "", false, f.exactErr
	}
	if f.invalidIdentifiers[label] {
		return "", false, ErrInvalidIdentifier
	}
	if _, ok := f.nodes[nodeKey{label, name}]; ok {
		return name, true, nil
	}
	return "", false, nil
}

func (f *fakeStore) FindFuzzyNode(ctx context.Context, label, name string) (FuzzyMatch, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fuzzyCalls++
	if f.fuzzyErr != nil {
		return FuzzyMatch{}, false, f.fuzzyErr
	}
	if match, ok := f.fuzzy[nodeKey{label, name}]; ok {
		return match, true, nil
	}
	return FuzzyMatch{}, false, nil
}

func (f *fakeStore) MergeNode(ctx context.Context, label, name string, props map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mergeNodeCalls++
	if len(f.mergeNodeErrs) > 0 {
		err := f.mergeNodeErrs[0]
		f.mergeNodeErrs = f.mergeNodeErrs[1:]
		if err != nil {
			return err
		}
	}
	if f.invalidIdentifiers[label] {
		return ErrInvalidIdentifier
	}
	key := nodeKey{label, name}
	if f.nodes[key] == nil {
		f.nodes[key] = make(map[string]interface{})
	}
	for k, v := range props {
		f.nodes[key][k] = v
	}
	return nil
}

func (f *fakeStore) MergeEdge(ctx context.Context, relType, source, target string, props map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mergeEdgeErr != nil {
		return f.mergeEdgeErr
	}
	if f.invalidIdentifiers[relType] {
		return ErrInvalidIdentifier
	}
	if !f.hasNodeLocked(source) || !f.hasNodeLocked(target) {
		return ErrEndpointNotFound
	}
	key := edgeKey{relType, source, target}
	if _, exists := f.edges[key]; !exists {
		stored := make(map[string]interface{}, len(props))
		for k, v := range props {
			stored[k] = v
		}
		f.edges[key] = stored
	}
	return nil
}

func (f *fakeStore) LinkMention(ctx context.Context, doc DocumentRef, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mentionErr != nil {
		return f.mentionErr
	}
	if f.mentions[string(doc)] == nil {
		f.mentions[string(doc)] = make(map[string]bool)
	}
	f.mentions[string(doc)][name] = true
	return nil
}

func (f *fakeStore) SetupSchema(ctx context.Context) error { return nil }

func (f *fakeStore) Stats(ctx context.Context) (GraphStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := GraphStats{Nodes: make(map[string]int64), Edges: make(map[string]int64)}
	for key := range f.nodes {
		stats.Nodes[key.label]++
	}
	for key := range f.edges {
		stats.Edges[key.relType]++
	}
	return stats, nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

func (f *fakeStore) hasNodeLocked(name string) bool {
	for key := range f.nodes {
		if key.name == name {
			return true
		}
	}
	return false
}

func (f *fakeStore) nodesWithLabel(label string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var names []string
	for key := range f.nodes {
		if key.label == label {
			names = append(names, key.name)
		}
	}
	return names
}
