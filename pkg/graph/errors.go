package graph

import (
	"github.com/pkg/errors"
)

// Sentinel errors shared between the store adapter and the ingestion engine.
// Store implementations classify backend failures into these; callers match
// with errors.Is.
var (
	// ErrStoreUnavailable means the graph backend could not be reached or
	// the connection died mid-call. Fatal for the current ingestion.
	ErrStoreUnavailable = errors.New("graph store unavailable")

	// ErrTimeout means the caller-imposed deadline expired while a store
	// round trip was in flight. Safe to retry the whole call.
	ErrTimeout = errors.New("graph operation timed out")

	// ErrEndpointNotFound is returned by MergeEdge when either endpoint node
	// does not exist. Recovered per-relationship, never escalated.
	ErrEndpointNotFound = errors.New("relationship endpoint not found")

	// ErrConstraintConflict means a concurrent writer created the same node
	// first. MergeNode is retried once on this before it is surfaced.
	ErrConstraintConflict = errors.New("uniqueness constraint conflict")

	// ErrInvalidIdentifier means a caller-supplied label or relationship
	// type failed the identifier allow-list and was never sent to the store.
	ErrInvalidIdentifier = errors.New("invalid label or relationship type")
)

// fatal reports whether err must abort the remaining work of an ingestion
// call rather than being absorbed as a per-item failure.
func fatal(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) || errors.Is(err, ErrTimeout)
}
