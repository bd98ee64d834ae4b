package graph

import "errors"

// Sentinel errors shared across the module.
var (
	// ErrUnknownString is returned when an interned ID is not present.
	ErrUnknownString = errors.New("unknown string id")
	// ErrInvalidRegex is returned when a search pattern does not compile.
	ErrInvalidRegex = errors.New("invalid regex")
	// ErrUnconnectedQuery is returned by the planner when the operator list
	// does not connect all query nodes into a single component.
	ErrUnconnectedQuery = errors.New("query nodes are not connected")
	// ErrMissingComponent is returned when an operator references a
	// component without a graph storage.
	ErrMissingComponent = errors.New("missing component")
	// ErrCorpusLoad is returned when a corpus directory cannot be loaded.
	ErrCorpusLoad = errors.New("corpus load failed")
	// ErrStorageClosed is returned on access to a closed storage.
	ErrStorageClosed = errors.New("storage closed")
)
