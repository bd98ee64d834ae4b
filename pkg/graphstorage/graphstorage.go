// Package graphstorage provides per-component edge containers. All
// implementations honor one interface; the registry picks a specialized
// implementation (linear, pre/post order) from component type and
// statistics, with the adjacency list as the general fallback.
package graphstorage

import (
	"math"

	"github.com/orneryd/corpusdb/pkg/graph"
)

// MaxDistance marks an unbounded upper distance.
const MaxDistance = math.MaxUint32

// EdgeIterator yields reachable nodes one at a time. Iterators are not
// restartable beyond an explicit Reset and are owned by a single caller.
type EdgeIterator interface {
	// Next returns the next reachable node, or ok == false when drained.
	Next() (graph.NodeID, bool)
	Reset()
}

// GraphStorage is the uniform read contract of a component's edges.
//
// Distance is the minimum number of edges on any directed path. A node is
// reachable at distance 0 only when minDistance == 0 is requested; every
// implementation agrees on that.
type GraphStorage interface {
	// IsConnected reports whether target is reachable from source within
	// the given distance range.
	IsConnected(edge graph.Edge, minDistance, maxDistance uint32) bool

	// Distance returns the minimal distance between the edge's nodes, or
	// -1 when the target is unreachable.
	Distance(edge graph.Edge) int

	// FindConnected returns an iterator over each node reachable from
	// source within the distance range, yielding each target exactly once.
	FindConnected(source graph.NodeID, minDistance, maxDistance uint32) EdgeIterator

	// GetOutgoingEdges returns the direct successors of a node.
	GetOutgoingEdges(node graph.NodeID) []graph.NodeID

	// GetIncomingEdges returns the direct predecessors of a node.
	GetIncomingEdges(node graph.NodeID) []graph.NodeID

	// EdgeAnnotations returns the labels of one edge.
	EdgeAnnotations(edge graph.Edge) []graph.Annotation

	// EachEdge calls fn for every edge until fn returns false.
	EachEdge(fn func(graph.Edge) bool)

	// Statistics returns the collected component statistics. The Valid
	// flag is false after a write until the next recomputation.
	Statistics() graph.GraphStatistic

	NumberOfEdges() int
	EdgeAnnotationCount() int
}

// WritableGraphStorage extends the read contract with updates. Writes
// invalidate statistics until CalculateStatistics runs again.
type WritableGraphStorage interface {
	GraphStorage

	AddEdge(edge graph.Edge)
	DeleteEdge(edge graph.Edge)
	AddEdgeAnnotation(edge graph.Edge, anno graph.Annotation)
	DeleteEdgeAnnotation(edge graph.Edge, key graph.AnnotationKey)
	CalculateStatistics()
	Clear()
}
