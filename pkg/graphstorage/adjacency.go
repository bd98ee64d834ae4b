package graphstorage

import (
	"math"
	"sync"

	"github.com/google/btree"

	"github.com/orneryd/corpusdb/pkg/graph"
)

type edgeAnnoEntry struct {
	edge graph.Edge
	anno graph.Annotation
}

func edgeAnnoLess(a, b edgeAnnoEntry) bool {
	if a.edge != b.edge {
		return graph.EdgeLess(a.edge, b.edge)
	}
	return graph.AnnotationLess(a.anno, b.anno)
}

// AdjacencyListStorage is the fallback implementation: a sorted edge set
// with reachability answered by a cycle-safe DFS. It fits every component
// but is outperformed by the specialized storages where they apply.
type AdjacencyListStorage struct {
	mu        sync.RWMutex
	component graph.Component

	edges     *btree.BTreeG[graph.Edge]
	edgeAnnos *btree.BTreeG[edgeAnnoEntry]

	stat graph.GraphStatistic
}

var _ WritableGraphStorage = (*AdjacencyListStorage)(nil)

// NewAdjacencyListStorage creates an empty fallback storage for one
// component.
func NewAdjacencyListStorage(component graph.Component) *AdjacencyListStorage {
	return &AdjacencyListStorage{
		component: component,
		edges:     btree.NewG(32, graph.EdgeLess),
		edgeAnnos: btree.NewG(32, edgeAnnoLess),
	}
}

// AddEdge inserts an edge. Self-edges are ignored.
func (s *AdjacencyListStorage) AddEdge(edge graph.Edge) {
	if edge.Source == edge.Target {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges.ReplaceOrInsert(edge)
	s.stat.Valid = false
}

// DeleteEdge removes an edge and its annotations.
func (s *AdjacencyListStorage) DeleteEdge(edge graph.Edge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges.Delete(edge)

	var toDelete []edgeAnnoEntry
	from := edgeAnnoEntry{edge: edge}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: math.MaxUint32, NS: math.MaxUint32, Value: math.MaxUint32}}
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		toDelete = append(toDelete, e)
		return true
	})
	for _, e := range toDelete {
		s.edgeAnnos.Delete(e)
	}
	s.stat.Valid = false
}

// AddEdgeAnnotation attaches a label to an existing edge. Per
// (edge, name, namespace) at most one value is kept.
func (s *AdjacencyListStorage) AddEdgeAnnotation(edge graph.Edge, anno graph.Annotation) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// replace an existing value for the same key
	from := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: anno.Name, NS: anno.NS}}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: anno.Name, NS: anno.NS, Value: math.MaxUint32}}
	var existing []edgeAnnoEntry
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		existing = append(existing, e)
		return true
	})
	for _, e := range existing {
		s.edgeAnnos.Delete(e)
	}

	s.edgeAnnos.ReplaceOrInsert(edgeAnnoEntry{edge: edge, anno: anno})
	s.stat.Valid = false
}

// DeleteEdgeAnnotation removes the label with the given key from an edge.
func (s *AdjacencyListStorage) DeleteEdgeAnnotation(edge graph.Edge, key graph.AnnotationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()

	from := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: key.Name, NS: key.NS}}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: key.Name, NS: key.NS, Value: math.MaxUint32}}
	var existing []edgeAnnoEntry
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		existing = append(existing, e)
		return true
	})
	for _, e := range existing {
		s.edgeAnnos.Delete(e)
	}
	s.stat.Valid = false
}

// IsConnected checks reachability. The distance-1 case is a direct set
// lookup; everything else runs the DFS.
func (s *AdjacencyListStorage) IsConnected(edge graph.Edge, minDistance, maxDistance uint32) bool {
	if minDistance == 1 && maxDistance == 1 {
		s.mu.RLock()
		defer s.mu.RUnlock()
		return s.edges.Has(edge)
	}

	dfs := NewCycleSafeDFS(s, edge.Source, minDistance, maxDistance)
	for step, ok := dfs.Next(); ok; step, ok = dfs.Next() {
		if step.Node == edge.Target {
			return true
		}
	}
	return false
}

// Distance returns the minimal path length, or -1 when unreachable.
func (s *AdjacencyListStorage) Distance(edge graph.Edge) int {
	dfs := NewCycleSafeDFS(s, edge.Source, 0, MaxDistance)
	for step, ok := dfs.Next(); ok; step, ok = dfs.Next() {
		if step.Node == edge.Target {
			return int(step.Distance)
		}
	}
	return -1
}

// FindConnected iterates each node reachable within the distance range.
func (s *AdjacencyListStorage) FindConnected(source graph.NodeID, minDistance, maxDistance uint32) EdgeIterator {
	return newUniqueDFS(s, source, minDistance, maxDistance)
}

// GetOutgoingEdges returns the direct successors of a node.
func (s *AdjacencyListStorage) GetOutgoingEdges(node graph.NodeID) []graph.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []graph.NodeID
	from := graph.Edge{Source: node, Target: 0}
	to := graph.Edge{Source: node, Target: math.MaxUint32}
	s.edges.AscendRange(from, to, func(e graph.Edge) bool {
		result = append(result, e.Target)
		return true
	})
	// the range above is half-open, check the maximal target explicitly
	if s.edges.Has(to) {
		result = append(result, to.Target)
	}
	return result
}

// GetIncomingEdges returns the direct predecessors of a node. This is a
// full scan; components that need fast inverse access get a specialized
// storage from the registry.
func (s *AdjacencyListStorage) GetIncomingEdges(node graph.NodeID) []graph.NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []graph.NodeID
	s.edges.Ascend(func(e graph.Edge) bool {
		if e.Target == node {
			result = append(result, e.Source)
		}
		return true
	})
	return result
}

// EdgeAnnotations returns the labels of one edge.
func (s *AdjacencyListStorage) EdgeAnnotations(edge graph.Edge) []graph.Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []graph.Annotation
	from := edgeAnnoEntry{edge: edge}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: math.MaxUint32, NS: math.MaxUint32, Value: math.MaxUint32}}
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		result = append(result, e.anno)
		return true
	})
	return result
}

// EachEdge calls fn for every edge in sorted order.
func (s *AdjacencyListStorage) EachEdge(fn func(graph.Edge) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.edges.Ascend(func(e graph.Edge) bool {
		return fn(e)
	})
}

// Statistics returns the component statistics.
func (s *AdjacencyListStorage) Statistics() graph.GraphStatistic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.stat
}

// CalculateStatistics recomputes the component statistics.
func (s *AdjacencyListStorage) CalculateStatistics() {
	stat := calculateStatistics(s)
	s.mu.Lock()
	s.stat = stat
	s.mu.Unlock()
}

// NumberOfEdges returns the edge count.
func (s *AdjacencyListStorage) NumberOfEdges() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges.Len()
}

// EdgeAnnotationCount returns the number of edge labels.
func (s *AdjacencyListStorage) EdgeAnnotationCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edgeAnnos.Len()
}

// Clear removes all edges and labels.
func (s *AdjacencyListStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.edges.Clear(false)
	s.edgeAnnos.Clear(false)
	s.stat = graph.GraphStatistic{}
}
