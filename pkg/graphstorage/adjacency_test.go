package graphstorage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/corpusdb/pkg/graph"
)

func testComponent() graph.Component {
	return graph.Component{Type: graph.Pointing, Layer: "test", Name: "dep"}
}

func chainStorage(t *testing.T, n int) *AdjacencyListStorage {
	t.Helper()
	s := NewAdjacencyListStorage(testComponent())
	for i := 1; i < n; i++ {
		s.AddEdge(graph.Edge{Source: graph.NodeID(i), Target: graph.NodeID(i + 1)})
	}
	return s
}

func drain(it EdgeIterator) []graph.NodeID {
	var result []graph.NodeID
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		result = append(result, n)
	}
	return result
}

func TestAdjacencyList_SelfEdgesAreIgnored(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	s.AddEdge(graph.Edge{Source: 1, Target: 1})

	assert.Equal(t, 0, s.NumberOfEdges())
}

func TestAdjacencyList_IsConnectedDirect(t *testing.T) {
	s := chainStorage(t, 4)

	assert.True(t, s.IsConnected(graph.Edge{Source: 1, Target: 2}, 1, 1))
	assert.False(t, s.IsConnected(graph.Edge{Source: 1, Target: 3}, 1, 1))
	assert.True(t, s.IsConnected(graph.Edge{Source: 1, Target: 3}, 1, 2))
}

func TestAdjacencyList_Distance(t *testing.T) {
	s := chainStorage(t, 5)

	assert.Equal(t, 0, s.Distance(graph.Edge{Source: 2, Target: 2}))
	assert.Equal(t, 3, s.Distance(graph.Edge{Source: 1, Target: 4}))
	assert.Equal(t, -1, s.Distance(graph.Edge{Source: 4, Target: 1}))
}

func TestAdjacencyList_FindConnected(t *testing.T) {
	s := chainStorage(t, 5)

	assert.Equal(t, []graph.NodeID{2, 3, 4}, drain(s.FindConnected(1, 1, 3)))
}

func TestAdjacencyList_FindConnectedMinZeroIncludesSource(t *testing.T) {
	s := chainStorage(t, 3)

	result := drain(s.FindConnected(1, 0, 1))
	assert.Contains(t, result, graph.NodeID(1))
	assert.Contains(t, result, graph.NodeID(2))
	assert.Len(t, result, 2)
}

func TestAdjacencyList_FindConnectedYieldsEachTargetOnce(t *testing.T) {
	// diamond: 1 -> 2 -> 4, 1 -> 3 -> 4
	s := NewAdjacencyListStorage(testComponent())
	s.AddEdge(graph.Edge{Source: 1, Target: 2})
	s.AddEdge(graph.Edge{Source: 1, Target: 3})
	s.AddEdge(graph.Edge{Source: 2, Target: 4})
	s.AddEdge(graph.Edge{Source: 3, Target: 4})

	result := drain(s.FindConnected(1, 1, MaxDistance))
	assert.ElementsMatch(t, []graph.NodeID{2, 3, 4}, result)
}

func TestAdjacencyList_CycleSafe(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	s.AddEdge(graph.Edge{Source: 1, Target: 2})
	s.AddEdge(graph.Edge{Source: 2, Target: 3})
	s.AddEdge(graph.Edge{Source: 3, Target: 1})

	// the traversal terminates and never revisits the start through the
	// back edge
	result := drain(s.FindConnected(1, 1, MaxDistance))
	assert.ElementsMatch(t, []graph.NodeID{2, 3}, result)
}

func TestAdjacencyList_IteratorReset(t *testing.T) {
	s := chainStorage(t, 4)

	it := s.FindConnected(1, 1, 2)
	first := drain(it)
	it.Reset()
	second := drain(it)

	assert.Equal(t, first, second)
}

func TestAdjacencyList_OutgoingIncoming(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	s.AddEdge(graph.Edge{Source: 1, Target: 2})
	s.AddEdge(graph.Edge{Source: 1, Target: 3})
	s.AddEdge(graph.Edge{Source: 4, Target: 3})

	assert.Equal(t, []graph.NodeID{2, 3}, s.GetOutgoingEdges(1))
	assert.ElementsMatch(t, []graph.NodeID{1, 4}, s.GetIncomingEdges(3))
}

func TestAdjacencyList_EdgeAnnotations(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	edge := graph.Edge{Source: 1, Target: 2}
	s.AddEdge(edge)
	s.AddEdgeAnnotation(edge, graph.Annotation{Name: 10, NS: 11, Value: 12})
	// a second value for the same key replaces the first
	s.AddEdgeAnnotation(edge, graph.Annotation{Name: 10, NS: 11, Value: 13})
	s.AddEdgeAnnotation(edge, graph.Annotation{Name: 20, NS: 11, Value: 30})

	annos := s.EdgeAnnotations(edge)
	require.Len(t, annos, 2)
	assert.Equal(t, graph.StringID(13), annos[0].Value)

	s.DeleteEdgeAnnotation(edge, graph.AnnotationKey{Name: 10, NS: 11})
	assert.Len(t, s.EdgeAnnotations(edge), 1)
}

func TestAdjacencyList_DeleteEdgeRemovesAnnotations(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	edge := graph.Edge{Source: 1, Target: 2}
	s.AddEdge(edge)
	s.AddEdgeAnnotation(edge, graph.Annotation{Name: 1, NS: 2, Value: 3})

	s.DeleteEdge(edge)

	assert.Equal(t, 0, s.NumberOfEdges())
	assert.Empty(t, s.EdgeAnnotations(edge))
}

func TestAdjacencyList_Statistics(t *testing.T) {
	s := chainStorage(t, 5)
	assert.False(t, s.Statistics().Valid)

	s.CalculateStatistics()
	stat := s.Statistics()

	require.True(t, stat.Valid)
	assert.Equal(t, uint32(5), stat.Nodes)
	assert.Equal(t, uint32(4), stat.MaxDepth)
	assert.Equal(t, uint32(1), stat.MaxFanOut)
	assert.InDelta(t, 1.0, stat.AvgFanOut, 0.001)
	assert.False(t, stat.Cyclic)
	assert.True(t, stat.RootedTree)
}

func TestAdjacencyList_StatisticsCyclic(t *testing.T) {
	s := NewAdjacencyListStorage(testComponent())
	s.AddEdge(graph.Edge{Source: 1, Target: 2})
	s.AddEdge(graph.Edge{Source: 2, Target: 1})

	s.CalculateStatistics()
	stat := s.Statistics()

	assert.True(t, stat.Cyclic)
	assert.False(t, stat.RootedTree)
}

func TestAdjacencyList_WritesInvalidateStatistics(t *testing.T) {
	s := chainStorage(t, 3)
	s.CalculateStatistics()
	require.True(t, s.Statistics().Valid)

	s.AddEdge(graph.Edge{Source: 10, Target: 11})
	assert.False(t, s.Statistics().Valid)
}
