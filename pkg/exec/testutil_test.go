package exec

import (
	"fmt"
	"testing"

	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// testCorpus builds a document with the seven tokens
// "That is a Category 3 storm ." (node IDs 1..7), part-of-speech labels,
// and three spans:
//
//	node 10: cat="S"  covering tokens 1..7
//	node 11: cat="NP" covering tokens 4..5
//	node 12: cat="PP" covering tokens 4..5
func testCorpus(t *testing.T) *corpus.DB {
	t.Helper()
	db := corpus.NewDB("test")

	words := []string{"That", "is", "a", "Category", "3", "storm", "."}
	pos := []string{"DT", "VBZ", "DT", "NN", "CD", "NN", "$."}

	ordering := db.EnsureComponent(graph.Component{Type: graph.Ordering, Layer: graph.Namespace})
	coverage := db.EnsureComponent(graph.Component{Type: graph.Coverage, Layer: graph.Namespace})
	leftTok := db.EnsureComponent(graph.Component{Type: graph.LeftToken, Layer: graph.Namespace})
	rightTok := db.EnsureComponent(graph.Component{Type: graph.RightToken, Layer: graph.Namespace})

	for i, word := range words {
		node := graph.NodeID(i + 1)
		db.NodeAnnos.Add(node, graph.Annotation{
			Name: db.NodeNameStringID(), NS: db.NamespaceStringID(),
			Value: db.Strings.Add(fmt.Sprintf("doc1#t%d", i+1)),
		})
		db.NodeAnnos.Add(node, graph.Annotation{
			Name: db.TokStringID(), NS: db.NamespaceStringID(),
			Value: db.Strings.Add(word),
		})
		db.NodeAnnos.Add(node, graph.Annotation{
			Name: db.Strings.Add("pos"), NS: db.Strings.Add("tiger"),
			Value: db.Strings.Add(pos[i]),
		})
		if i > 0 {
			ordering.AddEdge(graph.Edge{Source: graph.NodeID(i), Target: node})
		}
	}

	addSpan := func(node graph.NodeID, cat string, from, to int) {
		db.NodeAnnos.Add(node, graph.Annotation{
			Name: db.NodeNameStringID(), NS: db.NamespaceStringID(),
			Value: db.Strings.Add(fmt.Sprintf("doc1#span%d", node)),
		})
		db.NodeAnnos.Add(node, graph.Annotation{
			Name: db.Strings.Add("cat"), NS: db.Strings.Add("tiger"),
			Value: db.Strings.Add(cat),
		})
		for tok := from; tok <= to; tok++ {
			coverage.AddEdge(graph.Edge{Source: node, Target: graph.NodeID(tok)})
		}
		leftTok.AddEdge(graph.Edge{Source: node, Target: graph.NodeID(from)})
		rightTok.AddEdge(graph.Edge{Source: node, Target: graph.NodeID(to)})
	}
	addSpan(10, "S", 1, 7)
	addSpan(11, "NP", 4, 5)
	addSpan(12, "PP", 4, 5)

	db.CalculateStatistics()
	return db
}

func tokSearch(db *corpus.DB) annosearch.EstimatedSearch {
	return annosearch.NewExactAnnoKeySearch(db, graph.Namespace, graph.TokLabel)
}

func drainQuery(q *Query) [][]graph.Match {
	var result [][]graph.Match
	for tuple, ok := q.Next(); ok; tuple, ok = q.Next() {
		result = append(result, tuple)
	}
	return result
}

// nodePairs projects tuples to their node ID pairs for comparison.
func nodePairs(tuples [][]graph.Match) [][2]graph.NodeID {
	pairs := make([][2]graph.NodeID, 0, len(tuples))
	for _, tuple := range tuples {
		pairs = append(pairs, [2]graph.NodeID{tuple[0].Node, tuple[1].Node})
	}
	return pairs
}
