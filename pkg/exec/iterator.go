// Package exec provides the join iterators, the plan tree with its cost
// model, and the query driver. A query is an ordered list of leaf
// searches linked by binary operators; the planner turns it into a tree
// of joins and filters that yields one match tuple per step.
package exec

import (
	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// TupleIterator produces tuples of matches, one column per query node
// covered so far. Iterators are single-owner and only restartable through
// Reset.
type TupleIterator interface {
	Next() ([]graph.Match, bool)
	Reset()
}

// baseIterator adapts a leaf search to the tuple contract with tuples of
// length one.
type baseIterator struct {
	search annosearch.EstimatedSearch
}

func newBaseIterator(search annosearch.EstimatedSearch) *baseIterator {
	return &baseIterator{search: search}
}

func (b *baseIterator) Next() ([]graph.Match, bool) {
	m, ok := b.search.Next()
	if !ok {
		return nil, false
	}
	return []graph.Match{m}, true
}

func (b *baseIterator) Reset() {
	b.search.Reset()
}

// sameNodeSameKey reports whether two matches hit the same node under the
// same annotation key. Non-reflexive operators discard such pairs.
func sameNodeSameKey(a, b graph.Match) bool {
	return a.Node == b.Node && a.Anno.Name == b.Anno.Name && a.Anno.NS == b.Anno.NS
}

// concatTuple builds the output tuple of a join: the left tuple followed
// by the right one.
func concatTuple(lhs, rhs []graph.Match) []graph.Match {
	result := make([]graph.Match, 0, len(lhs)+len(rhs))
	result = append(result, lhs...)
	result = append(result, rhs...)
	return result
}
