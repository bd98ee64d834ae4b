// Package annosearch provides the leaf iterators of a query: exact-value,
// exact-key and regex searches over the node annotation index. Every
// search yields Match values and reports a cardinality guess to the
// planner.
package annosearch

import "github.com/orneryd/corpusdb/pkg/graph"

// MatchIterator yields matches one at a time. Iterators are single-owner
// and not restartable beyond an explicit Reset.
type MatchIterator interface {
	Next() (graph.Match, bool)
	Reset()
}

// EstimatedSearch is a leaf iterator that can estimate its own output
// cardinality. Value-based searches return -1 from GuessMaxCount when no
// statistics are available; the exact-key search counts keys directly.
type EstimatedSearch interface {
	MatchIterator
	GuessMaxCount() int64
	DebugString() string
}

// AnnotationSearch exposes the concrete annotations a search can emit, for
// seeding joins.
type AnnotationSearch interface {
	EstimatedSearch
	ValidAnnotations() map[graph.Annotation]struct{}
}

// AnnotationKeySearch exposes the annotation keys a search can emit, for
// seeding joins when the value is unconstrained.
type AnnotationKeySearch interface {
	EstimatedSearch
	ValidAnnotationKeys() map[graph.AnnotationKey]struct{}
}

// annoMatchBuffer iterates a list of annotations, materializing the node
// range of one annotation at a time.
type annoMatchBuffer struct {
	annos *graph.NodeAnnoStorage

	valid   []graph.Annotation
	current int
	buffer  []graph.Match
	bufPos  int
}

func (b *annoMatchBuffer) next() (graph.Match, bool) {
	for {
		if b.bufPos < len(b.buffer) {
			m := b.buffer[b.bufPos]
			b.bufPos++
			return m, true
		}
		if b.current >= len(b.valid) {
			return graph.Match{}, false
		}

		anno := b.valid[b.current]
		b.current++
		b.buffer = b.buffer[:0]
		b.bufPos = 0
		b.annos.EachInRange(anno, anno, func(a graph.Annotation, node graph.NodeID) bool {
			b.buffer = append(b.buffer, graph.Match{Node: node, Anno: a})
			return true
		})
	}
}

func (b *annoMatchBuffer) reset() {
	b.current = 0
	b.buffer = b.buffer[:0]
	b.bufPos = 0
}
