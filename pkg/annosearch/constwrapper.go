package annosearch

import "github.com/orneryd/corpusdb/pkg/graph"

// ConstAnnoWrapper replaces the annotation of every emitted match with a
// caller-supplied constant. Queries use it when the matched annotation
// only serves as a node-identity proxy (the "any node" search); node IDs
// are deduplicated because the delegate may emit one node several times
// under different annotations.
type ConstAnnoWrapper struct {
	Delegate  EstimatedSearch
	ConstAnno graph.Annotation

	seen map[graph.NodeID]struct{}
}

var _ EstimatedSearch = (*ConstAnnoWrapper)(nil)

// NewConstAnnoWrapper wraps a search with a constant output annotation.
func NewConstAnnoWrapper(delegate EstimatedSearch, constAnno graph.Annotation) *ConstAnnoWrapper {
	return &ConstAnnoWrapper{
		Delegate:  delegate,
		ConstAnno: constAnno,
		seen:      make(map[graph.NodeID]struct{}),
	}
}

// Next returns the next distinct node with the constant annotation.
func (w *ConstAnnoWrapper) Next() (graph.Match, bool) {
	for {
		m, ok := w.Delegate.Next()
		if !ok {
			return graph.Match{}, false
		}
		if _, dup := w.seen[m.Node]; dup {
			continue
		}
		w.seen[m.Node] = struct{}{}
		return graph.Match{Node: m.Node, Anno: w.ConstAnno}, true
	}
}

// Reset restarts the iteration.
func (w *ConstAnnoWrapper) Reset() {
	w.Delegate.Reset()
	w.seen = make(map[graph.NodeID]struct{})
}

// GuessMaxCount delegates to the wrapped search.
func (w *ConstAnnoWrapper) GuessMaxCount() int64 {
	return w.Delegate.GuessMaxCount()
}

// DebugString delegates to the wrapped search.
func (w *ConstAnnoWrapper) DebugString() string {
	return w.Delegate.DebugString()
}
