package annosearch

import (
	"fmt"
	"math"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// ExactAnnoKeySearch finds every node carrying any value for a matching
// annotation key. Both namespace and name may be empty; an empty name
// matches every key (the "any node" search uses the node-name key
// instead).
type ExactAnnoKeySearch struct {
	db *corpus.DB

	ns   string
	name string

	keys    []graph.AnnotationKey
	keySet  map[graph.AnnotationKey]struct{}
	current int
	buffer  []graph.Match
	bufPos  int
}

var _ AnnotationKeySearch = (*ExactAnnoKeySearch)(nil)

// NewExactAnnoKeySearch creates the search. Empty ns matches all
// namespaces, empty name matches all names.
func NewExactAnnoKeySearch(db *corpus.DB, ns, name string) *ExactAnnoKeySearch {
	s := &ExactAnnoKeySearch{db: db, ns: ns, name: name,
		keySet: make(map[graph.AnnotationKey]struct{})}

	var nameID, nsID graph.StringID
	if name != "" {
		id, ok := db.Strings.FindID(name)
		if !ok {
			return s
		}
		nameID = id
	}
	if ns != "" {
		id, ok := db.Strings.FindID(ns)
		if !ok {
			return s
		}
		nsID = id
	}

	for _, key := range db.NodeAnnos.Keys() {
		if nameID != 0 && key.Name != nameID {
			continue
		}
		if nsID != 0 && key.NS != nsID {
			continue
		}
		s.keys = append(s.keys, key)
		s.keySet[key] = struct{}{}
	}
	return s
}

// Next returns the next matching node, grouped by key.
func (s *ExactAnnoKeySearch) Next() (graph.Match, bool) {
	for {
		if s.bufPos < len(s.buffer) {
			m := s.buffer[s.bufPos]
			s.bufPos++
			return m, true
		}
		if s.current >= len(s.keys) {
			return graph.Match{}, false
		}

		key := s.keys[s.current]
		s.current++
		s.buffer = s.buffer[:0]
		s.bufPos = 0
		lower := graph.Annotation{Name: key.Name, NS: key.NS, Value: 0}
		upper := graph.Annotation{Name: key.Name, NS: key.NS, Value: math.MaxUint32}
		s.db.NodeAnnos.EachInRange(lower, upper, func(a graph.Annotation, node graph.NodeID) bool {
			s.buffer = append(s.buffer, graph.Match{Node: node, Anno: a})
			return true
		})
	}
}

// Reset restarts the iteration.
func (s *ExactAnnoKeySearch) Reset() {
	s.current = 0
	s.buffer = s.buffer[:0]
	s.bufPos = 0
}

// ValidAnnotationKeys returns the matching keys.
func (s *ExactAnnoKeySearch) ValidAnnotationKeys() map[graph.AnnotationKey]struct{} {
	return s.keySet
}

// GuessMaxCount sums the exact key populations; key counts are maintained
// eagerly, so this guess works without histograms.
func (s *ExactAnnoKeySearch) GuessMaxCount() int64 {
	var sum int64
	for _, key := range s.keys {
		sum += int64(s.db.NodeAnnos.KeyCount(key))
	}
	return sum
}

// DebugString renders the search for plan output.
func (s *ExactAnnoKeySearch) DebugString() string {
	switch {
	case s.ns == "" && s.name == "":
		return "*"
	case s.ns == "":
		return s.name
	default:
		return fmt.Sprintf("%s:%s", s.ns, s.name)
	}
}
