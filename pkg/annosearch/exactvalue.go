package annosearch

import (
	"fmt"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// ExactAnnoValueSearch finds every node carrying an annotation with an
// exact value. Without a namespace the search covers all keys sharing the
// name. When any component string is not interned the search is empty.
type ExactAnnoValueSearch struct {
	db *corpus.DB

	ns    string
	name  string
	value string

	valid  map[graph.Annotation]struct{}
	buffer annoMatchBuffer
}

var _ AnnotationSearch = (*ExactAnnoValueSearch)(nil)

// NewExactAnnoValueSearch creates the search. An empty ns matches every
// namespace.
func NewExactAnnoValueSearch(db *corpus.DB, ns, name, value string) *ExactAnnoValueSearch {
	s := &ExactAnnoValueSearch{db: db, ns: ns, name: name, value: value,
		valid: make(map[graph.Annotation]struct{})}

	nameID, okName := db.Strings.FindID(name)
	valueID, okValue := db.Strings.FindID(value)
	if !okName || !okValue || nameID == 0 {
		s.buffer = annoMatchBuffer{annos: db.NodeAnnos}
		return s
	}

	var annos []graph.Annotation
	if ns == "" {
		for _, key := range db.NodeAnnos.KeysWithName(nameID) {
			annos = append(annos, graph.Annotation{Name: key.Name, NS: key.NS, Value: valueID})
		}
	} else {
		nsID, okNS := db.Strings.FindID(ns)
		if okNS {
			annos = append(annos, graph.Annotation{Name: nameID, NS: nsID, Value: valueID})
		}
	}

	for _, a := range annos {
		s.valid[a] = struct{}{}
	}
	s.buffer = annoMatchBuffer{annos: db.NodeAnnos, valid: annos}
	return s
}

// Next returns the next matching node.
func (s *ExactAnnoValueSearch) Next() (graph.Match, bool) {
	return s.buffer.next()
}

// Reset restarts the iteration.
func (s *ExactAnnoValueSearch) Reset() {
	s.buffer.reset()
}

// ValidAnnotations returns the fully resolved annotations this search
// emits.
func (s *ExactAnnoValueSearch) ValidAnnotations() map[graph.Annotation]struct{} {
	return s.valid
}

// GuessMaxCount sums the histogram estimates over all matching keys.
// Node-name annotations are unique per node, so their guess is exact.
func (s *ExactAnnoValueSearch) GuessMaxCount() int64 {
	if len(s.valid) == 0 {
		// an unresolvable component means the search is empty
		return 0
	}
	if s.name == graph.NodeNameLabel && (s.ns == "" || s.ns == graph.Namespace) {
		return 1
	}
	if s.ns == "" {
		return s.db.NodeAnnos.GuessMaxCount(s.name, s.value)
	}
	return s.db.NodeAnnos.GuessMaxCountNS(s.ns, s.name, s.value)
}

// DebugString renders the search for plan output.
func (s *ExactAnnoValueSearch) DebugString() string {
	if s.ns == "" {
		return fmt.Sprintf("%s=%q", s.name, s.value)
	}
	return fmt.Sprintf("%s:%s=%q", s.ns, s.name, s.value)
}
