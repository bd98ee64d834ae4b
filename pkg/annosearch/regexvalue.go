package annosearch

import (
	"fmt"
	"log"
	"sort"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// RegexAnnoValueSearch finds every node whose annotation value fully
// matches a pattern. The candidate values come from a prefix-bounded scan
// of the interner; an invalid pattern yields an empty search.
type RegexAnnoValueSearch struct {
	db *corpus.DB

	ns      string
	name    string
	pattern string

	valid  map[graph.Annotation]struct{}
	buffer annoMatchBuffer
}

var _ AnnotationSearch = (*RegexAnnoValueSearch)(nil)

// NewRegexAnnoValueSearch creates the search. An empty ns matches every
// namespace.
func NewRegexAnnoValueSearch(db *corpus.DB, ns, name, pattern string) *RegexAnnoValueSearch {
	s := &RegexAnnoValueSearch{db: db, ns: ns, name: name, pattern: pattern,
		valid: make(map[graph.Annotation]struct{})}
	s.buffer = annoMatchBuffer{annos: db.NodeAnnos}

	nameID, okName := db.Strings.FindID(name)
	if !okName || nameID == 0 {
		return s
	}

	valueIDs, err := db.Strings.FindRegex(pattern)
	if err != nil {
		log.Printf("regex search %s=/%s/: %v", name, pattern, err)
		return s
	}

	var keys []graph.AnnotationKey
	if ns == "" {
		keys = db.NodeAnnos.KeysWithName(nameID)
	} else {
		nsID, okNS := db.Strings.FindID(ns)
		if !okNS {
			return s
		}
		keys = []graph.AnnotationKey{{Name: nameID, NS: nsID}}
	}

	var annos []graph.Annotation
	for _, key := range keys {
		for _, valueID := range valueIDs {
			a := graph.Annotation{Name: key.Name, NS: key.NS, Value: valueID}
			annos = append(annos, a)
			s.valid[a] = struct{}{}
		}
	}
	sort.Slice(annos, func(i, j int) bool { return graph.AnnotationLess(annos[i], annos[j]) })

	s.buffer.valid = annos
	return s
}

// Next returns the next matching node.
func (s *RegexAnnoValueSearch) Next() (graph.Match, bool) {
	return s.buffer.next()
}

// Reset restarts the iteration.
func (s *RegexAnnoValueSearch) Reset() {
	s.buffer.reset()
}

// ValidAnnotations returns the materialized matching annotations.
func (s *RegexAnnoValueSearch) ValidAnnotations() map[graph.Annotation]struct{} {
	return s.valid
}

// GuessMaxCount estimates via the histogram range derived from the
// pattern's prefix.
func (s *RegexAnnoValueSearch) GuessMaxCount() int64 {
	return s.db.NodeAnnos.GuessMaxCountRegex(s.ns, s.name, s.pattern)
}

// DebugString renders the search for plan output.
func (s *RegexAnnoValueSearch) DebugString() string {
	if s.ns == "" {
		return fmt.Sprintf("%s=/%s/", s.name, s.pattern)
	}
	return fmt.Sprintf("%s:%s=/%s/", s.ns, s.name, s.pattern)
}
