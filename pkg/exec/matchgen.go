package exec

import (
	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
)

// MatchGenerator expresses the right-hand constraints of an index join as
// a function from candidate node to valid matches. It is derived from the
// right-hand leaf search.
type MatchGenerator struct {
	// Generate returns the matches a candidate node contributes.
	Generate func(node graph.NodeID) []graph.Match

	// SingleAnno is set when the constraint is exactly one fully
	// qualified annotation, enabling the batched equality fast path.
	SingleAnno *graph.Annotation

	// ConstAnno, when set, replaces every emitted annotation.
	ConstAnno *graph.Annotation
}

// NewMatchGenerator derives the generator from a leaf search. A
// ConstAnnoWrapper is unwrapped; its constant annotation carries over to
// the generator.
func NewMatchGenerator(db *corpus.DB, search annosearch.EstimatedSearch) MatchGenerator {
	var constAnno *graph.Annotation
	if wrapper, ok := search.(*annosearch.ConstAnnoWrapper); ok {
		anno := wrapper.ConstAnno
		constAnno = &anno
		search = wrapper.Delegate
	}

	switch s := search.(type) {
	case annosearch.AnnotationSearch:
		return newAnnotationGenerator(db, s.ValidAnnotations(), constAnno)
	case annosearch.AnnotationKeySearch:
		return newKeyGenerator(db, s.ValidAnnotationKeys(), constAnno)
	}

	// a search exposing neither annotations nor keys cannot seed
	return MatchGenerator{Generate: func(graph.NodeID) []graph.Match { return nil }}
}

func newAnnotationGenerator(db *corpus.DB, validAnnos map[graph.Annotation]struct{}, constAnno *graph.Annotation) MatchGenerator {
	if len(validAnnos) == 1 {
		var single graph.Annotation
		for a := range validAnnos {
			single = a
		}
		return MatchGenerator{
			SingleAnno: &single,
			ConstAnno:  constAnno,
			Generate: func(node graph.NodeID) []graph.Match {
				found, ok := db.NodeAnnos.Get(node, single.NS, single.Name)
				if !ok || found.Value != single.Value {
					return nil
				}
				return []graph.Match{{Node: node, Anno: emitAnno(found, constAnno)}}
			},
		}
	}

	return MatchGenerator{
		ConstAnno: constAnno,
		Generate: func(node graph.NodeID) []graph.Match {
			var result []graph.Match
			for _, anno := range db.NodeAnnos.GetAll(node) {
				if _, ok := validAnnos[anno]; ok {
					result = append(result, graph.Match{Node: node, Anno: emitAnno(anno, constAnno)})
				}
			}
			return result
		},
	}
}

func newKeyGenerator(db *corpus.DB, validKeys map[graph.AnnotationKey]struct{}, constAnno *graph.Annotation) MatchGenerator {
	if len(validKeys) == 1 {
		var single graph.AnnotationKey
		for k := range validKeys {
			single = k
		}
		return MatchGenerator{
			ConstAnno: constAnno,
			Generate: func(node graph.NodeID) []graph.Match {
				found, ok := db.NodeAnnos.Get(node, single.NS, single.Name)
				if !ok {
					return nil
				}
				return []graph.Match{{Node: node, Anno: emitAnno(found, constAnno)}}
			},
		}
	}

	keys := make([]graph.AnnotationKey, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sortKeys(keys)

	return MatchGenerator{
		ConstAnno: constAnno,
		Generate: func(node graph.NodeID) []graph.Match {
			var result []graph.Match
			for _, key := range keys {
				if anno, ok := db.NodeAnnos.Get(node, key.NS, key.Name); ok {
					result = append(result, graph.Match{Node: node, Anno: emitAnno(anno, constAnno)})
				}
			}
			return result
		},
	}
}

func emitAnno(found graph.Annotation, constAnno *graph.Annotation) graph.Annotation {
	if constAnno != nil {
		return *constAnno
	}
	return found
}
