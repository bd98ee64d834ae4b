package exec

import (
	"sort"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// seedJoin drives the left side and extends each tuple with the nodes the
// operator reaches from the tested column. Concrete variants differ in
// how a candidate node is verified against the right-hand constraints.
type seedJoin struct {
	db  *corpus.DB
	op  operators.Operator
	lhs TupleIterator

	lhsIdx int

	// verify returns the annotations making the candidate a valid
	// right-hand match.
	verify func(node graph.NodeID) []graph.Annotation

	// constAnno, when set, replaces the emitted right-hand annotation.
	constAnno *graph.Annotation

	currentLHS []graph.Match
	candidates []graph.Match
	candPos    int
	pending    []graph.Annotation
}

func (j *seedJoin) Next() ([]graph.Match, bool) {
	if j.op == nil || !j.op.Valid() {
		return nil, false
	}

	for {
		// drain the annotations of the current candidate first
		if len(j.pending) > 0 {
			anno := j.pending[0]
			j.pending = j.pending[1:]

			candidate := j.candidates[j.candPos-1]
			rhs := graph.Match{Node: candidate.Node, Anno: anno}
			if j.constAnno != nil {
				rhs.Anno = *j.constAnno
			}

			left := j.currentLHS[j.lhsIdx]
			if !j.op.IsReflexive() && sameNodeSameKey(left, rhs) {
				continue
			}
			return concatTuple(j.currentLHS, []graph.Match{rhs}), true
		}

		if j.candPos < len(j.candidates) {
			candidate := j.candidates[j.candPos]
			j.candPos++
			j.pending = j.verify(candidate.Node)
			continue
		}

		tuple, ok := j.lhs.Next()
		if !ok {
			return nil, false
		}
		j.currentLHS = tuple
		j.candidates = j.op.RetrieveMatches(tuple[j.lhsIdx])
		j.candPos = 0
	}
}

func (j *seedJoin) Reset() {
	j.lhs.Reset()
	j.currentLHS = nil
	j.candidates = nil
	j.candPos = 0
	j.pending = nil
}

// NewAnnoKeySeedJoin creates a seed join verifying candidates against a
// set of valid annotation keys: any value counts, the node just has to
// carry the key.
func NewAnnoKeySeedJoin(db *corpus.DB, op operators.Operator, lhs TupleIterator, lhsIdx int,
	validKeys map[graph.AnnotationKey]struct{}, constAnno *graph.Annotation) TupleIterator {
	keys := make([]graph.AnnotationKey, 0, len(validKeys))
	for k := range validKeys {
		keys = append(keys, k)
	}
	sortKeys(keys)

	return &seedJoin{
		db: db, op: op, lhs: lhs, lhsIdx: lhsIdx, constAnno: constAnno,
		verify: func(node graph.NodeID) []graph.Annotation {
			var result []graph.Annotation
			for _, key := range keys {
				if anno, ok := db.NodeAnnos.Get(node, key.NS, key.Name); ok {
					result = append(result, anno)
				}
			}
			return result
		},
	}
}

// NewMaterializedSeedJoin creates a seed join verifying candidates against
// a materialized set of valid annotations.
func NewMaterializedSeedJoin(db *corpus.DB, op operators.Operator, lhs TupleIterator, lhsIdx int,
	validAnnos map[graph.Annotation]struct{}, constAnno *graph.Annotation) TupleIterator {
	return &seedJoin{
		db: db, op: op, lhs: lhs, lhsIdx: lhsIdx, constAnno: constAnno,
		verify: func(node graph.NodeID) []graph.Annotation {
			var result []graph.Annotation
			for _, anno := range db.NodeAnnos.GetAll(node) {
				if _, ok := validAnnos[anno]; ok {
					result = append(result, anno)
				}
			}
			return result
		},
	}
}

func sortKeys(keys []graph.AnnotationKey) {
	sort.Slice(keys, func(i, j int) bool { return graph.KeyLess(keys[i], keys[j]) })
}
