package exec

import (
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
	"github.com/orneryd/corpusdb/pkg/simd"
)

// IndexJoin drives the left side and verifies the operator's fan-out
// against a match generator derived from the right-hand search. When the
// constraint is a single fully qualified annotation and the fan-out batch
// is large enough, candidates are verified with one masked equality scan
// instead of per-node lookups.
type IndexJoin struct {
	db  *corpus.DB
	op  operators.Operator
	lhs TupleIterator

	lhsIdx int
	gen    MatchGenerator

	currentLHS []graph.Match
	buffer     []graph.Match
	bufPos     int

	// scratch buffers for the masked fast path
	values []uint32
	mask   []uint8
}

var _ TupleIterator = (*IndexJoin)(nil)

// NewIndexJoin creates the join.
func NewIndexJoin(db *corpus.DB, op operators.Operator, lhs TupleIterator, lhsIdx int, gen MatchGenerator) *IndexJoin {
	return &IndexJoin{db: db, op: op, lhs: lhs, lhsIdx: lhsIdx, gen: gen}
}

// Next returns the next extended tuple.
func (j *IndexJoin) Next() ([]graph.Match, bool) {
	if j.op == nil || !j.op.Valid() {
		return nil, false
	}

	for {
		if j.bufPos < len(j.buffer) {
			rhs := j.buffer[j.bufPos]
			j.bufPos++
			return concatTuple(j.currentLHS, []graph.Match{rhs}), true
		}

		tuple, ok := j.lhs.Next()
		if !ok {
			return nil, false
		}
		j.currentLHS = tuple
		j.fillBuffer(tuple[j.lhsIdx])
	}
}

func (j *IndexJoin) fillBuffer(left graph.Match) {
	j.buffer = j.buffer[:0]
	j.bufPos = 0

	candidates := j.op.RetrieveMatches(left)
	if len(candidates) == 0 {
		return
	}

	if j.gen.SingleAnno != nil && len(candidates) >= simd.MinBatchSize {
		j.fillBufferMasked(left, candidates)
		return
	}

	for _, candidate := range candidates {
		for _, m := range j.gen.Generate(candidate.Node) {
			if !j.op.IsReflexive() && sameNodeSameKey(left, m) {
				continue
			}
			j.buffer = append(j.buffer, m)
		}
	}
}

// fillBufferMasked gathers the candidates' values for the constrained key
// into one array and applies a single equality mask.
func (j *IndexJoin) fillBufferMasked(left graph.Match, candidates []graph.Match) {
	anno := *j.gen.SingleAnno

	if cap(j.values) < len(candidates) {
		j.values = make([]uint32, len(candidates))
		j.mask = make([]uint8, len(candidates))
	}
	values := j.values[:len(candidates)]
	mask := j.mask[:len(candidates)]

	for i, candidate := range candidates {
		values[i] = 0
		if found, ok := j.db.NodeAnnos.Get(candidate.Node, anno.NS, anno.Name); ok {
			values[i] = uint32(found.Value)
		}
	}

	if simd.MaskEqualUint32(values, uint32(anno.Value), mask) == 0 {
		return
	}
	for i, candidate := range candidates {
		if mask[i] == 0 {
			continue
		}
		m := graph.Match{Node: candidate.Node, Anno: emitAnno(anno, j.gen.ConstAnno)}
		if !j.op.IsReflexive() && sameNodeSameKey(left, m) {
			continue
		}
		j.buffer = append(j.buffer, m)
	}
}

// Reset restarts the join.
func (j *IndexJoin) Reset() {
	j.lhs.Reset()
	j.currentLHS = nil
	j.buffer = j.buffer[:0]
	j.bufPos = 0
}
