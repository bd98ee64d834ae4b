package exec

import (
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// Filter applies an operator to two columns that already exist in the
// same tuple. The planner uses it when both query nodes were joined into
// one connected component before.
type Filter struct {
	op  operators.Operator
	src TupleIterator

	lhsIdx int
	rhsIdx int
}

var _ TupleIterator = (*Filter)(nil)

// NewFilter creates the filter.
func NewFilter(op operators.Operator, src TupleIterator, lhsIdx, rhsIdx int) *Filter {
	return &Filter{op: op, src: src, lhsIdx: lhsIdx, rhsIdx: rhsIdx}
}

// Next returns the next tuple passing the operator.
func (f *Filter) Next() ([]graph.Match, bool) {
	if f.op == nil || !f.op.Valid() {
		return nil, false
	}
	for {
		tuple, ok := f.src.Next()
		if !ok {
			return nil, false
		}

		left := tuple[f.lhsIdx]
		right := tuple[f.rhsIdx]
		if !f.op.IsReflexive() && sameNodeSameKey(left, right) {
			continue
		}
		if f.op.Filter(left, right) {
			return tuple, true
		}
	}
}

// Reset restarts the source.
func (f *Filter) Reset() {
	f.src.Reset()
}
