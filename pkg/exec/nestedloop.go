package exec

import (
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// NestedLoopJoin streams the cross product of two tuple streams, resetting
// the inner side for each outer tuple, and keeps the pairs passing the
// operator. The smaller side should drive the
// outer loop; the planner decides that from its cardinality estimates.
type NestedLoopJoin struct {
	op  operators.Operator
	lhs TupleIterator
	rhs TupleIterator

	lhsIdx int
	rhsIdx int

	// leftIsOuter selects which side the outer loop iterates. Output
	// tuples are always ordered lhs columns first.
	leftIsOuter bool

	initialized bool
	outerTuple  []graph.Match
}

var _ TupleIterator = (*NestedLoopJoin)(nil)

// NewNestedLoopJoin creates the join. lhsIdx and rhsIdx are the columns
// the operator tests in the respective tuples.
func NewNestedLoopJoin(op operators.Operator, lhs, rhs TupleIterator, lhsIdx, rhsIdx int, leftIsOuter bool) *NestedLoopJoin {
	return &NestedLoopJoin{
		op:          op,
		lhs:         lhs,
		rhs:         rhs,
		lhsIdx:      lhsIdx,
		rhsIdx:      rhsIdx,
		leftIsOuter: leftIsOuter,
	}
}

func (j *NestedLoopJoin) outerInner() (TupleIterator, TupleIterator) {
	if j.leftIsOuter {
		return j.lhs, j.rhs
	}
	return j.rhs, j.lhs
}

// Next returns the next pair passing the operator filter.
func (j *NestedLoopJoin) Next() ([]graph.Match, bool) {
	if j.op == nil || !j.op.Valid() {
		return nil, false
	}
	outer, inner := j.outerInner()

	if !j.initialized {
		tuple, ok := outer.Next()
		if !ok {
			return nil, false
		}
		j.outerTuple = tuple
		j.initialized = true
	}

	for {
		innerTuple, ok := inner.Next()
		if !ok {
			tuple, okOuter := outer.Next()
			if !okOuter {
				return nil, false
			}
			j.outerTuple = tuple
			inner.Reset()
			continue
		}

		lhsTuple, rhsTuple := j.outerTuple, innerTuple
		if !j.leftIsOuter {
			lhsTuple, rhsTuple = innerTuple, j.outerTuple
		}

		left := lhsTuple[j.lhsIdx]
		right := rhsTuple[j.rhsIdx]

		if !j.op.IsReflexive() && sameNodeSameKey(left, right) {
			continue
		}
		if j.op.Filter(left, right) {
			return concatTuple(lhsTuple, rhsTuple), true
		}
	}
}

// Reset restarts both sides.
func (j *NestedLoopJoin) Reset() {
	j.lhs.Reset()
	j.rhs.Reset()
	j.initialized = false
	j.outerTuple = nil
}
