// Package operators provides the binary structural predicates of a query:
// precedence, dominance, pointing, inclusion, overlap and identical
// coverage. Every operator can enumerate the partners of a left-hand node
// (for seed joins) and test a concrete node pair (for nested-loop joins
// and filters).
package operators

import "github.com/orneryd/corpusdb/pkg/graph"

// Operator is a binary structural predicate over node pairs.
type Operator interface {
	// RetrieveMatches returns every node standing in this relation to lhs.
	// The annotations of the returned matches are unset; joins resolve
	// them against the right-hand side's constraints.
	RetrieveMatches(lhs graph.Match) []graph.Match

	// Filter reports whether the concrete pair satisfies the relation.
	Filter(lhs, rhs graph.Match) bool

	// IsReflexive reports whether a node may be related to itself. Joins
	// skip same-node pairs for non-reflexive operators.
	IsReflexive() bool

	// IsCommutative reports whether operands can be swapped without
	// changing the result set.
	IsCommutative() bool

	// Selectivity estimates the fraction of candidate pairs surviving the
	// relation, excluding any edge-annotation constraint.
	Selectivity() float64

	// EdgeAnnoSelectivity estimates the additional filtering effect of an
	// edge-annotation constraint, or -1 when there is none.
	EdgeAnnoSelectivity() float64

	// Valid reports whether the operator can match at all. An operator
	// referencing a component without a storage is trivially
	// unsatisfiable.
	Valid() bool

	// Description renders the operator for plan output.
	Description() string
}

const defaultSelectivity = 0.1
