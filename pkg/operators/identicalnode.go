package operators

import "github.com/orneryd/corpusdb/pkg/graph"

// IdenticalNode relates a node to itself. Queries use it to bind two
// predicates to one node.
type IdenticalNode struct{}

var _ Operator = IdenticalNode{}

// NewIdenticalNode creates the operator.
func NewIdenticalNode() IdenticalNode { return IdenticalNode{} }

// RetrieveMatches returns the left-hand node itself.
func (IdenticalNode) RetrieveMatches(lhs graph.Match) []graph.Match {
	return []graph.Match{{Node: lhs.Node}}
}

// Filter tests node identity.
func (IdenticalNode) Filter(lhs, rhs graph.Match) bool {
	return lhs.Node == rhs.Node
}

// IsReflexive is true: the relation only holds for a node and itself.
func (IdenticalNode) IsReflexive() bool { return true }

// IsCommutative is true.
func (IdenticalNode) IsCommutative() bool { return true }

// Valid is always true.
func (IdenticalNode) Valid() bool { return true }

// Selectivity is the chance of hitting one specific node; without a
// global node count available here a small constant is used.
func (IdenticalNode) Selectivity() float64 { return 0.01 }

// EdgeAnnoSelectivity is -1.
func (IdenticalNode) EdgeAnnoSelectivity() float64 { return -1.0 }

// Description renders the operator.
func (IdenticalNode) Description() string { return "_ident_" }
