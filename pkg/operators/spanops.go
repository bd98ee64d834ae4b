package operators

import (
	"math"
	"sort"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
)

func sortMatchesByNode(matches []graph.Match) {
	sort.Slice(matches, func(i, j int) bool { return matches[i].Node < matches[j].Node })
}

// spanOperator carries the shared state of the token-span relations:
// inclusion, overlap and identical coverage all compare the covered token
// intervals of their operands through ORDERING and COVERAGE.
type spanOperator struct {
	db     *corpus.DB
	tokens *TokenHelper

	gsOrder graphstorage.GraphStorage
	valid   bool
}

func newSpanOperator(db *corpus.DB) spanOperator {
	op := spanOperator{db: db}
	order, okOrder := db.GetStorage(graph.Component{Type: graph.Ordering, Layer: graph.Namespace})
	tokens, okTok := NewTokenHelper(db)
	if !okOrder || !okTok {
		return op
	}
	op.gsOrder = order
	op.tokens = tokens
	op.valid = true
	return op
}

// span returns the boundary tokens of a node.
func (op *spanOperator) span(node graph.NodeID) (left, right graph.NodeID, ok bool) {
	left, okL := op.tokens.LeftTokenFor(node)
	right, okR := op.tokens.RightTokenFor(node)
	return left, right, okL && okR
}

// ordered reports whether a comes before b (or is b) on the token chain.
func (op *spanOperator) ordered(a, b graph.NodeID) bool {
	if a == b {
		return true
	}
	return op.gsOrder.IsConnected(graph.Edge{Source: a, Target: b}, 0, graphstorage.MaxDistance)
}

// Inclusion relates a node to every node whose covered token span lies
// inside its own: L <= l and r <= R.
type Inclusion struct {
	spanOperator
}

var _ Operator = (*Inclusion)(nil)

// NewInclusion creates the operator.
func NewInclusion(db *corpus.DB) *Inclusion {
	return &Inclusion{spanOperator: newSpanOperator(db)}
}

// RetrieveMatches enumerates the tokens of the lhs span and every node
// left-aligned inside the span whose right border stays inside.
func (i *Inclusion) RetrieveMatches(lhs graph.Match) []graph.Match {
	if !i.valid {
		return nil
	}
	left, right, ok := i.span(lhs.Node)
	if !ok {
		return nil
	}
	spanLength := i.gsOrder.Distance(graph.Edge{Source: left, Target: right})
	if spanLength < 0 {
		return nil
	}

	unique := make(map[graph.NodeID]struct{})
	it := i.gsOrder.FindConnected(left, 0, uint32(spanLength))
	for tok, okNext := it.Next(); okNext; tok, okNext = it.Next() {
		// the token itself is always inside
		unique[tok] = struct{}{}

		for _, candidate := range i.tokens.LeftAlignedNodes(tok) {
			candidateRight, okR := i.tokens.RightTokenFor(candidate)
			if okR && i.ordered(candidateRight, right) {
				unique[candidate] = struct{}{}
			}
		}
	}

	result := make([]graph.Match, 0, len(unique))
	for n := range unique {
		result = append(result, graph.Match{Node: n})
	}
	sortMatchesByNode(result)
	return result
}

// Filter tests span containment.
func (i *Inclusion) Filter(lhs, rhs graph.Match) bool {
	if !i.valid {
		return false
	}
	leftL, rightL, okL := i.span(lhs.Node)
	leftR, rightR, okR := i.span(rhs.Node)
	if !okL || !okR {
		return false
	}
	return i.ordered(leftL, leftR) && i.ordered(rightR, rightL)
}

// IsReflexive is false.
func (i *Inclusion) IsReflexive() bool { return false }

// IsCommutative is false: containment is directed.
func (i *Inclusion) IsCommutative() bool { return false }

// Valid reports whether the span components exist.
func (i *Inclusion) Valid() bool { return i.valid }

// Selectivity estimates from the coverage fan-out: a node includes about
// its covered-token count plus the nodes aligned inside.
func (i *Inclusion) Selectivity() float64 {
	if !i.valid {
		return 0.0
	}
	statOrder := i.gsOrder.Statistics()
	statCov := i.tokens.covEdges.Statistics()
	if !statOrder.Valid || !statCov.Valid || statOrder.Nodes == 0 {
		return defaultSelectivity
	}
	if statCov.Nodes == 0 {
		// token-only corpus
		return 1.0 / float64(statOrder.Nodes)
	}
	included := statCov.AvgFanOut * (1.0 + statCov.AvgFanOut)
	return math.Min(1.0, included/float64(statCov.Nodes))
}

// EdgeAnnoSelectivity is -1.
func (i *Inclusion) EdgeAnnoSelectivity() float64 { return -1.0 }

// Description renders the operator.
func (i *Inclusion) Description() string { return "_i_" }

// Overlap relates nodes whose covered token spans intersect.
type Overlap struct {
	spanOperator
}

var _ Operator = (*Overlap)(nil)

// NewOverlap creates the operator.
func NewOverlap(db *corpus.DB) *Overlap {
	return &Overlap{spanOperator: newSpanOperator(db)}
}

// RetrieveMatches collects, for every token covered by lhs, the token
// itself and every node covering it.
func (o *Overlap) RetrieveMatches(lhs graph.Match) []graph.Match {
	if !o.valid {
		return nil
	}

	unique := make(map[graph.NodeID]struct{})
	for _, tok := range o.tokens.CoveredTokens(lhs.Node) {
		unique[tok] = struct{}{}
		for _, covering := range o.tokens.CoveringNodes(tok) {
			unique[covering] = struct{}{}
		}
	}

	result := make([]graph.Match, 0, len(unique))
	for n := range unique {
		result = append(result, graph.Match{Node: n})
	}
	sortMatchesByNode(result)
	return result
}

// Filter tests span intersection: each span starts before the other ends.
func (o *Overlap) Filter(lhs, rhs graph.Match) bool {
	if !o.valid {
		return false
	}
	leftL, rightL, okL := o.span(lhs.Node)
	leftR, rightR, okR := o.span(rhs.Node)
	if !okL || !okR {
		return false
	}
	return o.ordered(leftL, rightR) && o.ordered(leftR, rightL)
}

// IsReflexive is false.
func (o *Overlap) IsReflexive() bool { return false }

// IsCommutative is true: intersection is symmetric.
func (o *Overlap) IsCommutative() bool { return true }

// Valid reports whether the span components exist.
func (o *Overlap) Valid() bool { return o.valid }

// Selectivity estimates from coverage statistics: covered tokens per node
// times the nodes aligned on each token.
func (o *Overlap) Selectivity() float64 {
	if !o.valid {
		return 0.0
	}
	statOrder := o.gsOrder.Statistics()
	statCov := o.tokens.covEdges.Statistics()
	if !statOrder.Valid || !statCov.Valid || statOrder.Nodes == 0 {
		return defaultSelectivity
	}
	if statCov.Nodes == 0 {
		return 1.0 / float64(statOrder.Nodes)
	}
	coveredPerNode := statCov.AvgFanOut
	alignedNonToken := coveredPerNode * statCov.AvgFanOut
	return math.Min(1.0, (coveredPerNode+alignedNonToken)/float64(statCov.Nodes))
}

// EdgeAnnoSelectivity is -1.
func (o *Overlap) EdgeAnnoSelectivity() float64 { return -1.0 }

// Description renders the operator.
func (o *Overlap) Description() string { return "_o_" }

// IdenticalCoverage relates nodes covering exactly the same token span.
type IdenticalCoverage struct {
	spanOperator
}

var _ Operator = (*IdenticalCoverage)(nil)

// NewIdenticalCoverage creates the operator.
func NewIdenticalCoverage(db *corpus.DB) *IdenticalCoverage {
	return &IdenticalCoverage{spanOperator: newSpanOperator(db)}
}

// RetrieveMatches returns every node left-aligned with lhs whose right
// border matches, plus the left token itself for single-token spans.
func (ic *IdenticalCoverage) RetrieveMatches(lhs graph.Match) []graph.Match {
	if !ic.valid {
		return nil
	}
	left, right, ok := ic.span(lhs.Node)
	if !ok {
		return nil
	}

	unique := make(map[graph.NodeID]struct{})
	if left == right && lhs.Node != left {
		// a single-token span has identical coverage with its token
		unique[left] = struct{}{}
	}
	if ic.tokens.IsToken(lhs.Node) {
		unique[lhs.Node] = struct{}{}
	}
	for _, candidate := range ic.tokens.LeftAlignedNodes(left) {
		candidateRight, okR := ic.tokens.RightTokenFor(candidate)
		if okR && candidateRight == right {
			unique[candidate] = struct{}{}
		}
	}

	result := make([]graph.Match, 0, len(unique))
	for n := range unique {
		result = append(result, graph.Match{Node: n})
	}
	sortMatchesByNode(result)
	return result
}

// Filter tests for identical boundary tokens.
func (ic *IdenticalCoverage) Filter(lhs, rhs graph.Match) bool {
	if !ic.valid {
		return false
	}
	leftL, rightL, okL := ic.span(lhs.Node)
	leftR, rightR, okR := ic.span(rhs.Node)
	if !okL || !okR {
		return false
	}
	return leftL == leftR && rightL == rightR
}

// IsReflexive is false.
func (ic *IdenticalCoverage) IsReflexive() bool { return false }

// IsCommutative is true.
func (ic *IdenticalCoverage) IsCommutative() bool { return true }

// Valid reports whether the span components exist.
func (ic *IdenticalCoverage) Valid() bool { return ic.valid }

// Selectivity assumes few nodes share one exact span.
func (ic *IdenticalCoverage) Selectivity() float64 {
	if !ic.valid {
		return 0.0
	}
	statCov := ic.tokens.covEdges.Statistics()
	if !statCov.Valid || statCov.Nodes == 0 {
		return defaultSelectivity
	}
	return math.Min(1.0, 1.0/float64(statCov.Nodes))
}

// EdgeAnnoSelectivity is -1.
func (ic *IdenticalCoverage) EdgeAnnoSelectivity() float64 { return -1.0 }

// Description renders the operator.
func (ic *IdenticalCoverage) Description() string { return "_=_" }
