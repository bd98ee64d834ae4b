package operators

import (
	"fmt"
	"math"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
)

// Precedence relates nodes by token order: the right-most token of the
// left operand precedes the left-most token of the right operand by a
// distance in [minDistance, maxDistance] on the ORDERING chain.
type Precedence struct {
	db     *corpus.DB
	tokens *TokenHelper

	gsOrder graphstorage.GraphStorage

	minDistance uint32
	maxDistance uint32

	valid bool
}

var _ Operator = (*Precedence)(nil)

// NewPrecedence creates the operator. minDistance and maxDistance bound
// the token distance; (1, 1) is direct precedence.
func NewPrecedence(db *corpus.DB, minDistance, maxDistance uint32) *Precedence {
	p := &Precedence{db: db, minDistance: minDistance, maxDistance: maxDistance}

	order, okOrder := db.GetStorage(graph.Component{Type: graph.Ordering, Layer: graph.Namespace})
	tokens, okTok := NewTokenHelper(db)
	if !okOrder || !okTok {
		return p
	}
	p.gsOrder = order
	p.tokens = tokens
	p.valid = true
	return p
}

// RetrieveMatches walks the ORDERING chain from the right-most token of
// lhs and expands each reached token to itself plus every node
// left-aligned with it.
func (p *Precedence) RetrieveMatches(lhs graph.Match) []graph.Match {
	if !p.valid {
		return nil
	}
	start, ok := p.tokens.RightTokenFor(lhs.Node)
	if !ok {
		return nil
	}

	unique := make(map[graph.NodeID]struct{})
	it := p.gsOrder.FindConnected(start, p.minDistance, p.maxDistance)
	for tok, okNext := it.Next(); okNext; tok, okNext = it.Next() {
		unique[tok] = struct{}{}
		for _, aligned := range p.tokens.LeftAlignedNodes(tok) {
			unique[aligned] = struct{}{}
		}
	}

	result := make([]graph.Match, 0, len(unique))
	for n := range unique {
		result = append(result, graph.Match{Node: n})
	}
	sortMatchesByNode(result)
	return result
}

// Filter checks the ORDERING distance between the operands' boundary
// tokens.
func (p *Precedence) Filter(lhs, rhs graph.Match) bool {
	if !p.valid {
		return false
	}
	start, okS := p.tokens.RightTokenFor(lhs.Node)
	end, okE := p.tokens.LeftTokenFor(rhs.Node)
	if !okS || !okE {
		return false
	}
	return p.gsOrder.IsConnected(graph.Edge{Source: start, Target: end}, p.minDistance, p.maxDistance)
}

// IsReflexive is false: a node never precedes itself.
func (p *Precedence) IsReflexive() bool { return false }

// IsCommutative is false: precedence is directed.
func (p *Precedence) IsCommutative() bool { return false }

// Valid reports whether the ORDERING and token components exist.
func (p *Precedence) Valid() bool { return p.valid }

// Selectivity scales the distance window by the token count.
func (p *Precedence) Selectivity() float64 {
	if !p.valid {
		return 0.0
	}
	stat := p.gsOrder.Statistics()
	if !stat.Valid || stat.Nodes == 0 {
		return defaultSelectivity
	}

	maxDist := p.maxDistance
	if stat.MaxDepth < maxDist {
		maxDist = stat.MaxDepth
	}
	window := float64(maxDist-p.minDistance) + 1
	return math.Min(1.0, window/float64(stat.Nodes))
}

// EdgeAnnoSelectivity is -1: precedence has no edge annotation constraint.
func (p *Precedence) EdgeAnnoSelectivity() float64 { return -1.0 }

// Description renders the operator with its distance range.
func (p *Precedence) Description() string {
	switch {
	case p.minDistance == 1 && p.maxDistance == 1:
		return "."
	case p.minDistance == 1 && p.maxDistance == graphstorage.MaxDistance:
		return ".*"
	case p.minDistance == p.maxDistance:
		return fmt.Sprintf(".%d", p.minDistance)
	default:
		return fmt.Sprintf(".%d,%d", p.minDistance, p.maxDistance)
	}
}
