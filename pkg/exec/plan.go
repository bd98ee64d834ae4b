package exec

import (
	"fmt"
	"strings"

	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// ExecutionNodeType classifies the nodes of a plan tree.
type ExecutionNodeType int

const (
	ExecutionNodeBase ExecutionNodeType = iota
	ExecutionNodeFilter
	ExecutionNodeNestedLoop
	ExecutionNodeSeed
)

func (t ExecutionNodeType) String() string {
	switch t {
	case ExecutionNodeBase:
		return "base"
	case ExecutionNodeFilter:
		return "filter"
	case ExecutionNodeNestedLoop:
		return "nested_loop"
	case ExecutionNodeSeed:
		return "seed"
	}
	return "<unknown>"
}

// ExecutionEstimate caches a node's estimated output cardinality and the
// summed size of all intermediate results below it.
type ExecutionEstimate struct {
	Output          uint64
	IntermediateSum uint64
}

// ExecutionNode is one node of the plan tree. NodePos maps a query node
// index to its tuple column.
type ExecutionNode struct {
	Type ExecutionNodeType
	Join TupleIterator
	Op   operators.Operator

	ComponentNr int
	LHS         *ExecutionNode
	RHS         *ExecutionNode
	NodePos     map[int]int

	Description string
	BaseSearch  annosearch.EstimatedSearch

	estimate *ExecutionEstimate
}

const (
	defaultBaseTuples  = uint64(100000)
	defaultSelectivity = 0.1
)

// newBaseNode wraps one leaf search as a plan node.
func newBaseNode(queryNodeIdx int, search annosearch.EstimatedSearch) *ExecutionNode {
	return &ExecutionNode{
		Type:        ExecutionNodeBase,
		Join:        newBaseIterator(search),
		ComponentNr: queryNodeIdx,
		NodePos:     map[int]int{queryNodeIdx: 0},
		BaseSearch:  search,
	}
}

// join combines two plan nodes with an operator, choosing the join
// strategy:
//   - both sides in one component: a filter on the existing tuple
//   - right side is a base search: a seed join (index, key-seed or
//     materialized-seed per config, task-parallel with a pool)
//   - otherwise a nested loop, with the smaller side as outer; when the
//     operator commutes and the left side is a base search, the operands
//     are swapped to get a seed join instead
func join(db *corpus.DB, op operators.Operator, lhsNode, rhsNode int,
	lhs, rhs *ExecutionNode, forceNestedLoop bool, config QueryConfig, pool *WorkerPool) *ExecutionNode {

	joinType := ExecutionNodeNestedLoop
	if lhs == rhs || lhs.ComponentNr == rhs.ComponentNr {
		joinType = ExecutionNodeFilter
	} else if rhs.Type == ExecutionNodeBase && !forceNestedLoop {
		joinType = ExecutionNodeSeed
	} else if config.AvoidNestedBySwitch && !forceNestedLoop &&
		op.IsCommutative() && lhs.Type == ExecutionNodeBase {
		lhs, rhs = rhs, lhs
		lhsNode, rhsNode = rhsNode, lhsNode
		joinType = ExecutionNodeSeed
	}

	result := &ExecutionNode{NodePos: make(map[int]int)}

	lhsIdx, okL := lhs.NodePos[lhsNode]
	rhsIdx, okR := rhs.NodePos[rhsNode]
	if !okL || !okR {
		return result
	}

	switch joinType {
	case ExecutionNodeFilter:
		result.Type = ExecutionNodeFilter
		result.Join = NewFilter(op, lhs.Join, lhsIdx, rhsIdx)

	case ExecutionNodeSeed:
		result.Type = ExecutionNodeSeed
		result.Join = newSeedVariant(db, op, lhs, rhs, lhsIdx, config, pool)
		if result.Join == nil {
			// the right side cannot seed, fall back to nested loop
			result.Type = ExecutionNodeNestedLoop
			result.Join = NewNestedLoopJoin(op, lhs.Join, rhs.Join, lhsIdx, rhsIdx, true)
		}

	default:
		result.Type = ExecutionNodeNestedLoop
		leftIsOuter := estimateTupleSize(lhs).Output <= estimateTupleSize(rhs).Output
		result.Join = NewNestedLoopJoin(op, lhs.Join, rhs.Join, lhsIdx, rhsIdx, leftIsOuter)
	}

	result.Op = op
	result.ComponentNr = lhs.ComponentNr
	result.LHS = lhs
	result.Description = fmt.Sprintf("#%d %s #%d", lhsNode+1, op.Description(), rhsNode+1)

	if result.Type != ExecutionNodeFilter {
		result.RHS = rhs
	}
	rhs.ComponentNr = result.ComponentNr

	for node, pos := range lhs.NodePos {
		result.NodePos[node] = pos
	}
	if result.Type != ExecutionNodeFilter {
		// the RHS columns sit behind the LHS columns in the joined tuple
		offset := len(lhs.NodePos)
		for node, pos := range rhs.NodePos {
			result.NodePos[node] = pos + offset
		}
	}
	return result
}

// newSeedVariant picks the seed join implementation for a base right
// side, or nil when the search exposes neither annotations nor keys.
func newSeedVariant(db *corpus.DB, op operators.Operator, lhs, rhs *ExecutionNode,
	lhsIdx int, config QueryConfig, pool *WorkerPool) TupleIterator {

	search := rhs.BaseSearch
	var constAnno *graph.Annotation
	if wrapper, ok := search.(*annosearch.ConstAnnoWrapper); ok {
		anno := wrapper.ConstAnno
		constAnno = &anno
		search = wrapper.Delegate
	}

	keySearch, isKeySearch := search.(annosearch.AnnotationKeySearch)
	annoSearch, isAnnoSearch := search.(annosearch.AnnotationSearch)
	if !isKeySearch && !isAnnoSearch {
		return nil
	}

	if pool != nil {
		gen := NewMatchGenerator(db, rhs.BaseSearch)
		return NewTaskIndexJoin(op, lhs.Join, lhsIdx, gen, config.MaxBufferedTasks, pool)
	}

	switch config.NonParallelJoin {
	case JoinSeed:
		if isKeySearch {
			return NewAnnoKeySeedJoin(db, op, lhs.Join, lhsIdx, keySearch.ValidAnnotationKeys(), constAnno)
		}
		return NewMaterializedSeedJoin(db, op, lhs.Join, lhsIdx, annoSearch.ValidAnnotations(), constAnno)
	case JoinNestedLoop:
		return nil
	default:
		gen := NewMatchGenerator(db, rhs.BaseSearch)
		return NewIndexJoin(db, op, lhs.Join, lhsIdx, gen)
	}
}

// estimateTupleSize computes and caches the cost estimate of a plan node.
func estimateTupleSize(node *ExecutionNode) *ExecutionEstimate {
	if node == nil {
		return &ExecutionEstimate{}
	}
	if node.estimate != nil {
		return node.estimate
	}

	if node.BaseSearch != nil {
		guess := node.BaseSearch.GuessMaxCount()
		if guess >= 0 {
			node.estimate = &ExecutionEstimate{Output: uint64(guess)}
		} else {
			node.estimate = &ExecutionEstimate{Output: defaultBaseTuples}
		}
		return node.estimate
	}

	if node.LHS != nil && node.RHS != nil {
		estLHS := estimateTupleSize(node.LHS)
		estRHS := estimateTupleSize(node.RHS)

		selectivity := defaultSelectivity
		operatorSelectivity := defaultSelectivity
		if node.Op != nil {
			selectivity = node.Op.Selectivity()
			operatorSelectivity = selectivity
			if edgeAnnoSel := node.Op.EdgeAnnoSelectivity(); edgeAnnoSel >= 0 {
				selectivity *= edgeAnnoSel
			}
		}

		output := uint64(float64(estLHS.Output) * float64(estRHS.Output) * selectivity)
		if output < 1 {
			// at least one output item, so a tiny selectivity cannot fool
			// the planner
			output = 1
		}

		var processed uint64
		if node.Type == ExecutionNodeNestedLoop {
			outer, inner := estLHS.Output, estRHS.Output
			if inner < outer {
				outer, inner = inner, outer
			}
			processed = outer + outer*inner
		} else {
			// a seed join processes each LHS plus its average fan-out,
			// reconstructed from the operator selectivity without the
			// edge annotation factor
			processed = estLHS.Output +
				uint64(operatorSelectivity*float64(estRHS.Output)*float64(estLHS.Output))
		}

		node.estimate = &ExecutionEstimate{
			Output:          output,
			IntermediateSum: processed + estLHS.IntermediateSum + estRHS.IntermediateSum,
		}
		return node.estimate
	}

	if node.LHS != nil {
		// filter node
		estLHS := estimateTupleSize(node.LHS)
		selectivity := defaultSelectivity
		if node.Op != nil {
			selectivity = node.Op.Selectivity()
		}
		node.estimate = &ExecutionEstimate{
			Output:          uint64(float64(estLHS.Output) * selectivity),
			IntermediateSum: estLHS.Output + estLHS.IntermediateSum,
		}
		return node.estimate
	}

	node.estimate = &ExecutionEstimate{Output: defaultBaseTuples, IntermediateSum: defaultBaseTuples}
	return node.estimate
}

// clearCachedEstimate drops the cached estimates of a subtree.
func clearCachedEstimate(node *ExecutionNode) {
	if node == nil {
		return
	}
	node.estimate = nil
	clearCachedEstimate(node.LHS)
	clearCachedEstimate(node.RHS)
}

// Plan is an executable tree of joins and filters.
type Plan struct {
	root *ExecutionNode
}

// ExecuteStep produces the next match tuple.
func (p *Plan) ExecuteStep() ([]graph.Match, bool) {
	if p.root == nil || p.root.Join == nil {
		return nil, false
	}
	return p.root.Join.Next()
}

// Reset restarts the whole tree.
func (p *Plan) Reset() {
	if p.root != nil && p.root.Join != nil {
		p.root.Join.Reset()
	}
}

// Cost returns the summed intermediate result sizes, the measure used to
// compare plans.
func (p *Plan) Cost() float64 {
	return float64(estimateTupleSize(p.root).IntermediateSum)
}

// HasNestedLoop reports whether any node of the tree is a nested loop.
func (p *Plan) HasNestedLoop() bool {
	return descendantHasNestedLoop(p.root)
}

func descendantHasNestedLoop(node *ExecutionNode) bool {
	if node == nil {
		return false
	}
	if node.Type == ExecutionNodeNestedLoop {
		return true
	}
	return descendantHasNestedLoop(node.LHS) || descendantHasNestedLoop(node.RHS)
}

// DebugString renders the tree with node types, descriptions, estimates
// and selectivities.
func (p *Plan) DebugString() string {
	var sb strings.Builder
	debugStringForNode(&sb, p.root, "")
	return sb.String()
}

func debugStringForNode(sb *strings.Builder, node *ExecutionNode, indent string) {
	if node == nil {
		return
	}

	sb.WriteString(indent)
	sb.WriteString("(")
	if node.Type == ExecutionNodeBase {
		for queryNode := range node.NodePos {
			fmt.Fprintf(sb, "#%d", queryNode+1)
		}
		if node.BaseSearch != nil && node.BaseSearch.DebugString() != "" {
			sb.WriteString(": " + node.BaseSearch.DebugString())
		}
	} else {
		sb.WriteString(node.Type.String())
	}
	sb.WriteString(")")

	if node.Description != "" {
		sb.WriteString("(" + node.Description + ")")
	}
	if node.estimate != nil {
		fmt.Fprintf(sb, "[out: %d sum: %d]", node.estimate.Output, node.estimate.IntermediateSum)
	}
	if node.Op != nil {
		fmt.Fprintf(sb, "{sel: %.6f}", node.Op.Selectivity())
	}
	sb.WriteString("\n")

	debugStringForNode(sb, node.LHS, indent+"    ")
	debugStringForNode(sb, node.RHS, indent+"    ")
}
