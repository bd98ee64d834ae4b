package exec

import (
	"log"
	"sync/atomic"

	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// OperatorEntry links two query nodes with an operator. Indices are
// zero-based positions in the query's node list.
type OperatorEntry struct {
	Op       operators.Operator
	IdxLeft  int
	IdxRight int

	// ForceNestedLoop disables the seed strategy for this entry.
	ForceNestedLoop bool
}

// Query owns the leaf searches and operator entries of one query and
// drives the resulting plan. Queries are single-owner; one tuple is
// produced per Next call.
type Query struct {
	db     *corpus.DB
	config QueryConfig

	nodes     []annosearch.EstimatedSearch
	operators []OperatorEntry

	plan     *Plan
	planErr  error
	pool     *WorkerPool
	canceled *atomic.Bool
}

// NewQuery creates an empty query against a corpus.
func NewQuery(db *corpus.DB, config QueryConfig) *Query {
	config.Normalize()
	return &Query{db: db, config: config}
}

// AddNode appends a leaf search and returns its index. With
// wrapAnyNodeAnno the emitted annotation is replaced by the node-name
// constant: the match then stands for the node itself rather than a
// concrete annotation, and duplicate nodes are filtered.
func (q *Query) AddNode(search annosearch.EstimatedSearch, wrapAnyNodeAnno bool) int {
	q.plan, q.planErr = nil, nil

	idx := len(q.nodes)
	if wrapAnyNodeAnno {
		constAnno := graph.Annotation{
			Name: q.db.NodeNameStringID(),
			NS:   q.db.NamespaceStringID(),
		}
		q.nodes = append(q.nodes, annosearch.NewConstAnnoWrapper(search, constAnno))
	} else {
		q.nodes = append(q.nodes, search)
	}
	return idx
}

// AddOperator appends an operator entry between two node indices.
func (q *Query) AddOperator(op operators.Operator, idxLeft, idxRight int, forceNestedLoop bool) {
	q.plan, q.planErr = nil, nil
	q.operators = append(q.operators, OperatorEntry{
		Op: op, IdxLeft: idxLeft, IdxRight: idxRight, ForceNestedLoop: forceNestedLoop,
	})
}

// SetCancelFlag installs a flag checked at the beginning of every Next
// call; once set, the query yields no more tuples.
func (q *Query) SetCancelFlag(flag *atomic.Bool) {
	q.canceled = flag
}

// Optimize swaps the operands of commutative operators when the left side
// is estimated larger. It only runs with fresh statistics; without them
// the input order is kept.
func (q *Query) Optimize() {
	if q.plan != nil || !q.db.NodeAnnos.HasStatistics() {
		return
	}

	for i, e := range q.operators {
		if e.Op == nil || !e.Op.IsCommutative() {
			continue
		}
		if e.IdxLeft >= len(q.nodes) || e.IdxRight >= len(q.nodes) {
			continue
		}

		estimateLHS := q.nodes[e.IdxLeft].GuessMaxCount()
		estimateRHS := q.nodes[e.IdxRight].GuessMaxCount()
		if estimateLHS >= 0 && estimateRHS >= 0 && estimateLHS > estimateRHS {
			q.operators[i].IdxLeft, q.operators[i].IdxRight = e.IdxRight, e.IdxLeft
		}
	}
}

// createPlan builds the execution tree, merging the connected components
// of the constraint graph as operators are applied.
func (q *Query) createPlan() (*Plan, error) {
	if q.config.ParallelTasks > 0 && q.pool == nil {
		q.pool = NewWorkerPool(q.config.ParallelTasks)
		q.pool.Start()
	}

	// every query node starts as its own component
	node2exec := make([]*ExecutionNode, len(q.nodes))
	for i, search := range q.nodes {
		node2exec[i] = newBaseNode(i, search)
	}

	for _, e := range q.operators {
		if e.Op == nil || e.IdxLeft >= len(q.nodes) || e.IdxRight >= len(q.nodes) {
			continue
		}

		lhs := node2exec[e.IdxLeft]
		rhs := node2exec[e.IdxRight]

		joined := join(q.db, e.Op, e.IdxLeft, e.IdxRight, lhs, rhs, e.ForceNestedLoop, q.config, q.pool)
		if joined.Join == nil {
			continue
		}

		// every query node of both subtrees now lives in the joined node
		for queryNode := range joined.NodePos {
			node2exec[queryNode] = joined
		}
	}

	if len(q.nodes) == 0 {
		return nil, graph.ErrUnconnectedQuery
	}
	root := node2exec[0]
	for i, n := range node2exec {
		if n != root {
			log.Printf("query node %d is not connected", i)
			return nil, graph.ErrUnconnectedQuery
		}
	}

	return &Plan{root: root}, nil
}

func (q *Query) ensurePlan() error {
	if q.plan != nil || q.planErr != nil {
		return q.planErr
	}
	if q.config.Optimize {
		q.Optimize()
	}
	q.plan, q.planErr = q.createPlan()
	return q.planErr
}

// Next returns the next match tuple, one column per query node. An
// ill-connected query yields nothing; the error is available from Err.
func (q *Query) Next() ([]graph.Match, bool) {
	if q.canceled != nil && q.canceled.Load() {
		return nil, false
	}
	if err := q.ensurePlan(); err != nil {
		return nil, false
	}

	tuple, ok := q.plan.ExecuteStep()
	if !ok {
		return nil, false
	}

	// reorder the plan's tuple columns into query-node order
	result := make([]graph.Match, len(q.nodes))
	for queryNode, col := range q.plan.root.NodePos {
		result[queryNode] = tuple[col]
	}
	return result, true
}

// Err returns the planning error, if any.
func (q *Query) Err() error {
	return q.planErr
}

// Reset restarts the query from the beginning.
func (q *Query) Reset() {
	if q.plan != nil {
		q.plan.Reset()
	}
}

// Close stops the worker pool, if one was started.
func (q *Query) Close() {
	if q.pool != nil {
		q.pool.Stop()
		q.pool = nil
	}
}

// DebugString renders the plan tree including estimates.
func (q *Query) DebugString() string {
	if err := q.ensurePlan(); err != nil {
		return "<unconnected query>"
	}
	estimateTupleSize(q.plan.root)
	return q.plan.DebugString()
}

// Cost returns the plan's estimated cost.
func (q *Query) Cost() float64 {
	if err := q.ensurePlan(); err != nil {
		return 0
	}
	return q.plan.Cost()
}
