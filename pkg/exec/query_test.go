package exec

import (
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/corpusdb/pkg/annosearch"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// The canonical precedence scenario: tok .2,10 tok on the seven-token
// document yields 5+4+3+2+1 = 15 tuples.
func TestQuery_PrecedenceOnTokens(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(operators.NewPrecedence(db, 2, 10), 0, 1, false)

	tuples := drainQuery(q)

	require.Len(t, tuples, 15)
	// tuples appear in order of the leading token
	var expected [][2]graph.NodeID
	for i := 1; i <= 7; i++ {
		for j := i + 2; j <= 7 && j <= i+10; j++ {
			expected = append(expected, [2]graph.NodeID{graph.NodeID(i), graph.NodeID(j)})
		}
	}
	assert.Equal(t, expected, nodePairs(tuples))
}

func TestQuery_PrecedenceSoundness(t *testing.T) {
	db := testCorpus(t)
	op := operators.NewPrecedence(db, 2, 10)

	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(op, 0, 1, false)

	for _, tuple := range drainQuery(q) {
		assert.True(t, op.Filter(tuple[0], tuple[1]))
	}
}

// The inclusion scenario: cat="S" _i_ tok="storm" yields exactly one
// tuple.
func TestQuery_Inclusion(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(annosearch.NewExactAnnoValueSearch(db, "tiger", "cat", "S"), false)
	q.AddNode(annosearch.NewExactAnnoValueSearch(db, graph.Namespace, graph.TokLabel, "storm"), false)
	q.AddOperator(operators.NewInclusion(db), 0, 1, false)

	tuples := drainQuery(q)

	require.Len(t, tuples, 1)
	assert.Equal(t, graph.NodeID(10), tuples[0][0].Node)
	assert.Equal(t, graph.NodeID(6), tuples[0][1].Node)
}

// Overlap is commutative: swapping the operands produces the same
// multiset of pairs.
func TestQuery_OverlapCommutative(t *testing.T) {
	db := testCorpus(t)
	catSearch := func() annosearch.EstimatedSearch {
		return annosearch.NewExactAnnoKeySearch(db, "tiger", "cat")
	}

	run := func(left, right int) map[[2]graph.NodeID]int {
		q := NewQuery(db, DefaultQueryConfig())
		q.AddNode(catSearch(), false)
		q.AddNode(catSearch(), false)
		q.AddOperator(operators.NewOverlap(db), left, right, false)

		pairs := make(map[[2]graph.NodeID]int)
		for _, tuple := range drainQuery(q) {
			a, b := tuple[0].Node, tuple[1].Node
			if b < a {
				a, b = b, a
			}
			pairs[[2]graph.NodeID{a, b}]++
		}
		return pairs
	}

	assert.Equal(t, run(0, 1), run(1, 0))
}

// The regex leaf count equals the number of annotations whose values
// match the pattern.
func TestQuery_RegexLeafCount(t *testing.T) {
	db := testCorpus(t)

	s := annosearch.NewRegexAnnoValueSearch(db, "tiger", "pos", "N.*")
	count := 0
	for _, ok := s.Next(); ok; _, ok = s.Next() {
		count++
	}
	// pos=NN on tokens 4 and 6
	assert.Equal(t, 2, count)
}

// The planner swaps commutative operands so the smaller side drives the
// seed join.
func TestQuery_PlannerSwitchesCommutativeOperands(t *testing.T) {
	db := testCorpus(t)
	require.True(t, db.NodeAnnos.HasStatistics())

	q := NewQuery(db, DefaultQueryConfig())
	// lhs: all tokens (7), rhs: one span
	q.AddNode(tokSearch(db), false)
	q.AddNode(annosearch.NewExactAnnoValueSearch(db, "tiger", "cat", "NP"), false)
	q.AddOperator(operators.NewOverlap(db), 0, 1, false)

	debug := q.DebugString()
	assert.Contains(t, debug, "#2 _o_ #1")
}

func TestQuery_OperandSwapKeepsResults(t *testing.T) {
	db := testCorpus(t)

	runWithConfig := func(config QueryConfig) map[[2]graph.NodeID]int {
		q := NewQuery(db, config)
		q.AddNode(tokSearch(db), false)
		q.AddNode(annosearch.NewExactAnnoValueSearch(db, "tiger", "cat", "NP"), false)
		q.AddOperator(operators.NewOverlap(db), 0, 1, false)

		pairs := make(map[[2]graph.NodeID]int)
		for _, tuple := range drainQuery(q) {
			pairs[[2]graph.NodeID{tuple[0].Node, tuple[1].Node}]++
		}
		return pairs
	}

	optimized := DefaultQueryConfig()
	unoptimized := DefaultQueryConfig()
	unoptimized.Optimize = false
	unoptimized.AvoidNestedBySwitch = false

	assert.Equal(t, runWithConfig(unoptimized), runWithConfig(optimized))
}

func TestQuery_FilterForIntraComponentOperator(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(operators.NewPrecedence(db, 1, 1), 0, 1, false)
	q.AddOperator(operators.NewPrecedence(db, 1, 1), 1, 2, false)
	// both ends already share a component: becomes a filter
	q.AddOperator(operators.NewPrecedence(db, 2, 2), 0, 2, false)

	tuples := drainQuery(q)

	// consecutive token triples
	require.Len(t, tuples, 5)
	for _, tuple := range tuples {
		assert.Equal(t, tuple[0].Node+1, tuple[1].Node)
		assert.Equal(t, tuple[1].Node+1, tuple[2].Node)
	}
}

func TestQuery_UnconnectedQuery(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)

	_, ok := q.Next()
	assert.False(t, ok)
	assert.ErrorIs(t, q.Err(), graph.ErrUnconnectedQuery)
}

func TestQuery_ResetIdempotence(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(operators.NewPrecedence(db, 1, 1), 0, 1, false)

	first := drainQuery(q)
	q.Reset()
	second := drainQuery(q)

	assert.Equal(t, nodePairs(first), nodePairs(second))
}

func TestQuery_Determinism(t *testing.T) {
	db := testCorpus(t)
	build := func() *Query {
		q := NewQuery(db, DefaultQueryConfig())
		q.AddNode(tokSearch(db), false)
		q.AddNode(tokSearch(db), false)
		q.AddOperator(operators.NewPrecedence(db, 2, 10), 0, 1, false)
		return q
	}

	assert.Equal(t, nodePairs(drainQuery(build())), nodePairs(drainQuery(build())))
}

func TestQuery_JoinVariantsAgree(t *testing.T) {
	db := testCorpus(t)

	run := func(variant string, forceNested bool) [][2]graph.NodeID {
		config := DefaultQueryConfig()
		config.NonParallelJoin = variant
		q := NewQuery(db, config)
		q.AddNode(tokSearch(db), false)
		q.AddNode(tokSearch(db), false)
		q.AddOperator(operators.NewPrecedence(db, 2, 10), 0, 1, forceNested)
		return nodePairs(drainQuery(q))
	}

	index := run(JoinIndex, false)
	seed := run(JoinSeed, false)
	nested := run(JoinIndex, true)

	assert.ElementsMatch(t, index, seed)
	assert.ElementsMatch(t, index, nested)
	assert.Len(t, index, 15)
}

func TestQuery_TaskIndexJoinParity(t *testing.T) {
	db := testCorpus(t)

	run := func(parallelTasks int) [][2]graph.NodeID {
		config := DefaultQueryConfig()
		config.ParallelTasks = parallelTasks
		q := NewQuery(db, config)
		defer q.Close()
		q.AddNode(tokSearch(db), false)
		q.AddNode(tokSearch(db), false)
		q.AddOperator(operators.NewPrecedence(db, 2, 10), 0, 1, false)
		return nodePairs(drainQuery(q))
	}

	sequential := run(0)
	for _, workers := range []int{1, 4, 8} {
		parallel := run(workers)
		assert.Len(t, parallel, len(sequential), "workers=%d", workers)
		assert.ElementsMatch(t, sequential, parallel, "workers=%d", workers)
	}
}

func TestQuery_CancelFlag(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(operators.NewPrecedence(db, 1, 1), 0, 1, false)

	var flag atomic.Bool
	q.SetCancelFlag(&flag)

	_, ok := q.Next()
	require.True(t, ok)

	flag.Store(true)
	_, ok = q.Next()
	assert.False(t, ok)
}

func TestQuery_DebugStringAndCost(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	q.AddOperator(operators.NewPrecedence(db, 2, 10), 0, 1, false)

	debug := q.DebugString()
	assert.Contains(t, debug, "seed")
	assert.Contains(t, debug, ".2,10")
	assert.Contains(t, debug, "out:")
	assert.Greater(t, q.Cost(), 0.0)
}

func TestQuery_MissingComponentOperatorYieldsNothing(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(tokSearch(db), false)
	q.AddNode(tokSearch(db), false)
	// no DOMINANCE component exists in the fixture
	q.AddOperator(operators.NewDominance(db, "", "", 1, 1), 0, 1, false)

	assert.Empty(t, drainQuery(q))
	assert.NoError(t, q.Err())
}

func TestQuery_WrapAnyNodeAnno(t *testing.T) {
	db := testCorpus(t)
	q := NewQuery(db, DefaultQueryConfig())
	q.AddNode(annosearch.NewExactAnnoKeySearch(db, graph.Namespace, graph.NodeNameLabel), true)
	q.AddNode(annosearch.NewExactAnnoValueSearch(db, "tiger", "cat", "NP"), false)
	q.AddOperator(operators.NewOverlap(db), 0, 1, false)

	tuples := drainQuery(q)
	require.NotEmpty(t, tuples)
	for _, tuple := range tuples {
		// the any-node column reports the node-name key as its annotation
		assert.Equal(t, db.NodeNameStringID(), tuple[0].Anno.Name)
	}
}
