package exec

import (
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/operators"
)

// TaskIndexJoin has the same contract as IndexJoin but submits the
// per-LHS fan-out computations to a worker pool. Results are consumed in
// submission order, so the per-LHS grouping of the output is stable no
// matter how the pool schedules the tasks. Without a pool the tasks are
// evaluated lazily on the consuming goroutine.
type TaskIndexJoin struct {
	op  operators.Operator
	lhs TupleIterator

	lhsIdx   int
	maxTasks int
	pool     *WorkerPool

	task func(lhsTuple []graph.Match) [][]graph.Match

	taskBuffer  []*pendingTask
	matchBuffer [][]graph.Match
	matchPos    int
}

type pendingTask struct {
	// done delivers the result exactly once; nil when the task runs
	// deferred.
	done chan [][]graph.Match
	// deferred evaluates the task on collection when no pool is present.
	deferred func() [][]graph.Match
}

var _ TupleIterator = (*TaskIndexJoin)(nil)

// NewTaskIndexJoin creates the join. maxTasks bounds the number of
// in-flight tasks; pool may be nil for deferred evaluation.
func NewTaskIndexJoin(op operators.Operator, lhs TupleIterator, lhsIdx int,
	gen MatchGenerator, maxTasks int, pool *WorkerPool) *TaskIndexJoin {
	if maxTasks <= 0 {
		maxTasks = 1
	}

	j := &TaskIndexJoin{
		op:       op,
		lhs:      lhs,
		lhsIdx:   lhsIdx,
		maxTasks: maxTasks,
		pool:     pool,
	}

	j.task = func(lhsTuple []graph.Match) [][]graph.Match {
		var result [][]graph.Match
		left := lhsTuple[j.lhsIdx]
		for _, candidate := range op.RetrieveMatches(left) {
			for _, m := range gen.Generate(candidate.Node) {
				if !op.IsReflexive() && sameNodeSameKey(left, m) {
					continue
				}
				result = append(result, concatTuple(lhsTuple, []graph.Match{m}))
			}
		}
		return result
	}
	return j
}

// Next returns the next extended tuple.
func (j *TaskIndexJoin) Next() ([]graph.Match, bool) {
	if j.op == nil || !j.op.Valid() {
		return nil, false
	}

	for {
		if j.matchPos < len(j.matchBuffer) {
			tuple := j.matchBuffer[j.matchPos]
			j.matchPos++
			return tuple, true
		}
		if !j.nextMatchBuffer() {
			return nil, false
		}
	}
}

// fillTaskBuffer tops the in-flight window up to maxTasks.
func (j *TaskIndexJoin) fillTaskBuffer() bool {
	for len(j.taskBuffer) < j.maxTasks {
		tuple, ok := j.lhs.Next()
		if !ok {
			break
		}

		if j.pool != nil {
			task := &pendingTask{done: make(chan [][]graph.Match, 1)}
			j.taskBuffer = append(j.taskBuffer, task)
			j.pool.Submit(func() {
				task.done <- j.task(tuple)
			})
		} else {
			j.taskBuffer = append(j.taskBuffer, &pendingTask{
				deferred: func() [][]graph.Match { return j.task(tuple) },
			})
		}
	}
	return len(j.taskBuffer) > 0
}

// nextMatchBuffer collects the oldest task's result, skipping empty ones.
func (j *TaskIndexJoin) nextMatchBuffer() bool {
	for j.fillTaskBuffer() {
		task := j.taskBuffer[0]
		j.taskBuffer = j.taskBuffer[1:]

		if task.done != nil {
			j.matchBuffer = <-task.done
		} else {
			j.matchBuffer = task.deferred()
		}
		j.matchPos = 0

		if len(j.matchBuffer) > 0 {
			return true
		}
	}
	return false
}

// Reset restarts the join. In-flight results are drained and discarded.
func (j *TaskIndexJoin) Reset() {
	for _, task := range j.taskBuffer {
		if task.done != nil {
			<-task.done
		}
	}
	j.taskBuffer = nil
	j.matchBuffer = nil
	j.matchPos = 0
	j.lhs.Reset()
}
