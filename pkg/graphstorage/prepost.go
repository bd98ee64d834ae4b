package graphstorage

import (
	"math"
	"sort"

	"github.com/google/btree"

	"github.com/orneryd/corpusdb/pkg/graph"
)

// Level is the set of counter widths usable for pre/post-order depth
// levels. The registry picks the narrowest width that fits the
// component's maximum depth.
type Level interface {
	~int8 | ~int16 | ~int32
}

type prePost[L Level] struct {
	pre   uint32
	post  uint32
	level L
}

type orderEntry[L Level] struct {
	order prePost[L]
	node  graph.NodeID
}

// PrePostOrderStorage encodes a tree-like component (DOMINANCE) as
// pre/post-order intervals: target is reachable from source iff
// pre(source) <= pre(target) and post(target) <= post(source); the
// distance is the level difference. Nodes reachable through several paths
// carry several orders.
type PrePostOrderStorage[L Level] struct {
	component graph.Component

	node2order map[graph.NodeID][]prePost[L]
	// orders is the pre-sorted order index; immutable after CopyFrom.
	orders []orderEntry[L]

	edgeAnnos *btree.BTreeG[edgeAnnoEntry]
	stat      graph.GraphStatistic
}

var _ GraphStorage = (*PrePostOrderStorage[int32])(nil)

// NewPrePostOrderStorage creates an empty pre/post-order storage. Fill it
// with CopyFrom.
func NewPrePostOrderStorage[L Level](component graph.Component) *PrePostOrderStorage[L] {
	return &PrePostOrderStorage[L]{
		component:  component,
		node2order: make(map[graph.NodeID][]prePost[L]),
		edgeAnnos:  btree.NewG(32, edgeAnnoLess),
	}
}

type nodeStackEntry[L Level] struct {
	node  graph.NodeID
	order prePost[L]
}

// CopyFrom rebuilds the order index from any readable storage. Every root
// gets its own depth-first numbering; nodes visited on several paths get
// one order entry per visit.
func (s *PrePostOrderStorage[L]) CopyFrom(orig GraphStorage) {
	s.node2order = make(map[graph.NodeID][]prePost[L])
	s.orders = nil
	s.edgeAnnos.Clear(false)

	inDegree := make(map[graph.NodeID]uint32)
	sources := make(map[graph.NodeID]struct{})
	orig.EachEdge(func(e graph.Edge) bool {
		inDegree[e.Target]++
		sources[e.Source] = struct{}{}
		for _, anno := range orig.EdgeAnnotations(e) {
			s.edgeAnnos.ReplaceOrInsert(edgeAnnoEntry{edge: e, anno: anno})
		}
		return true
	})

	var roots []graph.NodeID
	for n := range sources {
		if inDegree[n] == 0 {
			roots = append(roots, n)
		}
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i] < roots[j] })

	currentOrder := uint32(0)
	for _, root := range roots {
		var stack []nodeStackEntry[L]
		lastDistance := uint32(0)

		s.enterNode(&currentOrder, root, 0, &stack)

		dfs := NewCycleSafeDFS(orig, root, 1, MaxDistance)
		for step, ok := dfs.Next(); ok; step, ok = dfs.Next() {
			if step.Distance <= lastDistance {
				// the previous subtree is complete: assign post-orders up
				// to the new node's parent
				for uint32(len(stack)) > step.Distance {
					s.exitNode(&currentOrder, &stack)
				}
			}
			s.enterNode(&currentOrder, step.Node, L(step.Distance), &stack)
			lastDistance = step.Distance
		}
		for len(stack) > 0 {
			s.exitNode(&currentOrder, &stack)
		}
	}

	sort.Slice(s.orders, func(i, j int) bool {
		return s.orders[i].order.pre < s.orders[j].order.pre
	})

	s.stat = orig.Statistics()
}

func (s *PrePostOrderStorage[L]) enterNode(currentOrder *uint32, node graph.NodeID, level L, stack *[]nodeStackEntry[L]) {
	entry := nodeStackEntry[L]{node: node}
	entry.order.pre = *currentOrder
	entry.order.level = level
	*currentOrder++
	*stack = append(*stack, entry)
}

func (s *PrePostOrderStorage[L]) exitNode(currentOrder *uint32, stack *[]nodeStackEntry[L]) {
	entry := (*stack)[len(*stack)-1]
	*stack = (*stack)[:len(*stack)-1]

	entry.order.post = *currentOrder
	*currentOrder++

	s.node2order[entry.node] = append(s.node2order[entry.node], entry.order)
	s.orders = append(s.orders, orderEntry[L]{order: entry.order, node: entry.node})
}

// IsConnected tests interval containment for every (source, target) order
// combination.
func (s *PrePostOrderStorage[L]) IsConnected(edge graph.Edge, minDistance, maxDistance uint32) bool {
	for _, os := range s.node2order[edge.Source] {
		for _, ot := range s.node2order[edge.Target] {
			if os.pre <= ot.pre && ot.post <= os.post {
				diff := int64(ot.level) - int64(os.level)
				if diff >= 0 && uint32(diff) >= minDistance && uint32(diff) <= maxDistance {
					return true
				}
			}
		}
	}
	return false
}

// Distance returns the minimal level difference over all containing order
// pairs, or -1 when no pair contains.
func (s *PrePostOrderStorage[L]) Distance(edge graph.Edge) int {
	if edge.Source == edge.Target {
		if _, ok := s.node2order[edge.Source]; ok {
			return 0
		}
		return -1
	}

	minLevel := int64(math.MaxInt64)
	found := false
	for _, os := range s.node2order[edge.Source] {
		for _, ot := range s.node2order[edge.Target] {
			if os.pre <= ot.pre && ot.post <= os.post {
				diff := int64(ot.level) - int64(os.level)
				if diff >= 0 {
					found = true
					if diff < minLevel {
						minLevel = diff
					}
				}
			}
		}
	}
	if !found {
		return -1
	}
	return int(minLevel)
}

type searchRange[L Level] struct {
	lower       int
	maximumPost uint32
	startLevel  L
}

type prePostIterator[L Level] struct {
	storage     *PrePostOrderStorage[L]
	start       graph.NodeID
	minDistance uint32
	maxDistance uint32

	ranges  []searchRange[L]
	current int
	visited map[graph.NodeID]struct{}
}

func (it *prePostIterator[L]) Next() (graph.NodeID, bool) {
	orders := it.storage.orders
	for len(it.ranges) > 0 {
		top := it.ranges[len(it.ranges)-1]

		for it.current < len(orders) && orders[it.current].order.pre <= top.maximumPost {
			entry := orders[it.current]
			diff := int64(entry.order.level) - int64(top.startLevel)

			if entry.order.post <= top.maximumPost &&
				diff >= 0 &&
				uint32(diff) >= it.minDistance && uint32(diff) <= it.maxDistance {
				if _, seen := it.visited[entry.node]; !seen {
					it.visited[entry.node] = struct{}{}
					it.current++
					return entry.node, true
				}
			}
			it.current++
		}

		it.ranges = it.ranges[:len(it.ranges)-1]
		if len(it.ranges) > 0 {
			it.current = it.ranges[len(it.ranges)-1].lower
		}
	}
	return 0, false
}

func (it *prePostIterator[L]) Reset() {
	it.ranges = it.ranges[:0]
	it.visited = make(map[graph.NodeID]struct{})
	it.init()
}

func (it *prePostIterator[L]) init() {
	for _, order := range it.storage.node2order[it.start] {
		lower := sort.Search(len(it.storage.orders), func(i int) bool {
			return it.storage.orders[i].order.pre >= order.pre
		})
		it.ranges = append(it.ranges, searchRange[L]{
			lower:       lower,
			maximumPost: order.post,
			startLevel:  order.level,
		})
	}
	if len(it.ranges) > 0 {
		it.current = it.ranges[len(it.ranges)-1].lower
	}
}

// FindConnected walks the order index inside each search range of the
// start node.
func (s *PrePostOrderStorage[L]) FindConnected(source graph.NodeID, minDistance, maxDistance uint32) EdgeIterator {
	it := &prePostIterator[L]{
		storage:     s,
		start:       source,
		minDistance: minDistance,
		maxDistance: maxDistance,
		visited:     make(map[graph.NodeID]struct{}),
	}
	it.init()
	return it
}

// GetOutgoingEdges returns the direct successors via a distance-1 search.
func (s *PrePostOrderStorage[L]) GetOutgoingEdges(node graph.NodeID) []graph.NodeID {
	var result []graph.NodeID
	it := s.FindConnected(node, 1, 1)
	for n, ok := it.Next(); ok; n, ok = it.Next() {
		result = append(result, n)
	}
	return result
}

// GetIncomingEdges scans all orders for parents one level up. Slow path;
// dominance queries rarely need inverse access.
func (s *PrePostOrderStorage[L]) GetIncomingEdges(node graph.NodeID) []graph.NodeID {
	seen := make(map[graph.NodeID]struct{})
	var result []graph.NodeID
	for candidate := range s.node2order {
		if candidate == node {
			continue
		}
		if s.IsConnected(graph.Edge{Source: candidate, Target: node}, 1, 1) {
			if _, dup := seen[candidate]; !dup {
				seen[candidate] = struct{}{}
				result = append(result, candidate)
			}
		}
	}
	return result
}

// EdgeAnnotations returns the labels of one edge.
func (s *PrePostOrderStorage[L]) EdgeAnnotations(edge graph.Edge) []graph.Annotation {
	var result []graph.Annotation
	from := edgeAnnoEntry{edge: edge}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: math.MaxUint32, NS: math.MaxUint32, Value: math.MaxUint32}}
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		result = append(result, e.anno)
		return true
	})
	return result
}

// EachEdge yields every direct edge, reconstructed from the order index.
func (s *PrePostOrderStorage[L]) EachEdge(fn func(graph.Edge) bool) {
	for node := range s.node2order {
		for _, target := range s.GetOutgoingEdges(node) {
			if !fn(graph.Edge{Source: node, Target: target}) {
				return
			}
		}
	}
}

// Statistics returns the statistics carried over from the source storage.
func (s *PrePostOrderStorage[L]) Statistics() graph.GraphStatistic {
	return s.stat
}

// NumberOfEdges returns the number of order entries, an upper bound of the
// direct edge count.
func (s *PrePostOrderStorage[L]) NumberOfEdges() int {
	return len(s.orders)
}

// EdgeAnnotationCount returns the number of edge labels.
func (s *PrePostOrderStorage[L]) EdgeAnnotationCount() int {
	return s.edgeAnnos.Len()
}
