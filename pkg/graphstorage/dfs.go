package graphstorage

import "github.com/orneryd/corpusdb/pkg/graph"

// DFSStep is one visited node together with its distance from the start.
type DFSStep struct {
	Node     graph.NodeID
	Distance uint32
}

// CycleSafeDFS is an iterative depth-first traversal that tracks the
// current path to skip cycles. When minDistance is 0 the start node itself
// is the first yield.
type CycleSafeDFS struct {
	storage     GraphStorage
	start       graph.NodeID
	minDistance uint32
	maxDistance uint32

	stack       []DFSStep
	path        []graph.NodeID
	nodesInPath map[graph.NodeID]struct{}
	lastDist    uint32

	cycleDetected bool
}

// NewCycleSafeDFS starts a traversal at start yielding nodes with distance
// in [minDistance, maxDistance].
func NewCycleSafeDFS(storage GraphStorage, start graph.NodeID, minDistance, maxDistance uint32) *CycleSafeDFS {
	d := &CycleSafeDFS{
		storage:     storage,
		start:       start,
		minDistance: minDistance,
		maxDistance: maxDistance,
	}
	d.Reset()
	return d
}

// Next returns the next DFS step within the distance range.
func (d *CycleSafeDFS) Next() (DFSStep, bool) {
	for len(d.stack) > 0 {
		top := d.stack[len(d.stack)-1]
		if d.enterNode(top) {
			return top, true
		}
	}
	return DFSStep{}, false
}

// CycleDetected reports whether the traversal has skipped a back edge so
// far. Only meaningful after the traversal advanced.
func (d *CycleSafeDFS) CycleDetected() bool {
	return d.cycleDetected
}

// Reset restarts the traversal from the start node.
func (d *CycleSafeDFS) Reset() {
	d.stack = d.stack[:0]
	d.path = d.path[:0]
	d.nodesInPath = make(map[graph.NodeID]struct{})
	d.lastDist = 0
	d.stack = append(d.stack, DFSStep{Node: d.start, Distance: 0})
}

func (d *CycleSafeDFS) enterNode(entry DFSStep) bool {
	// a sibling or shallower entry means the previous subtree is complete
	if d.lastDist >= entry.Distance {
		for i := int(entry.Distance); i < len(d.path); i++ {
			delete(d.nodesInPath, d.path[i])
		}
		d.path = d.path[:entry.Distance]
	}

	if _, onPath := d.nodesInPath[entry.Node]; onPath {
		// cycle: drop this entry without descending
		d.cycleDetected = true
		d.lastDist = entry.Distance
		d.stack = d.stack[:len(d.stack)-1]
		return false
	}

	d.path = append(d.path, entry.Node)
	d.nodesInPath[entry.Node] = struct{}{}
	d.lastDist = entry.Distance
	d.stack = d.stack[:len(d.stack)-1]

	found := entry.Distance >= d.minDistance && entry.Distance <= d.maxDistance

	if entry.Distance < d.maxDistance {
		for _, out := range d.storage.GetOutgoingEdges(entry.Node) {
			d.stack = append(d.stack, DFSStep{Node: out, Distance: entry.Distance + 1})
		}
	}
	return found
}

// uniqueDFS adapts CycleSafeDFS to the EdgeIterator contract, yielding
// each reachable node at most once.
type uniqueDFS struct {
	dfs     *CycleSafeDFS
	visited map[graph.NodeID]struct{}
}

func newUniqueDFS(storage GraphStorage, start graph.NodeID, minDistance, maxDistance uint32) *uniqueDFS {
	return &uniqueDFS{
		dfs:     NewCycleSafeDFS(storage, start, minDistance, maxDistance),
		visited: make(map[graph.NodeID]struct{}),
	}
}

func (u *uniqueDFS) Next() (graph.NodeID, bool) {
	for {
		step, ok := u.dfs.Next()
		if !ok {
			return 0, false
		}
		if _, seen := u.visited[step.Node]; seen {
			continue
		}
		u.visited[step.Node] = struct{}{}
		return step.Node, true
	}
}

func (u *uniqueDFS) Reset() {
	u.dfs.Reset()
	u.visited = make(map[graph.NodeID]struct{})
}
