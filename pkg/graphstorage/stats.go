package graphstorage

import "github.com/orneryd/corpusdb/pkg/graph"

// calculateStatistics derives component statistics from any readable
// storage by scanning its edges and traversing from the roots.
func calculateStatistics(s GraphStorage) graph.GraphStatistic {
	stat := graph.GraphStatistic{Valid: true, RootedTree: true}

	fanOut := make(map[graph.NodeID]uint32)
	inDegree := make(map[graph.NodeID]uint32)
	nodes := make(map[graph.NodeID]struct{})

	numEdges := 0
	s.EachEdge(func(e graph.Edge) bool {
		fanOut[e.Source]++
		inDegree[e.Target]++
		nodes[e.Source] = struct{}{}
		nodes[e.Target] = struct{}{}
		numEdges++
		return true
	})

	stat.Nodes = uint32(len(nodes))
	if len(nodes) == 0 {
		return stat
	}

	var roots []graph.NodeID
	for n := range nodes {
		if inDegree[n] == 0 {
			roots = append(roots, n)
		}
		if inDegree[n] > 1 {
			stat.RootedTree = false
		}
		if fanOut[n] > stat.MaxFanOut {
			stat.MaxFanOut = fanOut[n]
		}
	}
	if len(roots) != 1 {
		stat.RootedTree = false
	}
	if len(fanOut) > 0 {
		stat.AvgFanOut = float64(numEdges) / float64(len(fanOut))
	}

	// no roots but edges present means the graph contains a cycle
	if len(roots) == 0 {
		stat.Cyclic = true
		stat.MaxDepth = stat.Nodes
		return stat
	}

	for _, root := range roots {
		dfs := NewCycleSafeDFS(s, root, 0, MaxDistance)
		for step, ok := dfs.Next(); ok; step, ok = dfs.Next() {
			if step.Distance > stat.MaxDepth {
				stat.MaxDepth = step.Distance
			}
		}
		if dfs.CycleDetected() {
			stat.Cyclic = true
		}
	}
	if stat.Cyclic {
		stat.RootedTree = false
	}
	return stat
}
