package graphstorage

import (
	"math"

	"github.com/google/btree"

	"github.com/orneryd/corpusdb/pkg/graph"
)

type relativePosition struct {
	root graph.NodeID
	pos  uint32
}

// LinearStorage is a read-optimized storage for components that are
// disjoint chains, like ORDERING per text. Every node is indexed by its
// root and position; connectivity and distance reduce to position
// arithmetic within the same root.
type LinearStorage struct {
	component graph.Component

	nodeToPos map[graph.NodeID]relativePosition
	chains    map[graph.NodeID][]graph.NodeID

	edgeAnnos *btree.BTreeG[edgeAnnoEntry]
	stat      graph.GraphStatistic
}

var _ GraphStorage = (*LinearStorage)(nil)

// NewLinearStorage creates an empty linear storage. Fill it with CopyFrom.
func NewLinearStorage(component graph.Component) *LinearStorage {
	return &LinearStorage{
		component: component,
		nodeToPos: make(map[graph.NodeID]relativePosition),
		chains:    make(map[graph.NodeID][]graph.NodeID),
		edgeAnnos: btree.NewG(32, edgeAnnoLess),
	}
}

// CopyFrom rebuilds the position index from any readable storage. Nodes
// without incoming edges are the chain roots; every chain is walked to its
// end. Statistics carry over from the source.
func (s *LinearStorage) CopyFrom(orig GraphStorage) {
	s.nodeToPos = make(map[graph.NodeID]relativePosition)
	s.chains = make(map[graph.NodeID][]graph.NodeID)
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

	for root := range sources {
		if inDegree[root] > 0 {
			continue
		}
		chain := []graph.NodeID{root}
		s.nodeToPos[root] = relativePosition{root: root, pos: 0}

		current := root
		for {
			out := orig.GetOutgoingEdges(current)
			if len(out) == 0 {
				break
			}
			next := out[0]
			if _, seen := s.nodeToPos[next]; seen {
				// not a proper chain, stop before looping
				break
			}
			s.nodeToPos[next] = relativePosition{root: root, pos: uint32(len(chain))}
			chain = append(chain, next)
			current = next
		}
		s.chains[root] = chain
	}

	s.stat = orig.Statistics()
}

// IsConnected reduces to a position comparison within the same root.
func (s *LinearStorage) IsConnected(edge graph.Edge, minDistance, maxDistance uint32) bool {
	posSource, okS := s.nodeToPos[edge.Source]
	posTarget, okT := s.nodeToPos[edge.Target]
	if !okS || !okT || posSource.root != posTarget.root {
		return false
	}
	if posTarget.pos < posSource.pos {
		return false
	}
	diff := posTarget.pos - posSource.pos
	return diff >= minDistance && diff <= maxDistance
}

// Distance returns the position difference, or -1 when the nodes are in
// different chains or in the wrong order.
func (s *LinearStorage) Distance(edge graph.Edge) int {
	posSource, okS := s.nodeToPos[edge.Source]
	posTarget, okT := s.nodeToPos[edge.Target]
	if !okS || !okT || posSource.root != posTarget.root || posTarget.pos < posSource.pos {
		return -1
	}
	return int(posTarget.pos - posSource.pos)
}

type linearIterator struct {
	chain   []graph.NodeID
	current int
	start   int
	end     int
}

func (it *linearIterator) Next() (graph.NodeID, bool) {
	if it.current > it.end || it.current >= len(it.chain) {
		return 0, false
	}
	node := it.chain[it.current]
	it.current++
	return node, true
}

func (it *linearIterator) Reset() {
	it.current = it.start
}

// FindConnected iterates the chain segment [pos+minDistance,
// pos+maxDistance], clipped to the chain's end.
func (s *LinearStorage) FindConnected(source graph.NodeID, minDistance, maxDistance uint32) EdgeIterator {
	pos, ok := s.nodeToPos[source]
	if !ok {
		return &linearIterator{}
	}
	chain := s.chains[pos.root]

	start := int(pos.pos) + int(minDistance)
	end := len(chain) - 1
	if maxDistance != MaxDistance {
		if e := int(pos.pos) + int(maxDistance); e < end {
			end = e
		}
	}
	return &linearIterator{chain: chain, current: start, start: start, end: end}
}

// GetOutgoingEdges returns the chain successor, if any.
func (s *LinearStorage) GetOutgoingEdges(node graph.NodeID) []graph.NodeID {
	pos, ok := s.nodeToPos[node]
	if !ok {
		return nil
	}
	chain := s.chains[pos.root]
	if int(pos.pos)+1 >= len(chain) {
		return nil
	}
	return []graph.NodeID{chain[pos.pos+1]}
}

// GetIncomingEdges returns the chain predecessor, if any.
func (s *LinearStorage) GetIncomingEdges(node graph.NodeID) []graph.NodeID {
	pos, ok := s.nodeToPos[node]
	if !ok || pos.pos == 0 {
		return nil
	}
	chain := s.chains[pos.root]
	return []graph.NodeID{chain[pos.pos-1]}
}

// EdgeAnnotations returns the labels of one edge.
func (s *LinearStorage) EdgeAnnotations(edge graph.Edge) []graph.Annotation {
	var result []graph.Annotation
	from := edgeAnnoEntry{edge: edge}
	to := edgeAnnoEntry{edge: edge, anno: graph.Annotation{Name: math.MaxUint32, NS: math.MaxUint32, Value: math.MaxUint32}}
	s.edgeAnnos.AscendRange(from, to, func(e edgeAnnoEntry) bool {
		result = append(result, e.anno)
		return true
	})
	return result
}

// EachEdge yields the consecutive pairs of every chain.
func (s *LinearStorage) EachEdge(fn func(graph.Edge) bool) {
	for _, chain := range s.chains {
		for i := 0; i+1 < len(chain); i++ {
			if !fn(graph.Edge{Source: chain[i], Target: chain[i+1]}) {
				return
			}
		}
	}
}

// Statistics returns the statistics carried over from the source storage.
func (s *LinearStorage) Statistics() graph.GraphStatistic {
	return s.stat
}

// NumberOfEdges returns the edge count.
func (s *LinearStorage) NumberOfEdges() int {
	n := 0
	for _, chain := range s.chains {
		n += len(chain) - 1
	}
	return n
}

// EdgeAnnotationCount returns the number of edge labels.
func (s *LinearStorage) EdgeAnnotationCount() int {
	return s.edgeAnnos.Len()
}
