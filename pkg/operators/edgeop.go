package operators

import (
	"fmt"
	"math"
	"sort"

	"github.com/orneryd/corpusdb/pkg/corpus"
	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
)

// EdgeOperator walks the edges of one component type within a distance
// range, optionally constrained to a layer, a component name and an edge
// annotation. Dominance and pointing are direct instances; precedence
// builds on it through the ORDERING component.
type EdgeOperator struct {
	db *corpus.DB

	componentType graph.ComponentType
	layer         string
	name          string
	minDistance   uint32
	maxDistance   uint32

	// edgeAnno is the optional edge label constraint; the zero value
	// means any label.
	edgeAnno graph.Annotation

	storages []graphstorage.GraphStorage
	opString string
}

var _ Operator = (*EdgeOperator)(nil)

// NewDominance creates a dominance operator over the DOMINANCE components
// with the given name. An empty layer matches every layer.
func NewDominance(db *corpus.DB, layer, name string, minDistance, maxDistance uint32) *EdgeOperator {
	return newEdgeOperator(db, graph.Dominance, ">", layer, name, minDistance, maxDistance, graph.Annotation{})
}

// NewDominanceWithAnno creates a dominance operator constrained to edges
// carrying the given annotation.
func NewDominanceWithAnno(db *corpus.DB, layer, name string, minDistance, maxDistance uint32, edgeAnno graph.Annotation) *EdgeOperator {
	return newEdgeOperator(db, graph.Dominance, ">", layer, name, minDistance, maxDistance, edgeAnno)
}

// NewPointing creates a pointing operator over the POINTING components
// with the given name.
func NewPointing(db *corpus.DB, layer, name string, minDistance, maxDistance uint32) *EdgeOperator {
	return newEdgeOperator(db, graph.Pointing, "->", layer, name, minDistance, maxDistance, graph.Annotation{})
}

// NewPointingWithAnno creates a pointing operator constrained to edges
// carrying the given annotation.
func NewPointingWithAnno(db *corpus.DB, layer, name string, minDistance, maxDistance uint32, edgeAnno graph.Annotation) *EdgeOperator {
	return newEdgeOperator(db, graph.Pointing, "->", layer, name, minDistance, maxDistance, edgeAnno)
}

func newEdgeOperator(db *corpus.DB, t graph.ComponentType, opString, layer, name string,
	minDistance, maxDistance uint32, edgeAnno graph.Annotation) *EdgeOperator {
	return &EdgeOperator{
		db:            db,
		componentType: t,
		layer:         layer,
		name:          name,
		minDistance:   minDistance,
		maxDistance:   maxDistance,
		edgeAnno:      edgeAnno,
		storages:      db.GetStoragesByType(t, layer, name),
		opString:      opString,
	}
}

// RetrieveMatches unions the reachable nodes over all selected storages.
// With several storages the result is deduplicated and ordered by node
// ID; a single storage keeps its own iteration order.
func (o *EdgeOperator) RetrieveMatches(lhs graph.Match) []graph.Match {
	if len(o.storages) == 1 {
		var result []graph.Match
		it := o.storages[0].FindConnected(lhs.Node, o.minDistance, o.maxDistance)
		for n, ok := it.Next(); ok; n, ok = it.Next() {
			if o.checkEdgeAnnotation(o.storages[0], lhs.Node, n) {
				result = append(result, graph.Match{Node: n})
			}
		}
		return result
	}

	unique := make(map[graph.NodeID]struct{})
	for _, s := range o.storages {
		it := s.FindConnected(lhs.Node, o.minDistance, o.maxDistance)
		for n, ok := it.Next(); ok; n, ok = it.Next() {
			if o.checkEdgeAnnotation(s, lhs.Node, n) {
				unique[n] = struct{}{}
			}
		}
	}

	result := make([]graph.Match, 0, len(unique))
	for n := range unique {
		result = append(result, graph.Match{Node: n})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Node < result[j].Node })
	return result
}

// Filter reports whether the pair is connected in any selected storage
// with a matching edge annotation.
func (o *EdgeOperator) Filter(lhs, rhs graph.Match) bool {
	edge := graph.Edge{Source: lhs.Node, Target: rhs.Node}
	for _, s := range o.storages {
		if s.IsConnected(edge, o.minDistance, o.maxDistance) &&
			o.checkEdgeAnnotation(s, lhs.Node, rhs.Node) {
			return true
		}
	}
	return false
}

func (o *EdgeOperator) checkEdgeAnnotation(s graphstorage.GraphStorage, source, target graph.NodeID) bool {
	if o.edgeAnno == (graph.Annotation{}) {
		return true
	}
	if o.edgeAnno.Value == 0 {
		// the constraint names a value that is not interned
		return false
	}
	for _, anno := range s.EdgeAnnotations(graph.Edge{Source: source, Target: target}) {
		if graph.AnnotationEqual(o.edgeAnno, anno) {
			return true
		}
	}
	return false
}

// IsReflexive is false: a node never dominates or points to itself.
func (o *EdgeOperator) IsReflexive() bool { return false }

// IsCommutative is false for directed edge relations.
func (o *EdgeOperator) IsCommutative() bool { return false }

// Valid reports whether at least one storage was found.
func (o *EdgeOperator) Valid() bool { return len(o.storages) > 0 }

// Selectivity combines fan-out statistics with the requested distance
// range; the worst (largest) reachable fraction over all storages wins.
// A cyclic component can reach everything.
func (o *EdgeOperator) Selectivity() float64 {
	if len(o.storages) == 0 {
		return 0.0
	}

	worst := 0.0
	for _, s := range o.storages {
		stat := s.Statistics()
		if !stat.Valid {
			worst = math.Max(worst, defaultSelectivity)
			continue
		}
		if stat.Cyclic {
			return 1.0
		}
		if stat.Nodes == 0 {
			continue
		}

		maxPath := o.maxDistance
		if stat.MaxDepth < maxPath {
			maxPath = stat.MaxDepth
		}
		minPath := uint32(0)
		if o.minDistance > 0 {
			minPath = o.minDistance - 1
		}

		reachableMax := math.Ceil(stat.AvgFanOut * float64(maxPath))
		reachableMin := math.Ceil(stat.AvgFanOut * float64(minPath))
		worst = math.Max(worst, (reachableMax-reachableMin)/float64(stat.Nodes))
	}
	return worst
}

// EdgeAnnoSelectivity estimates the fraction of edges carrying the
// constrained annotation, or -1 without a constraint.
func (o *EdgeOperator) EdgeAnnoSelectivity() float64 {
	if o.edgeAnno == (graph.Annotation{}) {
		return -1.0
	}

	matching, total := 0, 0
	for _, s := range o.storages {
		s.EachEdge(func(e graph.Edge) bool {
			total++
			for _, anno := range s.EdgeAnnotations(e) {
				if graph.AnnotationEqual(o.edgeAnno, anno) {
					matching++
					break
				}
			}
			return true
		})
	}
	if total == 0 {
		return 0.0
	}
	return float64(matching) / float64(total)
}

// Description renders the operator with its distance range and edge
// annotation constraint.
func (o *EdgeOperator) Description() string {
	var result string
	switch {
	case o.minDistance == 1 && o.maxDistance == 1:
		result = o.opString + o.name
	case o.minDistance == 1 && o.maxDistance == graphstorage.MaxDistance:
		result = o.opString + o.name + " *"
	case o.minDistance == o.maxDistance:
		result = fmt.Sprintf("%s%s,%d", o.opString, o.name, o.minDistance)
	default:
		result = fmt.Sprintf("%s%s,%d,%d", o.opString, o.name, o.minDistance, o.maxDistance)
	}

	if o.edgeAnno != (graph.Annotation{}) {
		name := o.db.Strings.StrDefault(o.edgeAnno.Name, "")
		value := o.db.Strings.StrDefault(o.edgeAnno.Value, "")
		if name != "" && value != "" {
			result += fmt.Sprintf("[%s=%q]", name, value)
		} else {
			result += "[invalid anno]"
		}
	}
	return result
}
