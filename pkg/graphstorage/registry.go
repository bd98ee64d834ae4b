package graphstorage

import (
	"math"

	"github.com/orneryd/corpusdb/pkg/graph"
)

// Implementation names accepted by the registry.
const (
	ImplFallback      = "fallback"
	ImplLinear        = "linear"
	ImplPrePostOrder  = "prepostorder"
	ImplPrePostSmall  = "prepostorder8"
	ImplPrePostMedium = "prepostorder16"
)

// Registry picks a storage implementation per component from the component
// type and its statistics. Explicit per-component overrides win.
type Registry struct {
	overrides map[graph.Component]string
}

// NewRegistry creates a registry without overrides.
func NewRegistry() *Registry {
	return &Registry{overrides: make(map[graph.Component]string)}
}

// SetImplementation forces an implementation for one component.
func (r *Registry) SetImplementation(component graph.Component, impl string) {
	r.overrides[component] = impl
}

// ImplementationFor returns the implementation name for a component given
// its statistics.
func (r *Registry) ImplementationFor(component graph.Component, stat graph.GraphStatistic) string {
	if impl, ok := r.overrides[component]; ok {
		return impl
	}
	if !stat.Valid {
		return ImplFallback
	}

	switch component.Type {
	case graph.Ordering:
		// a chain component: no branching, no cycles
		if !stat.Cyclic && stat.MaxFanOut <= 1 {
			return ImplLinear
		}
	case graph.Dominance:
		if !stat.Cyclic {
			switch {
			case stat.MaxDepth < math.MaxInt8:
				return ImplPrePostSmall
			case stat.MaxDepth < math.MaxInt16:
				return ImplPrePostMedium
			default:
				return ImplPrePostOrder
			}
		}
	}
	return ImplFallback
}

// CreateStorage instantiates an implementation by name and fills it from
// the source storage. Unknown names fall back to the adjacency list.
func (r *Registry) CreateStorage(impl string, component graph.Component, source GraphStorage) GraphStorage {
	switch impl {
	case ImplLinear:
		s := NewLinearStorage(component)
		s.CopyFrom(source)
		return s
	case ImplPrePostSmall:
		s := NewPrePostOrderStorage[int8](component)
		s.CopyFrom(source)
		return s
	case ImplPrePostMedium:
		s := NewPrePostOrderStorage[int16](component)
		s.CopyFrom(source)
		return s
	case ImplPrePostOrder:
		s := NewPrePostOrderStorage[int32](component)
		s.CopyFrom(source)
		return s
	}

	if fallback, ok := source.(*AdjacencyListStorage); ok {
		return fallback
	}
	copied := NewAdjacencyListStorage(component)
	source.EachEdge(func(e graph.Edge) bool {
		copied.AddEdge(e)
		for _, anno := range source.EdgeAnnotations(e) {
			copied.AddEdgeAnnotation(e, anno)
		}
		return true
	})
	copied.CalculateStatistics()
	return copied
}

// Optimize returns the best storage for a component, converting the
// source when a specialized implementation fits. Statistics must be fresh
// on the source.
func (r *Registry) Optimize(component graph.Component, source GraphStorage) GraphStorage {
	impl := r.ImplementationFor(component, source.Statistics())
	if impl == ImplFallback {
		return r.CreateStorage(ImplFallback, component, source)
	}
	return r.CreateStorage(impl, component, source)
}
