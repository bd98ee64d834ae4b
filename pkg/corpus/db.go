// Package corpus provides the database handle owning one loaded
// annotation graph: the string interner, the node annotation index and the
// per-component graph storages, plus graph updates and the corpus cache.
package corpus

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/orneryd/corpusdb/pkg/graph"
	"github.com/orneryd/corpusdb/pkg/graphstorage"
)

// DB owns one loaded corpus. Reads may run concurrently; the component map
// is guarded by a read/write lock, but ApplyUpdate does not hold it across
// an update, so readers can observe a partly applied update. Updates
// invalidate statistics.
type DB struct {
	mu sync.RWMutex

	// Name is the corpus name, used for salt URI rendering.
	Name string
	// InstanceID identifies this loaded instance, not the corpus itself.
	InstanceID string

	Strings   *graph.StringStorage
	NodeAnnos *graph.NodeAnnoStorage

	registry   *graphstorage.Registry
	components map[graph.Component]graphstorage.GraphStorage
}

// NewDB creates an empty corpus database.
func NewDB(name string) *DB {
	strings := graph.NewStringStorage()
	return &DB{
		Name:       name,
		InstanceID: uuid.NewString(),
		Strings:    strings,
		NodeAnnos:  graph.NewNodeAnnoStorage(strings),
		registry:   graphstorage.NewRegistry(),
		components: make(map[graph.Component]graphstorage.GraphStorage),
	}
}

// Registry returns the storage registry, e.g. to set per-component
// implementation overrides before Optimize.
func (db *DB) Registry() *graphstorage.Registry {
	return db.registry
}

// TokStringID returns the interned ID of the reserved token label name.
func (db *DB) TokStringID() graph.StringID {
	return db.Strings.Add(graph.TokLabel)
}

// NodeNameStringID returns the interned ID of the node-name label.
func (db *DB) NodeNameStringID() graph.StringID {
	return db.Strings.Add(graph.NodeNameLabel)
}

// NamespaceStringID returns the interned ID of the reserved namespace.
func (db *DB) NamespaceStringID() graph.StringID {
	return db.Strings.Add(graph.Namespace)
}

// EnsureComponent returns the writable storage of a component, creating it
// when absent. An optimized read-only storage is converted back to the
// fallback implementation first.
func (db *DB) EnsureComponent(c graph.Component) graphstorage.WritableGraphStorage {
	db.mu.Lock()
	defer db.mu.Unlock()

	existing, ok := db.components[c]
	if !ok {
		s := graphstorage.NewAdjacencyListStorage(c)
		db.components[c] = s
		return s
	}
	if writable, ok := existing.(graphstorage.WritableGraphStorage); ok {
		return writable
	}

	// de-optimize for writing
	converted := graphstorage.NewAdjacencyListStorage(c)
	existing.EachEdge(func(e graph.Edge) bool {
		converted.AddEdge(e)
		for _, anno := range existing.EdgeAnnotations(e) {
			converted.AddEdgeAnnotation(e, anno)
		}
		return true
	})
	db.components[c] = converted
	return converted
}

// GetStorage returns the storage of one exactly named component.
func (db *DB) GetStorage(c graph.Component) (graphstorage.GraphStorage, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	s, ok := db.components[c]
	return s, ok
}

// GetStoragesByType returns the storages of every component with the given
// type and name, across all layers. An empty layer in the lookup matches
// any layer.
func (db *DB) GetStoragesByType(t graph.ComponentType, layer, name string) []graphstorage.GraphStorage {
	db.mu.RLock()
	defer db.mu.RUnlock()

	var matching []graph.Component
	for c := range db.components {
		if c.Type != t {
			continue
		}
		if layer != "" && c.Layer != layer {
			continue
		}
		if c.Name != name {
			continue
		}
		matching = append(matching, c)
	}
	sort.Slice(matching, func(i, j int) bool { return matching[i].Less(matching[j]) })

	result := make([]graphstorage.GraphStorage, 0, len(matching))
	for _, c := range matching {
		result = append(result, db.components[c])
	}
	return result
}

// AllComponents returns every component with a storage, in order.
func (db *DB) AllComponents() []graph.Component {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]graph.Component, 0, len(db.components))
	for c := range db.components {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Less(result[j]) })
	return result
}

// HasStatistics reports whether both the annotation index and every
// storage carry fresh statistics.
func (db *DB) HasStatistics() bool {
	if !db.NodeAnnos.HasStatistics() {
		return false
	}

	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, s := range db.components {
		if !s.Statistics().Valid {
			return false
		}
	}
	return true
}

// CalculateStatistics recomputes the annotation histograms and every
// component's statistics.
func (db *DB) CalculateStatistics() {
	db.NodeAnnos.CalculateStatistics()

	db.mu.RLock()
	storages := make([]graphstorage.GraphStorage, 0, len(db.components))
	for _, s := range db.components {
		storages = append(storages, s)
	}
	db.mu.RUnlock()

	for _, s := range storages {
		if writable, ok := s.(graphstorage.WritableGraphStorage); ok {
			writable.CalculateStatistics()
		}
	}
}

// Optimize replaces component storages with specialized implementations
// where the registry finds a better fit. Statistics are recomputed first.
func (db *DB) Optimize() {
	db.CalculateStatistics()

	db.mu.Lock()
	defer db.mu.Unlock()

	for c, s := range db.components {
		db.components[c] = db.registry.Optimize(c, s)
	}
}

// NextFreeNodeID returns an unused node ID.
func (db *DB) NextFreeNodeID() graph.NodeID {
	return db.NodeAnnos.NextFreeID()
}

// EstimateMemorySize approximates the heap footprint of the whole corpus
// in bytes, for the cache's budget accounting.
func (db *DB) EstimateMemorySize() int {
	size := db.Strings.EstimateMemorySize() + db.NodeAnnos.EstimateMemorySize()

	db.mu.RLock()
	defer db.mu.RUnlock()
	const perEdge = 24
	for _, s := range db.components {
		size += s.NumberOfEdges()*perEdge + s.EdgeAnnotationCount()*perEdge
	}
	return size
}

// Clear drops all corpus content.
func (db *DB) Clear() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.Strings.Clear()
	db.NodeAnnos.Clear()
	db.components = make(map[graph.Component]graphstorage.GraphStorage)
}
