package graph

import (
	"math"
	"sort"
	"sync"

	"github.com/google/btree"
)

const (
	maxHistogramBuckets   = 250
	maxSampledAnnotations = 2500
)

type nodeAnnoEntry struct {
	key   NodeAnnotationKey
	value StringID
}

func nodeAnnoLess(a, b nodeAnnoEntry) bool {
	if a.key.Node != b.key.Node {
		return a.key.Node < b.key.Node
	}
	if a.key.Name != b.key.Name {
		return a.key.Name < b.key.Name
	}
	return a.key.NS < b.key.NS
}

type inverseEntry struct {
	anno Annotation
	node NodeID
}

func inverseLess(a, b inverseEntry) bool {
	if a.anno != b.anno {
		return AnnotationLess(a.anno, b.anno)
	}
	return a.node < b.node
}

// NodeAnnoStorage indexes node annotations both by node (forward) and by
// annotation (inverse), and maintains the per-key statistics the planner
// uses for cardinality estimation.
//
// The forward index is ordered by (node, name, namespace) so all labels of
// one node are one range scan; the inverse index is ordered by
// (name, namespace, value, node) so one annotation's nodes are one range
// scan as well. Both stay in sync under the storage's lock.
type NodeAnnoStorage struct {
	mu      sync.RWMutex
	strings *StringStorage

	forward *btree.BTreeG[nodeAnnoEntry]
	inverse *btree.BTreeG[inverseEntry]

	keyCounts map[AnnotationKey]int

	// histogramBounds holds the equi-depth histogram per key, valid
	// until the next write.
	histogramBounds map[AnnotationKey][]string
	statsValid      bool

	maxNodeID NodeID
}

// NewNodeAnnoStorage creates an empty annotation index backed by the given
// interner.
func NewNodeAnnoStorage(strings *StringStorage) *NodeAnnoStorage {
	return &NodeAnnoStorage{
		strings:         strings,
		forward:         btree.NewG(32, nodeAnnoLess),
		inverse:         btree.NewG(32, inverseLess),
		keyCounts:       make(map[AnnotationKey]int),
		histogramBounds: make(map[AnnotationKey][]string),
	}
}

// Add inserts or replaces one annotation of a node. For any
// (node, name, namespace) at most one value is kept.
func (na *NodeAnnoStorage) Add(node NodeID, anno Annotation) {
	na.mu.Lock()
	defer na.mu.Unlock()
	na.addLocked(node, anno)
}

// NodeAnnotation pairs a node with one of its annotations, for bulk loads.
type NodeAnnotation struct {
	Node NodeID
	Anno Annotation
}

// AddBulk inserts a batch of annotations. The caller should pre-sort the
// batch by (node, name, namespace) for best insert locality.
func (na *NodeAnnoStorage) AddBulk(entries []NodeAnnotation) {
	na.mu.Lock()
	defer na.mu.Unlock()
	for _, e := range entries {
		na.addLocked(e.Node, e.Anno)
	}
}

func (na *NodeAnnoStorage) addLocked(node NodeID, anno Annotation) {
	key := NodeAnnotationKey{Node: node, Name: anno.Name, NS: anno.NS}

	if old, ok := na.forward.Get(nodeAnnoEntry{key: key}); ok {
		if old.value == anno.Value {
			return
		}
		na.inverse.Delete(inverseEntry{
			anno: Annotation{Name: anno.Name, NS: anno.NS, Value: old.value},
			node: node,
		})
		na.keyCounts[anno.Key()]--
	}

	na.forward.ReplaceOrInsert(nodeAnnoEntry{key: key, value: anno.Value})
	na.inverse.ReplaceOrInsert(inverseEntry{anno: anno, node: node})
	na.keyCounts[anno.Key()]++

	if node > na.maxNodeID {
		na.maxNodeID = node
	}
	na.statsValid = false
}

// Delete removes one annotation of a node. Key counts dropping to zero
// remove the key from the key set.
func (na *NodeAnnoStorage) Delete(node NodeID, key AnnotationKey) {
	na.mu.Lock()
	defer na.mu.Unlock()

	nk := NodeAnnotationKey{Node: node, Name: key.Name, NS: key.NS}
	old, ok := na.forward.Get(nodeAnnoEntry{key: nk})
	if !ok {
		return
	}

	na.forward.Delete(nodeAnnoEntry{key: nk})
	na.inverse.Delete(inverseEntry{
		anno: Annotation{Name: key.Name, NS: key.NS, Value: old.value},
		node: node,
	})
	if na.keyCounts[key] <= 1 {
		delete(na.keyCounts, key)
	} else {
		na.keyCounts[key]--
	}
	na.statsValid = false
}

// Get returns the annotation of a node for an exact (namespace, name) key.
func (na *NodeAnnoStorage) Get(node NodeID, ns, name StringID) (Annotation, bool) {
	na.mu.RLock()
	defer na.mu.RUnlock()

	key := NodeAnnotationKey{Node: node, Name: name, NS: ns}
	entry, ok := na.forward.Get(nodeAnnoEntry{key: key})
	if !ok {
		return Annotation{}, false
	}
	return Annotation{Name: name, NS: ns, Value: entry.value}, true
}

// GetAll returns every annotation of a node.
func (na *NodeAnnoStorage) GetAll(node NodeID) []Annotation {
	na.mu.RLock()
	defer na.mu.RUnlock()

	var result []Annotation
	from := nodeAnnoEntry{key: NodeAnnotationKey{Node: node}}
	to := nodeAnnoEntry{key: NodeAnnotationKey{Node: node + 1}}
	na.forward.AscendRange(from, to, func(e nodeAnnoEntry) bool {
		result = append(result, Annotation{Name: e.key.Name, NS: e.key.NS, Value: e.value})
		return true
	})
	return result
}

// EachInRange calls fn for every (annotation, node) pair whose annotation
// lies in [lower, upper], in inverse-index order.
func (na *NodeAnnoStorage) EachInRange(lower, upper Annotation, fn func(Annotation, NodeID) bool) {
	na.mu.RLock()
	defer na.mu.RUnlock()

	from := inverseEntry{anno: lower}
	to := inverseEntry{anno: upper, node: math.MaxUint32}
	na.inverse.AscendGreaterOrEqual(from, func(e inverseEntry) bool {
		if inverseLess(to, e) {
			return false
		}
		return fn(e.anno, e.node)
	})
}

// Each calls fn for every (node, annotation) pair in forward order. Used by
// persistence and statistics.
func (na *NodeAnnoStorage) Each(fn func(NodeID, Annotation) bool) {
	na.mu.RLock()
	defer na.mu.RUnlock()

	na.forward.Ascend(func(e nodeAnnoEntry) bool {
		return fn(e.key.Node, Annotation{Name: e.key.Name, NS: e.key.NS, Value: e.value})
	})
}

// NextFreeID returns a node ID not used by any annotated node yet.
func (na *NodeAnnoStorage) NextFreeID() NodeID {
	na.mu.RLock()
	defer na.mu.RUnlock()

	if na.forward.Len() == 0 {
		return 0
	}
	return na.maxNodeID + 1
}

// KeyCount returns the number of nodes carrying the given key.
func (na *NodeAnnoStorage) KeyCount(key AnnotationKey) int {
	na.mu.RLock()
	defer na.mu.RUnlock()
	return na.keyCounts[key]
}

// Keys returns all annotation keys present in the storage.
func (na *NodeAnnoStorage) Keys() []AnnotationKey {
	na.mu.RLock()
	defer na.mu.RUnlock()

	keys := make([]AnnotationKey, 0, len(na.keyCounts))
	for k := range na.keyCounts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return KeyLess(keys[i], keys[j]) })
	return keys
}

// KeysWithName returns all fully qualified keys having the given name.
func (na *NodeAnnoStorage) KeysWithName(name StringID) []AnnotationKey {
	na.mu.RLock()
	defer na.mu.RUnlock()

	var keys []AnnotationKey
	for k := range na.keyCounts {
		if k.Name == name {
			keys = append(keys, k)
		}
	}
	sort.Slice(keys, func(i, j int) bool { return KeyLess(keys[i], keys[j]) })
	return keys
}

// Len returns the total number of stored annotations.
func (na *NodeAnnoStorage) Len() int {
	na.mu.RLock()
	defer na.mu.RUnlock()
	return na.forward.Len()
}

// HasStatistics reports whether histograms are fresh enough for the
// planner to use.
func (na *NodeAnnoStorage) HasStatistics() bool {
	na.mu.RLock()
	defer na.mu.RUnlock()
	return na.statsValid
}

// CalculateStatistics rebuilds the per-key histograms. For every key up to
// maxSampledAnnotations values are sampled and up to maxHistogramBuckets
// equi-depth bucket bounds are kept.
func (na *NodeAnnoStorage) CalculateStatistics() {
	na.mu.Lock()
	defer na.mu.Unlock()

	na.histogramBounds = make(map[AnnotationKey][]string)

	for key := range na.keyCounts {
		var values []string
		lower := inverseEntry{anno: Annotation{Name: key.Name, NS: key.NS, Value: 0}}
		upper := inverseEntry{anno: Annotation{Name: key.Name, NS: key.NS, Value: math.MaxUint32}, node: math.MaxUint32}
		na.inverse.AscendGreaterOrEqual(lower, func(e inverseEntry) bool {
			if inverseLess(upper, e) {
				return false
			}
			str, err := na.strings.Str(e.anno.Value)
			if err == nil {
				values = append(values, str)
			}
			return true
		})

		values = sampleValues(values, maxSampledAnnotations)
		sort.Strings(values)

		numBounds := maxHistogramBuckets + 1
		if len(values) < numBounds {
			numBounds = len(values)
		}
		if numBounds < 2 {
			continue
		}

		bounds := make([]string, numBounds)
		// spread the bound positions evenly over the sorted sample,
		// carrying the fractional remainder
		delta := (len(values) - 1) / (numBounds - 1)
		deltaFraction := (len(values) - 1) % (numBounds - 1)
		pos, posFraction := 0, 0
		for i := 0; i < numBounds; i++ {
			bounds[i] = values[pos]
			pos += delta
			posFraction += deltaFraction
			if posFraction >= numBounds-1 {
				pos++
				posFraction -= numBounds - 1
			}
		}
		na.histogramBounds[key] = bounds
	}

	na.statsValid = true
}

// sampleValues reduces values to at most max entries with an even stride,
// keeping the sample deterministic.
func sampleValues(values []string, max int) []string {
	if len(values) <= max {
		return values
	}
	sampled := make([]string, 0, max)
	stride := float64(len(values)) / float64(max)
	for i := 0; i < max; i++ {
		sampled = append(sampled, values[int(float64(i)*stride)])
	}
	return sampled
}

// GuessMaxCount estimates the number of nodes with the given annotation
// name and exact value, over all namespaces. Returns -1 when no statistics
// are available.
func (na *NodeAnnoStorage) GuessMaxCount(name, value string) int64 {
	nameID, ok := na.strings.FindID(name)
	if !ok {
		return 0
	}
	return na.guessRange(nil, nameID, value, value)
}

// GuessMaxCountNS estimates like GuessMaxCount but for a fully qualified
// (namespace, name) key.
func (na *NodeAnnoStorage) GuessMaxCountNS(ns, name, value string) int64 {
	nameID, ok := na.strings.FindID(name)
	if !ok {
		return 0
	}
	nsID, ok := na.strings.FindID(ns)
	if !ok {
		return 0
	}
	return na.guessRange(&nsID, nameID, value, value)
}

// GuessMaxCountRegex estimates the count for a regex on the value, reduced
// to the pattern's possible match range. An empty namespace matches all
// namespaces.
func (na *NodeAnnoStorage) GuessMaxCountRegex(ns, name, pattern string) int64 {
	nameID, ok := na.strings.FindID(name)
	if !ok {
		return 0
	}
	var nsID *StringID
	if ns != "" {
		id, ok := na.strings.FindID(ns)
		if !ok {
			return 0
		}
		nsID = &id
	}

	if _, err := compileFullMatch(pattern); err != nil {
		return 0
	}
	lower, upper, bounded := PossibleMatchRange(pattern)
	if !bounded {
		lower = ""
		upper = "\xff\xff\xff\xff"
	} else if upper == "" {
		upper = "\xff\xff\xff\xff"
	}
	return na.guessRange(nsID, nameID, lower, upper)
}

// guessRange sums, over every matching key, the histogram buckets that
// overlap [lowerVal, upperVal] and scales the key population by the
// resulting selectivity.
func (na *NodeAnnoStorage) guessRange(nsID *StringID, nameID StringID, lowerVal, upperVal string) int64 {
	na.mu.RLock()
	defer na.mu.RUnlock()

	if !na.statsValid {
		return -1
	}

	var keys []AnnotationKey
	if nsID != nil {
		keys = append(keys, AnnotationKey{Name: nameID, NS: *nsID})
	} else {
		for k := range na.keyCounts {
			if k.Name == nameID {
				keys = append(keys, k)
			}
		}
	}

	var universeSize, sumBuckets, countMatches int64
	for _, key := range keys {
		universeSize += int64(na.keyCounts[key])

		histo := na.histogramBounds[key]
		if len(histo) < 2 {
			continue
		}
		sumBuckets += int64(len(histo) - 1)
		for i := 0; i < len(histo)-1; i++ {
			if histo[i] <= upperVal && lowerVal <= histo[i+1] {
				countMatches++
			}
		}
	}

	if sumBuckets == 0 {
		return 0
	}
	selectivity := float64(countMatches) / float64(sumBuckets)
	return int64(math.Round(selectivity * float64(universeSize)))
}

// Clear removes all annotations and statistics.
func (na *NodeAnnoStorage) Clear() {
	na.mu.Lock()
	defer na.mu.Unlock()

	na.forward.Clear(false)
	na.inverse.Clear(false)
	na.keyCounts = make(map[AnnotationKey]int)
	na.histogramBounds = make(map[AnnotationKey][]string)
	na.statsValid = false
	na.maxNodeID = 0
}

// EstimateMemorySize approximates the heap footprint in bytes.
func (na *NodeAnnoStorage) EstimateMemorySize() int {
	na.mu.RLock()
	defer na.mu.RUnlock()

	const perEntry = 40
	size := na.forward.Len()*perEntry + na.inverse.Len()*perEntry
	for _, bounds := range na.histogramBounds {
		for _, b := range bounds {
			size += len(b) + 16
		}
	}
	return size
}
