package graph

import (
	"fmt"
	"regexp"
	"regexp/syntax"
	"sync"

	"github.com/google/btree"
)

type stringEntry struct {
	value string
	id    StringID
}

// StringStorage is a two-way mapping between strings and 32-bit IDs.
// Insertion is idempotent and IDs are never reused. The by-value side is
// ordered so regex searches can be bounded to a prefix range.
type StringStorage struct {
	mu      sync.RWMutex
	byID    map[StringID]string
	byValue *btree.BTreeG[stringEntry]
	nextID  StringID
}

// NewStringStorage creates an empty interner.
func NewStringStorage() *StringStorage {
	return &StringStorage{
		byID: make(map[StringID]string),
		byValue: btree.NewG(32, func(a, b stringEntry) bool {
			return a.value < b.value
		}),
		nextID: 1,
	}
}

// Add interns s and returns its ID. The empty string maps to the reserved
// ID 0; all other strings get a non-zero ID.
func (s *StringStorage) Add(str string) StringID {
	if str == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byValue.Get(stringEntry{value: str}); ok {
		return existing.id
	}

	id := s.nextID
	s.nextID++
	s.byID[id] = str
	s.byValue.ReplaceOrInsert(stringEntry{value: str, id: id})
	return id
}

// FindID returns the ID of an already interned string.
func (s *StringStorage) FindID(str string) (StringID, bool) {
	if str == "" {
		return 0, true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.byValue.Get(stringEntry{value: str})
	if !ok {
		return 0, false
	}
	return entry.id, true
}

// Str resolves an ID back to its string. ID 0 resolves to the empty string.
func (s *StringStorage) Str(id StringID) (string, error) {
	if id == 0 {
		return "", nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	str, ok := s.byID[id]
	if !ok {
		return "", fmt.Errorf("%w: %d", ErrUnknownString, id)
	}
	return str, nil
}

// StrDefault resolves an ID, returning the fallback for unknown IDs.
func (s *StringStorage) StrDefault(id StringID, fallback string) string {
	str, err := s.Str(id)
	if err != nil {
		return fallback
	}
	return str
}

// FindRegex returns the IDs of all interned strings fully matching the
// pattern. The scan is bounded to the range derived from the pattern's
// literal prefix; every candidate in the range is tested with a full match.
func (s *StringStorage) FindRegex(pattern string) ([]StringID, error) {
	re, err := compileFullMatch(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegex, err)
	}
	lower, upper, bounded := PossibleMatchRange(pattern)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []StringID
	visit := func(entry stringEntry) bool {
		if re.MatchString(entry.value) {
			result = append(result, entry.id)
		}
		return true
	}

	if !bounded {
		s.byValue.Ascend(visit)
	} else if upper == "" {
		// prefix range is open at the top
		s.byValue.AscendGreaterOrEqual(stringEntry{value: lower}, visit)
	} else {
		s.byValue.AscendRange(stringEntry{value: lower}, stringEntry{value: upper}, visit)
	}
	return result, nil
}

// Len returns the number of interned strings (excluding the reserved ID 0).
func (s *StringStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// AvgLength returns the average length of all interned strings.
func (s *StringStorage) AvgLength() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.byValue.Len() == 0 {
		return 0
	}
	sum := 0
	s.byValue.Ascend(func(entry stringEntry) bool {
		sum += len(entry.value)
		return true
	})
	return float64(sum) / float64(s.byValue.Len())
}

// Clear removes all interned strings. Previously issued IDs become invalid.
func (s *StringStorage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[StringID]string)
	s.byValue.Clear(false)
	s.nextID = 1
}

// EstimateMemorySize approximates the heap footprint in bytes. Used by the
// corpus cache to account loaded corpora against its budget.
func (s *StringStorage) EstimateMemorySize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const perEntry = 48 // map/btree bookkeeping per side
	size := 0
	s.byValue.Ascend(func(entry stringEntry) bool {
		size += 2*len(entry.value) + 2*perEntry
		return true
	})
	return size
}

// Each calls fn for every (id, value) pair in value order. Used by the
// persistence layer.
func (s *StringStorage) Each(fn func(StringID, string) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	s.byValue.Ascend(func(entry stringEntry) bool {
		return fn(entry.id, entry.value)
	})
}

// AddWithID force-inserts a known (id, value) pair. Used when restoring a
// snapshot; the next free ID is bumped past the restored one.
func (s *StringStorage) AddWithID(id StringID, value string) {
	if id == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[id] = value
	s.byValue.ReplaceOrInsert(stringEntry{value: value, id: id})
	if id >= s.nextID {
		s.nextID = id + 1
	}
}

// compileFullMatch anchors the pattern so MatchString is a full match.
func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// PossibleMatchRange derives a [lower, upper) string range that contains
// every possible match of the pattern. The third return value is false when
// no useful bound exists and the whole key space must be scanned.
//
// Go's regexp is RE2, so a parsed pattern exposes its mandatory literal
// prefix; the upper bound is that prefix with its last byte incremented.
func PossibleMatchRange(pattern string) (lower, upper string, bounded bool) {
	parsed, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return "", "", false
	}
	prog, err := syntax.Compile(parsed.Simplify())
	if err != nil {
		return "", "", false
	}
	prefix, _ := prog.Prefix()
	if prefix == "" {
		return "", "", false
	}
	return prefix, incrementLastByte(prefix), true
}

func incrementLastByte(s string) string {
	b := []byte(s)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	// every byte is 0xff, no finite upper bound
	return ""
}
