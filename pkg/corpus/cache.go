package corpus

import (
	"log"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LoaderFunc loads a corpus by name, e.g. from a snapshot directory.
type LoaderFunc func(name string) (*DB, error)

// Cache keeps loaded corpora in memory up to a byte budget, evicting the
// least recently used corpus when the budget is exceeded. Concurrent
// queries on one cached corpus are fine; eviction only drops the cache's
// reference.
type Cache struct {
	mu     sync.Mutex
	lru    *lru.Cache[string, *DB]
	loader LoaderFunc

	maxBytes int
	logf     func(format string, args ...any)
}

// NewCache creates a cache with the given byte budget and loader.
// maxEntries bounds the entry count independently of the budget.
func NewCache(maxEntries, maxBytes int, loader LoaderFunc) (*Cache, error) {
	inner, err := lru.New[string, *DB](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Cache{
		lru:      inner,
		loader:   loader,
		maxBytes: maxBytes,
		logf:     log.Printf,
	}, nil
}

// SetLogger replaces the cache's log sink.
func (c *Cache) SetLogger(logf func(format string, args ...any)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.logf = logf
}

// Get returns the corpus, loading it on a miss. A load failure is returned
// to the caller and nothing is cached.
func (c *Cache) Get(name string) (*DB, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if db, ok := c.lru.Get(name); ok {
		return db, nil
	}

	db, err := c.loader(name)
	if err != nil {
		return nil, err
	}
	c.lru.Add(name, db)
	c.enforceBudget()
	return db, nil
}

// Contains reports whether a corpus is currently cached, without touching
// its recency.
func (c *Cache) Contains(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Contains(name)
}

// Remove drops a corpus from the cache.
func (c *Cache) Remove(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(name)
}

// Len returns the number of cached corpora.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// enforceBudget evicts LRU entries until the summed size estimate fits the
// budget. The most recently added entry is never evicted, so one oversized
// corpus still loads.
func (c *Cache) enforceBudget() {
	if c.maxBytes <= 0 {
		return
	}
	for c.lru.Len() > 1 {
		total := 0
		for _, key := range c.lru.Keys() {
			if db, ok := c.lru.Peek(key); ok {
				total += db.EstimateMemorySize()
			}
		}
		if total <= c.maxBytes {
			return
		}
		if key, _, ok := c.lru.RemoveOldest(); ok {
			c.logf("corpus cache: evicted %s (over budget)", key)
		}
	}
}
