package namespace

import (
	"container/list"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/vamanadb/vamana/pkg/vamana"
)

// CacheKey identifies one cached query result set.
type CacheKey string

// CacheKeyFor hashes a query vector plus its search parameters into a
// CacheKey. Two calls with the same vector, k, beam width and rerank
// flag against an unchanged graph snapshot are guaranteed (§5's
// ordering guarantee) to produce identical results, so this is a safe
// cache key rather than an approximation.
func CacheKeyFor(query []float32, k, beamWidth int, rerank bool) CacheKey {
	h := sha256.New()
	for _, v := range query {
		binary.Write(h, binary.LittleEndian, math.Float32bits(v))
	}
	binary.Write(h, binary.LittleEndian, int32(k))
	binary.Write(h, binary.LittleEndian, int32(beamWidth))
	if rerank {
		h.Write([]byte{1})
	}
	return CacheKey(fmt.Sprintf("q:%x", h.Sum(nil)[:16]))
}

// lruEntry is one slot in the LRU's backing doubly-linked list.
type lruEntry struct {
	key       CacheKey
	results   []vamana.SearchResult
	expiresAt time.Time
}

// QueryCache is a thread-safe, fixed-capacity, optionally time-limited
// LRU cache of search results, keyed by CacheKeyFor. Search results
// are deterministic given a fixed graph snapshot, so caching is a pure
// latency optimization with no correctness implication — a cache hit
// and a cache miss against the same snapshot clock return identical
// results.
type QueryCache struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	index    map[CacheKey]*list.Element
	order    *list.List

	hits   int64
	misses int64
}

// NewQueryCache creates a cache holding up to capacity entries, each
// expiring ttl after insertion (ttl of 0 disables expiration).
func NewQueryCache(capacity int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		capacity: capacity,
		ttl:      ttl,
		index:    make(map[CacheKey]*list.Element, capacity),
		order:    list.New(),
	}
}

// Get returns the cached results for key, if present and unexpired.
func (c *QueryCache) Get(key CacheKey) ([]vamana.SearchResult, bool) {
	if c.capacity <= 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.index[key]
	if !ok {
		c.misses++
		return nil, false
	}
	entry := elem.Value.(*lruEntry)
	if c.ttl > 0 && time.Now().After(entry.expiresAt) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	c.order.MoveToFront(elem)
	c.hits++
	return entry.results, true
}

// Put stores results under key, evicting the least-recently-used entry
// if the cache is at capacity.
func (c *QueryCache) Put(key CacheKey, results []vamana.SearchResult) {
	if c.capacity <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, exists := c.index[key]; exists {
		entry := elem.Value.(*lruEntry)
		entry.results = results
		if c.ttl > 0 {
			entry.expiresAt = time.Now().Add(c.ttl)
		}
		c.order.MoveToFront(elem)
		return
	}

	entry := &lruEntry{key: key, results: results}
	if c.ttl > 0 {
		entry.expiresAt = time.Now().Add(c.ttl)
	}
	elem := c.order.PushFront(entry)
	c.index[key] = elem

	if c.order.Len() > c.capacity {
		back := c.order.Back()
		if back != nil {
			c.removeLocked(back)
		}
	}
}

// Clear removes every cached entry. Namespace calls this after any
// mutation (Insert, MarkDeleted, EnablePQ) since those change what a
// fresh search snapshot would return.
func (c *QueryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.index = make(map[CacheKey]*list.Element, c.capacity)
	c.order.Init()
	c.hits = 0
	c.misses = 0
}

func (c *QueryCache) removeLocked(elem *list.Element) {
	c.order.Remove(elem)
	entry := elem.Value.(*lruEntry)
	delete(c.index, entry.key)
}

// Stats reports cache hit/miss counters.
type Stats struct {
	Hits    int64
	Misses  int64
	Size    int
	HitRate float64
}

// Stats returns a snapshot of the cache's hit/miss counters.
func (c *QueryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{Hits: c.hits, Misses: c.misses, Size: c.order.Len(), HitRate: rate}
}
