package embedding

import (
	"container/list"
	"sync"
)

// vectorKey identifies one cached vector. Vectors from different models or input kinds
// never share an entry even when the content hash matches.
type vectorKey struct {
	model string
	kind  string
	hash  string
}

type vectorEntry struct {
	key vectorKey
	vec []float32
}

// CacheStats counts lookups against a vectorCache.
type CacheStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// vectorCache is a bounded LRU of embedding vectors. It stores and hands out copies,
// so callers that normalize or rescale a vector cannot corrupt the cache.
type vectorCache struct {
	mu      sync.Mutex
	limit   int
	entries map[vectorKey]*list.Element
	order   *list.List // front is most recently used
	hits    int64
	misses  int64
}

func newVectorCache(limit int) *vectorCache {
	return &vectorCache{
		limit:   limit,
		entries: make(map[vectorKey]*list.Element),
		order:   list.New(),
	}
}

func (c *vectorCache) get(k vectorKey) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[k]
	if !ok {
		c.misses++
		return nil, false
	}
	c.hits++
	c.order.MoveToFront(elem)
	return cloneVector(elem.Value.(*vectorEntry).vec), true
}

func (c *vectorCache) put(k vectorKey, vec []float32) {
	if c.limit <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[k]; ok {
		elem.Value.(*vectorEntry).vec = cloneVector(vec)
		c.order.MoveToFront(elem)
		return
	}
	c.entries[k] = c.order.PushFront(&vectorEntry{key: k, vec: cloneVector(vec)})
	for c.order.Len() > c.limit {
		last := c.order.Back()
		c.order.Remove(last)
		delete(c.entries, last.Value.(*vectorEntry).key)
	}
}

func (c *vectorCache) stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{Hits: c.hits, Misses: c.misses, Entries: c.order.Len()}
}

func cloneVector(v []float32) []float32 {
	return append([]float32(nil), v...)
}
