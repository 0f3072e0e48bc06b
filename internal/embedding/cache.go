package embedding

import (
	"container/list"
	"sync"
)

// Cache is an LRU cache of embeddings keyed by text. It keeps repeated
// question embeddings and re-ingested chunks from hitting the model twice.
type Cache struct {
	capacity int
	mu       sync.Mutex
	byKey    map[string]*list.Element
	order    *list.List
}

type cacheItem struct {
	key    string
	vector []float32
}

// NewCache creates an LRU cache holding up to capacity embeddings.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		byKey:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get returns the cached embedding for key, if present.
func (c *Cache) Get(key string) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.byKey[key]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*cacheItem).vector, true
}

// Set stores the embedding for key, evicting the least recently used entry
// when the cache is full.
func (c *Cache) Set(key string, vector []float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.byKey[key]; ok {
		c.order.MoveToFront(elem)
		elem.Value.(*cacheItem).vector = vector
		return
	}
	c.byKey[key] = c.order.PushFront(&cacheItem{key: key, vector: vector})
	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.byKey, oldest.Value.(*cacheItem).key)
	}
}

// Len returns the number of cached embeddings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
