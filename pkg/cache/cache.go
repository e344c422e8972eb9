package cache

import (
	"encoding/binary"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Key identifies an entry by the content of its inputs.
type Key uint64

// KeyOf hashes parts into a Key. Each part is length-prefixed so that
// ("ab","c") and ("a","bc") produce different keys.
func KeyOf(parts ...[]byte) Key {
	d := xxhash.New()
	var n [8]byte
	for _, p := range parts {
		binary.LittleEndian.PutUint64(n[:], uint64(len(p)))
		d.Write(n[:])
		d.Write(p)
	}
	return Key(d.Sum64())
}

// Stats tracks cache performance
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// Cache is a bounded memo table. When full, the oldest entry is evicted.
type Cache[V any] struct {
	mu       sync.Mutex
	capacity int
	entries  map[Key]V
	order    []Key
	stats    Stats
}

// New creates a cache holding at most capacity entries. A capacity below one
// is raised to one.
func New[V any](capacity int) *Cache[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache[V]{
		capacity: capacity,
		entries:  make(map[Key]V, capacity),
	}
}

func (c *Cache[V]) Get(k Key) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[k]
	if ok {
		c.stats.Hits++
	} else {
		c.stats.Misses++
	}
	return v, ok
}

func (c *Cache[V]) Put(k Key, v V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.putLocked(k, v)
}

func (c *Cache[V]) putLocked(k Key, v V) {
	if _, ok := c.entries[k]; ok {
		c.entries[k] = v
		return
	}
	for len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.stats.Evictions++
	}
	c.entries[k] = v
	c.order = append(c.order, k)
}

// GetOrCompute returns the cached value for k, or runs fn and stores its
// result. Errors are not cached. fn runs without the lock held, so two
// concurrent misses on the same key may both compute.
func (c *Cache[V]) GetOrCompute(k Key, fn func() (V, error)) (V, bool, error) {
	if v, ok := c.Get(k); ok {
		return v, true, nil
	}
	v, err := fn()
	if err != nil {
		var zero V
		return zero, false, err
	}
	c.Put(k, v)
	return v, false, nil
}

func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.stats
	st.Entries = len(c.entries)
	return st
}
