package cache

import (
	"sync"
	"time"

	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/jonboulle/clockwork"
)

// Memory keeps recently used entries in an in-process LRU in front of
// another Store. Expiry is checked on every hit.
type Memory struct {
	inner   Store
	ttl     time.Duration
	clock   clockwork.Clock
	lru     *lruCache
	metrics *observability.Metrics
}

// NewMemory wraps inner with an LRU of at most maxEntries entries.
func NewMemory(inner Store, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Memory{
		inner:   inner,
		ttl:     ttl,
		clock:   clock,
		lru:     newLRUCache(maxEntries),
		metrics: metrics,
	}
}

func (m *Memory) Get(key string) (Entry, bool) {
	if e, ok := m.lru.get(key); ok {
		if m.clock.Since(e.StoredAt) <= m.ttl {
			m.metrics.CacheLookups.WithLabelValues("memory_hit").Inc()
			return e, true
		}
		m.lru.delete(key)
	}
	e, ok := m.inner.Get(key)
	if !ok {
		m.metrics.CacheLookups.WithLabelValues("miss").Inc()
		return Entry{}, false
	}
	m.metrics.CacheLookups.WithLabelValues("disk_hit").Inc()
	m.lru.put(key, e)
	return e, true
}

func (m *Memory) Put(key string, e Entry) error {
	if err := m.inner.Put(key, e); err != nil {
		return err
	}
	m.lru.put(key, e)
	return nil
}

// lruCache is a thread-safe LRU of cache entries.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*node
	head       *node // most recently used
	tail       *node // least recently used
}

type node struct {
	key   string
	value Entry
	prev  *node
	next  *node
}

func newLRUCache(maxEntries int) *lruCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*node),
	}
}

func (c *lruCache) get(key string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n, ok := c.entries[key]
	if !ok {
		return Entry{}, false
	}
	c.moveToFront(n)
	return n.value, true
}

func (c *lruCache) put(key string, value Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		n.value = value
		c.moveToFront(n)
		return
	}

	n := &node{key: key, value: value}
	c.entries[key] = n
	c.addToFront(n)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if n, ok := c.entries[key]; ok {
		delete(c.entries, key)
		c.remove(n)
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(n *node) {
	if n == c.head {
		return
	}
	c.remove(n)
	c.addToFront(n)
}

func (c *lruCache) addToFront(n *node) {
	n.next = c.head
	n.prev = nil
	if c.head != nil {
		c.head.prev = n
	}
	c.head = n
	if c.tail == nil {
		c.tail = n
	}
}

func (c *lruCache) remove(n *node) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		c.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		c.tail = n.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
