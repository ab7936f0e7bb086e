// Package readcache holds client-side copies of remote reads (token uris, listings).
// Everything in it is dropped when the active chain changes.
package readcache

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/quantumauth-io/quantum-go-utils/log"
)

type Cache[K comparable, V any] struct {
	name string
	lru  *lru.Cache[K, V]
}

func New[K comparable, V any](name string, size int) (*Cache[K, V], error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[K, V](size)
	if err != nil {
		return nil, err
	}
	return &Cache[K, V]{name: name, lru: c}, nil
}

func (c *Cache[K, V]) Get(key K) (V, bool) { return c.lru.Get(key) }

func (c *Cache[K, V]) Add(key K, value V) { c.lru.Add(key, value) }

func (c *Cache[K, V]) Remove(key K) { c.lru.Remove(key) }

func (c *Cache[K, V]) Len() int { return c.lru.Len() }

func (c *Cache[K, V]) ClearAll() {
	n := c.lru.Len()
	c.lru.Purge()
	if n > 0 {
		log.Info("read cache cleared", "cache", c.name, "entries", n)
	}
}

type Clearer interface {
	ClearAll()
}

// Group clears every registered cache at once.
type Group struct {
	mu     sync.Mutex
	caches []Clearer
	clears int
}

func NewGroup(caches ...Clearer) *Group {
	return &Group{caches: caches}
}

func (g *Group) Register(c Clearer) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.caches = append(g.caches, c)
}

func (g *Group) ClearAll() {
	g.mu.Lock()
	caches := append([]Clearer(nil), g.caches...)
	g.clears++
	g.mu.Unlock()

	for _, c := range caches {
		c.ClearAll()
	}
}

// Clears reports how many times ClearAll ran.
func (g *Group) Clears() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.clears
}
