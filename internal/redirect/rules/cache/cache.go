package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/awmpietro/golang-execution-tracer/internal/redirect/rules"
)

// InMemory caches compiled rule graphs by the hash of their DOT source.
// Concurrent misses on the same source share one compilation.
type InMemory struct {
	mu     sync.RWMutex
	max    int
	items  map[string]*rules.Graph
	flight singleflight.Group
}

func NewInMemory(max int) *InMemory {
	if max < 1 {
		max = 1
	}
	return &InMemory{
		max:   max,
		items: make(map[string]*rules.Graph, max),
	}
}

func (c *InMemory) GetOrCompute(dot string, fn func() (*rules.Graph, error)) (*rules.Graph, error) {
	key := hash(dot)

	c.mu.RLock()
	if v, ok := c.items[key]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.flight.Do(key, func() (out any, err error) {
		defer func() {
			if r := recover(); r != nil {
				out, err = nil, fmt.Errorf("rule compilation panicked: %v", r)
			}
		}()

		g, err := fn()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if len(c.items) < c.max {
			c.items[key] = g
		}
		c.mu.Unlock()
		return g, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*rules.Graph), nil
}

func (c *InMemory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
