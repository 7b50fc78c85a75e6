package render

import (
	"sync"
	"time"

	"lane-defense/internal/game"
	"lane-defense/internal/metrics"
)

// Cache stores encoded minimaps per session with LRU eviction. An entry is
// reused only while its session is still on the same tick.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*cachedMinimap
	order   []string // LRU order (oldest first)
	maxSize int
	scale   int
	now     func() time.Time

	hits, misses uint64
}

type cachedMinimap struct {
	tick       uint64
	png        []byte
	renderedAt time.Time
}

const (
	DefaultMaxMinimaps = 64
	MinimapTTL         = 5 * time.Second
)

// NewCache creates a minimap cache holding at most maxSize sessions.
func NewCache(maxSize, scale int) *Cache {
	if maxSize <= 0 {
		maxSize = DefaultMaxMinimaps
	}
	return &Cache{
		entries: make(map[string]*cachedMinimap),
		order:   make([]string, 0, maxSize),
		maxSize: maxSize,
		scale:   scale,
		now:     time.Now,
	}
}

// PNG returns the minimap for sessionID at snap's tick, rendering on a miss.
func (c *Cache) PNG(sessionID string, snap game.Snapshot) ([]byte, error) {
	c.mu.Lock()
	if e, ok := c.entries[sessionID]; ok && e.tick == snap.Tick && c.now().Sub(e.renderedAt) < MinimapTTL {
		c.hits++
		c.touch(sessionID)
		c.mu.Unlock()
		metrics.RecordMinimapLookup(true)
		return e.png, nil
	}
	c.misses++
	c.mu.Unlock()
	metrics.RecordMinimapLookup(false)

	// Render outside the lock; a concurrent miss for the same session just renders twice
	png, err := EncodePNG(snap, c.scale)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[sessionID]; !ok {
		if len(c.entries) >= c.maxSize {
			c.evict()
		}
		c.order = append(c.order, sessionID)
	} else {
		c.touch(sessionID)
	}
	c.entries[sessionID] = &cachedMinimap{tick: snap.Tick, png: png, renderedAt: c.now()}
	metrics.SetMinimapsCached(len(c.entries))
	return png, nil
}

// Forget drops a session's entry.
func (c *Cache) Forget(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.entries[sessionID]; !ok {
		return
	}
	delete(c.entries, sessionID)
	c.removeFromOrder(sessionID)
	metrics.SetMinimapsCached(len(c.entries))
}

// touch moves id to the most recently used end
func (c *Cache) touch(id string) {
	c.removeFromOrder(id)
	c.order = append(c.order, id)
}

func (c *Cache) removeFromOrder(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// evict removes the least recently used entry
func (c *Cache) evict() {
	if len(c.order) == 0 {
		return
	}
	oldest := c.order[0]
	c.order = c.order[1:]
	delete(c.entries, oldest)
}

// Size returns the number of cached sessions
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns hit and miss counts
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}
