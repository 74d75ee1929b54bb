package identity

import (
	"sync"
	"time"
)

// Cache memoizes token→viewer lookups for a short window so that every
// repository call does not cost an authentication round trip. Entries are
// force-cleared on sign-out.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]entry
}

type entry struct {
	viewer    Viewer
	fetchedAt time.Time
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{ttl: ttl, now: time.Now, entries: make(map[string]entry)}
}

func (c *Cache) Get(token string) (Viewer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[token]
	if !ok {
		return Viewer{}, false
	}
	if c.ttl > 0 && c.now().Sub(e.fetchedAt) > c.ttl {
		delete(c.entries, token)
		return Viewer{}, false
	}
	return e.viewer, true
}

func (c *Cache) Set(token string, viewer Viewer) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[token] = entry{viewer: viewer, fetchedAt: c.now()}
}

// Invalidate drops one token, used on sign-out.
func (c *Cache) Invalidate(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, token)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]entry)
}
