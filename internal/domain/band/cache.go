package band

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// TenancyCache memoizes one viewer's band memberships for a short window.
// A read for a different viewer than the cached one invalidates immediately,
// and concurrent misses for the same viewer share one underlying fetch.
type TenancyCache struct {
	mu        sync.Mutex
	ttl       time.Duration
	now       func() time.Time
	viewerID  string
	bands     []Band
	fetchedAt time.Time
	group     singleflight.Group
}

func NewTenancyCache(ttl time.Duration) *TenancyCache {
	return &TenancyCache{ttl: ttl, now: time.Now}
}

// Load returns the cached memberships for viewerID, calling fetch on a miss.
func (c *TenancyCache) Load(viewerID string, fetch func() ([]Band, error)) ([]Band, error) {
	if bands, ok := c.get(viewerID); ok {
		return bands, nil
	}

	result, err, _ := c.group.Do(viewerID, func() (any, error) {
		if bands, ok := c.get(viewerID); ok {
			return bands, nil
		}
		bands, err := fetch()
		if err != nil {
			return nil, err
		}
		c.set(viewerID, bands)
		return bands, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]Band), nil
}

func (c *TenancyCache) get(viewerID string) ([]Band, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.viewerID != viewerID {
		c.bands = nil
		c.viewerID = ""
		return nil, false
	}
	if c.ttl > 0 && c.now().Sub(c.fetchedAt) > c.ttl {
		return nil, false
	}
	return c.bands, true
}

func (c *TenancyCache) set(viewerID string, bands []Band) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.viewerID = viewerID
	c.bands = bands
	c.fetchedAt = c.now()
}

// Invalidate drops the cached memberships; called whenever membership is
// known to have changed (band created, joined, left, deleted).
func (c *TenancyCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.viewerID = ""
	c.bands = nil
}
