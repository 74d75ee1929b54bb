package realtime

import "sync"

type Table string

const (
	TableGigs      Table = "gigs"
	TableOverrides Table = "personal_overrides"
)

// Change describes one row-level mutation. For gig rows OwnerID is the gig's
// creator; for override rows it is the override's viewer (overrides are only
// ever relevant to their own viewer).
type Change struct {
	Table   Table
	OwnerID string
	BandID  *string
}

// Scope selects the changes one subscriber cares about, mirroring the two
// fetch scopes: a band scope matches that band's gig rows only; a personal
// scope matches the viewer's own rows plus rows in any band they belong to.
type Scope struct {
	ViewerID string
	BandID   *string
	BandIDs  []string
}

func (s Scope) Matches(c Change) bool {
	if s.BandID != nil {
		return c.Table == TableGigs && c.BandID != nil && *c.BandID == *s.BandID
	}

	if c.Table == TableOverrides {
		return c.OwnerID == s.ViewerID
	}
	if c.OwnerID == s.ViewerID {
		return true
	}
	if c.BandID == nil {
		return false
	}
	for _, id := range s.BandIDs {
		if id == *c.BandID {
			return true
		}
	}
	return false
}

// Hub fans row-change notifications out to scoped subscribers. Subscriber
// channels are small and sends never block: consumers refetch the whole
// visible set on any signal, so coalescing bursts loses nothing.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]*subscriber
	nextID int
}

type subscriber struct {
	scope Scope
	ch    chan Change
}

func NewHub() *Hub {
	return &Hub{subs: make(map[int]*subscriber)}
}

func (h *Hub) Publish(c Change) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, sub := range h.subs {
		if !sub.scope.Matches(c) {
			continue
		}
		select {
		case sub.ch <- c:
		default:
		}
	}
}

// Subscribe registers a scope and returns the change feed plus a cancel
// function. Cancel is idempotent and closes the channel.
func (h *Hub) Subscribe(scope Scope) (<-chan Change, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	sub := &subscriber{scope: scope, ch: make(chan Change, 4)}
	h.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs, id)
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}
