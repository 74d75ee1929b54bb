package agenda

import (
	"context"
	"sync"

	"gigbook/pkg/logger"
)

// Manager owns one live session per viewer, created lazily on first use and
// dropped on sign-out.
type Manager struct {
	mu        sync.Mutex
	store     Store
	bands     BandDirectory
	selection SelectionStore
	log       logger.Logger
	opts      Options
	sessions  map[string]*Session
}

func NewManager(store Store, bands BandDirectory, selection SelectionStore, log logger.Logger, opts Options) *Manager {
	return &Manager{
		store:     store,
		bands:     bands,
		selection: selection,
		log:       log,
		opts:      opts,
		sessions:  make(map[string]*Session),
	}
}

// Session returns the viewer's live session, starting one if needed.
func (m *Manager) Session(ctx context.Context, viewerID string) *Session {
	m.mu.Lock()
	if session, ok := m.sessions[viewerID]; ok {
		m.mu.Unlock()
		return session
	}
	session := NewSession(m.store, m.bands, m.selection, m.log, viewerID, m.opts)
	m.sessions[viewerID] = session
	m.mu.Unlock()

	// The session outlives the request that created it.
	session.Start(context.WithoutCancel(ctx))
	return session
}

// Drop stops and forgets the viewer's session; used on sign-out.
func (m *Manager) Drop(viewerID string) {
	m.mu.Lock()
	session, ok := m.sessions[viewerID]
	delete(m.sessions, viewerID)
	m.mu.Unlock()

	if ok {
		session.Stop()
	}
}

func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session)
	}
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, session := range sessions {
		session.Stop()
	}
}
