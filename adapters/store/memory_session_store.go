package store

import (
	"context"
	"sync"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

// MemorySessionStore holds one persisted session, like a browser storage key
type MemorySessionStore struct {
	session *core.PersistedSession
	mu      sync.Mutex
}

// NewMemorySessionStore creates an empty session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

var _ ports.SessionStore = (*MemorySessionStore)(nil)

// Load returns the persisted session
func (s *MemorySessionStore) Load(ctx context.Context) (*core.PersistedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return nil, core.ErrSessionNotFound
	}
	c := *s.session
	return &c, nil
}

// Save replaces the persisted session
func (s *MemorySessionStore) Save(ctx context.Context, session *core.PersistedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *session
	s.session = &c
	return nil
}

// Clear removes the persisted session. Clearing twice is a no-op.
func (s *MemorySessionStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.session = nil
	return nil
}
