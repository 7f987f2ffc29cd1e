package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

// MemoryIdentityStore is an in-memory ports.IdentityStore
type MemoryIdentityStore struct {
	identities map[string]*core.Identity
	mu         sync.RWMutex
}

// NewMemoryIdentityStore creates an empty identity store
func NewMemoryIdentityStore() *MemoryIdentityStore {
	return &MemoryIdentityStore{identities: make(map[string]*core.Identity)}
}

var _ ports.IdentityStore = (*MemoryIdentityStore)(nil)

// Get returns a copy of the stored identity
func (s *MemoryIdentityStore) Get(ctx context.Context, key string) (*core.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	identity, ok := s.identities[key]
	if !ok {
		return nil, core.ErrIdentityNotFound
	}
	return identity.Clone(), nil
}

// Set stores a copy of identity under key
func (s *MemoryIdentityStore) Set(ctx context.Context, key string, identity *core.Identity) error {
	if identity == nil || identity.PrimaryKey != key {
		return fmt.Errorf("set identity %q: %w", key, core.ErrImmutableField)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[key] = identity.Clone()
	return nil
}

// Len returns the number of stored identities
func (s *MemoryIdentityStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.identities)
}
