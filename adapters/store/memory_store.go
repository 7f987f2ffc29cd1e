package store

import (
	"context"
	"sync"
	"time"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

// MemoryTokenStore is an in-memory implementation of ports.TokenStore
type MemoryTokenStore struct {
	invalidatedTokens map[string]time.Time
	now               func() time.Time
	mu                sync.RWMutex
}

// NewMemoryTokenStore creates a new in-memory revocation store.
// A nil clock uses time.Now.
func NewMemoryTokenStore(now func() time.Time) *MemoryTokenStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryTokenStore{
		invalidatedTokens: make(map[string]time.Time),
		now:               now,
	}
}

var _ ports.TokenStore = (*MemoryTokenStore)(nil)

// InvalidateToken marks a token as invalidated until expiry elapses
func (s *MemoryTokenStore) InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	expiryTime := s.now().Add(expiry)
	if current, ok := s.invalidatedTokens[tokenID]; !ok || expiryTime.After(current) {
		s.invalidatedTokens[tokenID] = expiryTime
	}
	return nil
}

// IsTokenInvalidated checks if a token is invalidated
func (s *MemoryTokenStore) IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expiryTime, exists := s.invalidatedTokens[tokenID]
	if !exists {
		return false, nil
	}
	return s.now().Before(expiryTime), nil
}

func (s *MemoryTokenStore) purgeLocked() {
	now := s.now()
	for id, exp := range s.invalidatedTokens {
		if !now.Before(exp) {
			delete(s.invalidatedTokens, id)
		}
	}
}

// MemoryChallengeStore keeps outstanding challenges in a map
type MemoryChallengeStore struct {
	challenges map[string]core.Challenge
	now        func() time.Time
	mu         sync.Mutex
}

// NewMemoryChallengeStore creates an empty challenge store.
// A nil clock uses time.Now.
func NewMemoryChallengeStore(now func() time.Time) *MemoryChallengeStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryChallengeStore{
		challenges: make(map[string]core.Challenge),
		now:        now,
	}
}

var _ ports.ChallengeStore = (*MemoryChallengeStore)(nil)

// Save records a challenge. The record disappears after ttl.
func (s *MemoryChallengeStore) Save(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgeLocked()
	if _, exists := s.challenges[challenge.Nonce]; exists {
		return core.ErrIssuance
	}
	c := *challenge
	if deadline := s.now().Add(ttl); c.ExpiresAt.IsZero() || deadline.Before(c.ExpiresAt) {
		c.ExpiresAt = deadline
	}
	s.challenges[c.Nonce] = c
	return nil
}

// Consume removes and returns a live challenge
func (s *MemoryChallengeStore) Consume(ctx context.Context, nonce string) (*core.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.challenges[nonce]
	if !ok {
		return nil, core.ErrChallengeNotFound
	}
	delete(s.challenges, nonce)
	if c.Expired(s.now()) {
		return nil, core.ErrChallengeNotFound
	}
	c.Consumed = true
	return &c, nil
}

// Len returns the number of stored challenges, expired ones included
func (s *MemoryChallengeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

func (s *MemoryChallengeStore) purgeLocked() {
	now := s.now()
	for nonce, c := range s.challenges {
		if c.Expired(now) {
			delete(s.challenges, nonce)
		}
	}
}
