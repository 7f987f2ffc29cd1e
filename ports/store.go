package ports

import (
	"context"
	"time"

	"github.com/layer-3/beatauth/core"
)

// TokenStore tracks revoked session tokens
type TokenStore interface {
	InvalidateToken(ctx context.Context, tokenID string, expiry time.Duration) error
	IsTokenInvalidated(ctx context.Context, tokenID string) (bool, error)
}

// ChallengeStore holds outstanding challenges until they are consumed or expire
type ChallengeStore interface {
	// Save records a challenge for ttl. Saving an existing nonce fails.
	Save(ctx context.Context, challenge *core.Challenge, ttl time.Duration) error
	// Consume atomically removes and returns the challenge. It returns
	// core.ErrChallengeNotFound when the nonce is unknown, consumed or expired.
	Consume(ctx context.Context, nonce string) (*core.Challenge, error)
}

// IdentityStore persists profiles keyed by lowercase address or legacy id
type IdentityStore interface {
	// Get returns core.ErrIdentityNotFound when no profile exists.
	Get(ctx context.Context, key string) (*core.Identity, error)
	Set(ctx context.Context, key string, identity *core.Identity) error
}

// SessionStore is the durable client-side session key
type SessionStore interface {
	// Load returns core.ErrSessionNotFound when nothing is persisted.
	Load(ctx context.Context) (*core.PersistedSession, error)
	Save(ctx context.Context, session *core.PersistedSession) error
	Clear(ctx context.Context) error
}
