package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/metrics"
	"github.com/layer-3/beatauth/ports"
)

const nonceBytes = 32

// ChallengeIssuer generates single-use nonces and records them for the verifier
type ChallengeIssuer struct {
	store ports.ChallengeStore
	ttl   time.Duration
	now   func() time.Time
	log   zerolog.Logger
}

// NewChallengeIssuer creates an issuer whose challenges live for ttl
func NewChallengeIssuer(store ports.ChallengeStore, ttl time.Duration, log zerolog.Logger) *ChallengeIssuer {
	return &ChallengeIssuer{
		store: store,
		ttl:   ttl,
		now:   time.Now,
		log:   log.With().Str("component", "challenge_issuer").Logger(),
	}
}

// WithClock replaces the issuer's time source.
func (i *ChallengeIssuer) WithClock(now func() time.Time) *ChallengeIssuer {
	i.now = now
	return i
}

var _ ports.ChallengeIssuer = (*ChallengeIssuer)(nil)

// Issue creates and records a new challenge. Every call yields a fresh nonce.
func (i *ChallengeIssuer) Issue(ctx context.Context) (*core.Challenge, error) {
	raw := make([]byte, nonceBytes)
	if _, err := rand.Read(raw); err != nil {
		metrics.ChallengesIssuedTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%w: generate nonce: %v", core.ErrIssuance, err)
	}

	now := i.now()
	challenge := &core.Challenge{
		Nonce:     hex.EncodeToString(raw),
		IssuedAt:  now,
		ExpiresAt: now.Add(i.ttl),
	}
	if err := i.store.Save(ctx, challenge, i.ttl); err != nil {
		metrics.ChallengesIssuedTotal.WithLabelValues("error").Inc()
		i.log.Error().Err(err).Msg("failed to record challenge")
		return nil, fmt.Errorf("%w: %v", core.ErrIssuance, err)
	}

	metrics.ChallengesIssuedTotal.WithLabelValues("ok").Inc()
	return challenge, nil
}
