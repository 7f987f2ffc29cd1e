package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/metrics"
	"github.com/layer-3/beatauth/internal/siwe"
	"github.com/layer-3/beatauth/ports"
)

// AuthService handles server-side sign-in: nonces, verification, session
// tokens and per-request authorization
type AuthService struct {
	issuer     ports.ChallengeIssuer
	verifier   ports.SignatureVerifier
	identities identityLoader
	resolver   *RoleResolver
	tokenizer  ports.Tokenizer
	tokens     ports.TokenStore
	eventPub   ports.EventPublisher
	log        zerolog.Logger
	now        func() time.Time

	sessionTTL time.Duration
}

// AuthDeps are the collaborators of an AuthService.
type AuthDeps struct {
	Issuer     ports.ChallengeIssuer
	Verifier   ports.SignatureVerifier
	Identities ports.IdentityStore
	Resolver   *RoleResolver
	Tokenizer  ports.Tokenizer
	Tokens     ports.TokenStore
	Events     ports.EventPublisher
}

// SignInResult is returned by a successful Verify
type SignInResult struct {
	Token       string
	SessionID   string
	Identity    *core.Identity
	Role        core.Role
	Permissions core.PermissionSet
	ExpiresAt   time.Time
	Created     bool // profile was created by this sign-in
}

// NewAuthService creates a new authentication service
func NewAuthService(deps AuthDeps, sessionTTL, retryInterval time.Duration, log zerolog.Logger) *AuthService {
	return &AuthService{
		issuer:     deps.Issuer,
		verifier:   deps.Verifier,
		identities: newIdentityLoader(deps.Identities, retryInterval),
		resolver:   deps.Resolver,
		tokenizer:  deps.Tokenizer,
		tokens:     deps.Tokens,
		eventPub:   deps.Events,
		log:        log.With().Str("component", "auth_service").Logger(),
		now:        time.Now,
		sessionTTL: sessionTTL,
	}
}

// WithClock replaces the service's time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	s.identities.now = now
	return s
}

// Nonce issues a fresh sign-in challenge
func (s *AuthService) Nonce(ctx context.Context) (*core.Challenge, error) {
	return s.issuer.Issue(ctx)
}

// Verify checks a signed message and opens a session for its signer. When
// claimedAddress is empty the address inside the message is used.
func (s *AuthService) Verify(ctx context.Context, claimedAddress, message, signature string) (*SignInResult, error) {
	if claimedAddress == "" {
		if msg, err := siwe.Parse(message); err == nil {
			claimedAddress = msg.Address
		}
	}

	verified, err := s.verifier.Verify(ctx, claimedAddress, message, signature)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}

	identity, created, err := s.identities.loadOrCreate(ctx, verified.Address)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("failed").Inc()
		s.log.Error().Err(err).Str("address", verified.Address).Msg("failed to load profile")
		return nil, err
	}
	res := s.resolver.Resolve(verified.Address, identity)

	now := s.now()
	session := &core.Session{
		ID:             uuid.NewString(),
		Address:        verified.Address,
		SignatureProof: verified.Signature,
		EstablishedAt:  now,
		ExpiresAt:      now.Add(s.sessionTTL),
	}
	token, err := s.tokenizer.SessionToToken(session)
	if err != nil {
		metrics.SignInsTotal.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}

	if err := s.eventPub.PublishSignIn(ctx, session.Address, session.ID); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish sign-in event")
	}

	metrics.SignInsTotal.WithLabelValues("ok").Inc()
	s.log.Info().
		Str("address", session.Address).
		Str("session_id", session.ID).
		Str("role", string(res.Role)).
		Bool("created", created).
		Msg("signed in")

	return &SignInResult{
		Token:       token,
		SessionID:   session.ID,
		Identity:    identity,
		Role:        res.Role,
		Permissions: res.Permissions.Clone(),
		ExpiresAt:   session.ExpiresAt,
		Created:     created,
	}, nil
}

// Authorize validates a session token and resolves the caller's role from
// the current profile. Roles are never read from the token.
func (s *AuthService) Authorize(ctx context.Context, token string) (*core.Principal, error) {
	session, err := s.tokenizer.TokenToSession(token)
	if err != nil {
		return nil, err
	}

	invalidated, err := s.tokens.IsTokenInvalidated(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check token invalidation: %w", err)
	}
	if invalidated {
		return nil, core.ErrTokenInvalidated
	}

	identity, err := s.identities.load(ctx, session.Address)
	if errors.Is(err, core.ErrIdentityNotFound) {
		return nil, fmt.Errorf("%w: no profile for session", core.ErrInvalidToken)
	}
	if err != nil {
		return nil, err
	}
	res := s.resolver.Resolve(session.Address, identity)

	return &core.Principal{
		Address:     session.Address,
		SessionID:   session.ID,
		Identity:    identity,
		Role:        res.Role,
		Permissions: res.Permissions,
		ExpiresAt:   session.ExpiresAt,
	}, nil
}

// Logout revokes a session token. An already expired token is treated as
// logged out.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	session, err := s.tokenizer.TokenToSession(token)
	if errors.Is(err, core.ErrTokenExpired) {
		return nil
	}
	if err != nil {
		return err
	}

	remaining := session.ExpiresAt.Sub(s.now())
	if remaining <= 0 {
		return nil
	}
	if err := s.tokens.InvalidateToken(ctx, session.ID, remaining); err != nil {
		return fmt.Errorf("failed to invalidate token: %w", err)
	}

	if err := s.eventPub.PublishLogout(ctx, session.Address, session.ID); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish logout event")
	}
	s.log.Info().Str("address", session.Address).Str("session_id", session.ID).Msg("signed out")
	return nil
}
