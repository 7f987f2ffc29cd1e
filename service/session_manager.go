package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/eth"
	"github.com/layer-3/beatauth/internal/metrics"
	"github.com/layer-3/beatauth/internal/siwe"
	"github.com/layer-3/beatauth/ports"
)

// SessionConfig describes the sign-in messages a SessionManager produces
// and how long the resulting session lives.
type SessionConfig struct {
	Domain             string
	URI                string
	Statement          string
	ChainID            int64
	NonceTTL           time.Duration
	SessionTTL         time.Duration
	StoreRetryInterval time.Duration
}

// SessionDeps are the collaborators of a SessionManager.
type SessionDeps struct {
	Issuer     ports.ChallengeIssuer
	Verifier   ports.SignatureVerifier
	Identities ports.IdentityStore
	Resolver   *RoleResolver
	Wallet     ports.Wallet
	Sessions   ports.SessionStore
}

// SessionManager drives the client authentication state machine:
//
//	Disconnected -> WalletConnected -> Authenticating -> Authenticated
//
// It consumes wallet events, runs sign-in attempts, restores persisted
// sessions and notifies observers of every transition. All methods are
// safe for concurrent use.
type SessionManager struct {
	cfg        SessionConfig
	issuer     ports.ChallengeIssuer
	verifier   ports.SignatureVerifier
	identities identityLoader
	resolver   *RoleResolver
	wallet     ports.Wallet
	sessions   ports.SessionStore
	gate       *AccessGate
	log        zerolog.Logger
	now        func() time.Time

	flight singleflight.Group

	mu         sync.Mutex
	status     core.SessionStatus
	loading    bool
	address    string
	session    *core.Session
	identity   *core.Identity
	resolution Resolution
	lastReason core.TransitionReason
	// attempt is bumped whenever an in-flight sign-in must be abandoned.
	attempt   uint64
	pending   []core.Transition
	observers []func(core.Transition)
}

// NewSessionManager creates a manager in the Disconnected state
func NewSessionManager(cfg SessionConfig, deps SessionDeps, log zerolog.Logger) *SessionManager {
	return &SessionManager{
		cfg:        cfg,
		issuer:     deps.Issuer,
		verifier:   deps.Verifier,
		identities: newIdentityLoader(deps.Identities, cfg.StoreRetryInterval),
		resolver:   deps.Resolver,
		wallet:     deps.Wallet,
		sessions:   deps.Sessions,
		gate:       NewAccessGate(),
		log:        log.With().Str("component", "session_manager").Logger(),
		now:        time.Now,
		status:     core.StatusDisconnected,
	}
}

// WithClock replaces the manager's time source.
func (m *SessionManager) WithClock(now func() time.Time) *SessionManager {
	m.now = now
	m.identities.now = now
	return m
}

// OnTransition registers fn to be called after every state change.
// Observers run outside the manager's lock, in registration order.
func (m *SessionManager) OnTransition(fn func(core.Transition)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observers = append(m.observers, fn)
}

// State returns the current snapshot. An Authenticated session past its
// expiry is torn down first.
func (m *SessionManager) State(ctx context.Context) core.Snapshot {
	m.mu.Lock()
	m.expireLocked(ctx)
	snap := m.snapshotLocked()
	m.unlockAndEmit()
	return snap
}

// Authorize evaluates req against the current state.
func (m *SessionManager) Authorize(ctx context.Context, req Requirement) Decision {
	return m.gate.Evaluate(m.State(ctx), req)
}

// Run applies wallet events until events is closed or ctx is done.
func (m *SessionManager) Run(ctx context.Context, events <-chan core.WalletEvent) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Apply(ctx, ev)
		}
	}
}

// Apply feeds one wallet event into the state machine.
func (m *SessionManager) Apply(ctx context.Context, ev core.WalletEvent) core.Snapshot {
	m.mu.Lock()
	switch ev.Kind {
	case core.WalletEventConnected, core.WalletEventAddressChanged:
		m.connectLocked(ctx, ev.Address)
	case core.WalletEventDisconnected:
		m.disconnectLocked(ctx)
	default:
		m.log.Warn().Str("kind", string(ev.Kind)).Msg("ignoring unknown wallet event")
	}
	snap := m.snapshotLocked()
	m.unlockAndEmit()
	return snap
}

func (m *SessionManager) connectLocked(ctx context.Context, address string) {
	address = core.NormalizeAddress(address)
	if !eth.IsAddress(address) {
		m.log.Warn().Str("address", address).Msg("wallet reported an invalid address")
		m.disconnectLocked(ctx)
		return
	}
	if m.address == address {
		return
	}

	switch m.status {
	case core.StatusDisconnected:
		m.address = address
		m.transitionLocked(core.StatusWalletConnected, core.ReasonWalletConnected)
	case core.StatusWalletConnected:
		m.address = address
		m.transitionLocked(core.StatusWalletConnected, core.ReasonAddressChanged)
	default:
		// A session or attempt bound to the old address never survives a
		// switch: drop to Disconnected, then attach the new wallet.
		m.teardownLocked(ctx)
		m.transitionLocked(core.StatusDisconnected, core.ReasonAddressChanged)
		m.address = address
		m.transitionLocked(core.StatusWalletConnected, core.ReasonWalletConnected)
	}
}

func (m *SessionManager) disconnectLocked(ctx context.Context) {
	if m.status == core.StatusDisconnected {
		return
	}
	m.teardownLocked(ctx)
	m.address = ""
	m.transitionLocked(core.StatusDisconnected, core.ReasonDisconnected)
}

// Restore re-establishes a persisted session for the connected wallet.
// A record that is expired or belongs to another address is discarded.
func (m *SessionManager) Restore(ctx context.Context) (core.Snapshot, error) {
	m.mu.Lock()
	if m.status != core.StatusWalletConnected {
		snap := m.snapshotLocked()
		m.mu.Unlock()
		return snap, nil
	}
	m.loading = true
	gen := m.attempt
	address := m.address
	m.mu.Unlock()

	identity, res, session, discard, err := m.restore(ctx, address)

	m.mu.Lock()
	m.loading = false
	switch {
	case gen != m.attempt || m.status != core.StatusWalletConnected || m.address != address:
		// The wallet moved on while the record was loading.
	case err != nil:
		m.log.Error().Err(err).Str("address", address).Msg("failed to restore session")
	case discard:
		m.clearPersisted(ctx)
	case session != nil:
		m.installLocked(session, identity, res, core.ReasonRestored)
	}
	snap := m.snapshotLocked()
	m.unlockAndEmit()
	return snap, err
}

// restore loads the persisted record for address. discard reports a record
// that should be cleared; the caller does so under the lock.
func (m *SessionManager) restore(ctx context.Context, address string) (identity *core.Identity, res Resolution, session *core.Session, discard bool, err error) {
	persisted, err := m.sessions.Load(ctx)
	if errors.Is(err, core.ErrSessionNotFound) {
		return nil, Resolution{}, nil, false, nil
	}
	if err != nil {
		return nil, Resolution{}, nil, false, fmt.Errorf("load session: %w", err)
	}

	session = persisted.Session(m.cfg.SessionTTL)
	if !session.ValidFor(address, m.now()) {
		reason := "address_mismatch"
		if !m.now().Before(session.ExpiresAt) {
			reason = "expired"
		}
		m.log.Info().Str("reason", reason).Str("address", address).Msg("discarding persisted session")
		return nil, Resolution{}, nil, true, nil
	}

	identity, _, err = m.identities.loadOrCreate(ctx, session.Address)
	if err != nil {
		return nil, Resolution{}, nil, false, err
	}
	return identity, m.resolver.Resolve(session.Address, identity), session, false, nil
}

// SignIn runs one sign-in attempt for the connected wallet. Concurrent
// calls for the same address share a single attempt. Calling it while
// already Authenticated returns the current state.
//
// The shared attempt is detached from any one caller's ctx. A caller whose
// ctx ends stops waiting and gets ctx.Err(); the attempt itself runs on
// until it settles or the wallet moves on.
func (m *SessionManager) SignIn(ctx context.Context) (core.Snapshot, error) {
	m.mu.Lock()
	address := m.address
	m.mu.Unlock()
	if address == "" {
		return m.State(ctx), core.ErrWalletNotConnected
	}

	attemptCtx := context.WithoutCancel(ctx)
	ch := m.flight.DoChan(address, func() (interface{}, error) {
		return m.signIn(attemptCtx, address)
	})
	select {
	case <-ctx.Done():
		return m.State(attemptCtx), ctx.Err()
	case r := <-ch:
		if r.Err != nil {
			return m.State(ctx), r.Err
		}
		return r.Val.(core.Snapshot), nil
	}
}

func (m *SessionManager) signIn(ctx context.Context, address string) (core.Snapshot, error) {
	m.mu.Lock()
	m.expireLocked(ctx)
	switch {
	case m.address != address:
		m.unlockAndEmit()
		return core.Snapshot{}, core.ErrAttemptStale
	case m.status == core.StatusAuthenticated:
		snap := m.snapshotLocked()
		m.unlockAndEmit()
		return snap, nil
	case m.status == core.StatusAuthenticating:
		m.unlockAndEmit()
		return core.Snapshot{}, core.ErrSignInInProgress
	case m.status != core.StatusWalletConnected:
		m.unlockAndEmit()
		return core.Snapshot{}, core.ErrWalletNotConnected
	}
	m.attempt++
	gen := m.attempt
	m.transitionLocked(core.StatusAuthenticating, core.ReasonSignInStarted)
	m.unlockAndEmit()

	verified, identity, res, err := m.authenticate(ctx, address)

	m.mu.Lock()
	if gen != m.attempt {
		m.unlockAndEmit()
		metrics.SignInsTotal.WithLabelValues("stale").Inc()
		m.log.Info().Str("address", address).Msg("discarding result of abandoned sign-in")
		return core.Snapshot{}, core.ErrAttemptStale
	}
	if err != nil {
		m.transitionLocked(core.StatusWalletConnected, core.ReasonSignInFailed)
		m.unlockAndEmit()
		metrics.SignInsTotal.WithLabelValues("failed").Inc()
		m.log.Warn().Err(err).Str("address", address).Msg("sign-in failed")
		return core.Snapshot{}, err
	}

	now := m.now()
	session := &core.Session{
		ID:             uuid.NewString(),
		Address:        verified.Address,
		SignatureProof: verified.Signature,
		EstablishedAt:  now,
		ExpiresAt:      now.Add(m.cfg.SessionTTL),
	}
	if err := m.sessions.Save(ctx, session.Persisted()); err != nil {
		m.transitionLocked(core.StatusWalletConnected, core.ReasonSignInFailed)
		m.unlockAndEmit()
		metrics.SignInsTotal.WithLabelValues("failed").Inc()
		return core.Snapshot{}, fmt.Errorf("persist session: %w", err)
	}
	m.installLocked(session, identity, res, core.ReasonSignInSucceeded)
	snap := m.snapshotLocked()
	m.unlockAndEmit()

	metrics.SignInsTotal.WithLabelValues("ok").Inc()
	m.log.Info().
		Str("address", session.Address).
		Str("session_id", session.ID).
		Str("role", string(res.Role)).
		Msg("signed in")
	return snap, nil
}

// authenticate performs the network half of a sign-in: challenge, wallet
// signature, verification and profile lookup.
func (m *SessionManager) authenticate(ctx context.Context, address string) (*core.VerifiedIdentity, *core.Identity, Resolution, error) {
	challenge, err := m.issuer.Issue(ctx)
	if err != nil {
		return nil, nil, Resolution{}, err
	}

	text := m.message(address, challenge).String()
	signature, err := m.wallet.SignMessage(ctx, address, []byte(text))
	if err != nil {
		return nil, nil, Resolution{}, fmt.Errorf("wallet signature: %w", err)
	}

	verified, err := m.verifier.Verify(ctx, address, text, signature)
	if err != nil {
		return nil, nil, Resolution{}, err
	}

	identity, created, err := m.identities.loadOrCreate(ctx, verified.Address)
	if err != nil {
		return nil, nil, Resolution{}, err
	}
	if created {
		m.log.Info().Str("address", verified.Address).Msg("created profile on first sign-in")
	}
	return verified, identity, m.resolver.Resolve(verified.Address, identity), nil
}

func (m *SessionManager) message(address string, challenge *core.Challenge) *siwe.Message {
	display := address
	if checksummed, err := eth.ChecksumAddress(address); err == nil {
		display = checksummed
	}
	expires := challenge.ExpiresAt
	return &siwe.Message{
		Domain:         m.cfg.Domain,
		Address:        display,
		Statement:      m.cfg.Statement,
		URI:            m.cfg.URI,
		Version:        "1",
		ChainID:        m.cfg.ChainID,
		Nonce:          challenge.Nonce,
		IssuedAt:       challenge.IssuedAt,
		ExpirationTime: &expires,
	}
}

// SignOut ends the session and clears its persisted record. It never fails
// and is safe to call repeatedly or mid sign-in.
func (m *SessionManager) SignOut(ctx context.Context) core.Snapshot {
	m.mu.Lock()
	from := m.status
	m.teardownLocked(ctx)
	target := core.StatusDisconnected
	if m.address != "" {
		target = core.StatusWalletConnected
	}
	if from != target {
		m.transitionLocked(target, core.ReasonSignedOut)
	}
	snap := m.snapshotLocked()
	m.unlockAndEmit()
	return snap
}

func (m *SessionManager) expireLocked(ctx context.Context) {
	if m.status != core.StatusAuthenticated || m.session == nil {
		return
	}
	if m.now().Before(m.session.ExpiresAt) {
		return
	}
	m.log.Info().Str("address", m.session.Address).Msg("session expired")
	m.teardownLocked(ctx)
	target := core.StatusDisconnected
	if m.address != "" {
		target = core.StatusWalletConnected
	}
	m.transitionLocked(target, core.ReasonExpired)
}

// teardownLocked drops session state, clears the persisted record and
// abandons any in-flight attempt. It does not change status.
func (m *SessionManager) teardownLocked(ctx context.Context) {
	m.attempt++
	m.session = nil
	m.identity = nil
	m.resolution = Resolution{}
	m.clearPersisted(ctx)
}

func (m *SessionManager) clearPersisted(ctx context.Context) {
	if err := m.sessions.Clear(ctx); err != nil {
		m.log.Error().Err(err).Msg("failed to clear persisted session")
	}
}

func (m *SessionManager) installLocked(session *core.Session, identity *core.Identity, res Resolution, reason core.TransitionReason) {
	m.session = session
	m.identity = identity
	m.resolution = res
	m.transitionLocked(core.StatusAuthenticated, reason)
}

func (m *SessionManager) transitionLocked(to core.SessionStatus, reason core.TransitionReason) {
	t := core.Transition{From: m.status, To: to, Reason: reason, At: m.now()}
	m.status = to
	m.lastReason = reason
	m.pending = append(m.pending, t)
}

// unlockAndEmit releases the lock and then notifies observers of the
// transitions recorded while it was held.
func (m *SessionManager) unlockAndEmit() {
	pending := m.pending
	m.pending = nil
	observers := append([]func(core.Transition){}, m.observers...)
	m.mu.Unlock()

	for _, t := range pending {
		metrics.SessionTransitionsTotal.WithLabelValues(string(t.To), string(t.Reason)).Inc()
		m.log.Debug().
			Str("from", string(t.From)).
			Str("to", string(t.To)).
			Str("reason", string(t.Reason)).
			Msg("session transition")
		for _, fn := range observers {
			fn(t)
		}
	}
}

func (m *SessionManager) snapshotLocked() core.Snapshot {
	snap := core.Snapshot{
		Status:        m.status,
		Loading:       m.loading,
		WalletAddress: m.address,
		LastReason:    m.lastReason,
	}
	if m.status == core.StatusAuthenticated && m.session != nil {
		snap.Identity = m.identity.Clone()
		snap.Role = m.resolution.Role
		snap.Permissions = m.resolution.Permissions.Clone()
		snap.ExpiresAt = m.session.ExpiresAt
	}
	return snap
}
