package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/adapters/store"
	"github.com/layer-3/beatauth/adapters/wallet"
	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/siwe"
	"github.com/layer-3/beatauth/ports"
)

const (
	testDomain = "beats.example"
	testURI    = "https://beats.example"
	nonceTTL   = 5 * time.Minute
	sessionTTL = 24 * time.Hour
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *testClock {
	return &testClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type harness struct {
	clock      *testClock
	challenges *store.MemoryChallengeStore
	identities *store.MemoryIdentityStore
	sessions   *store.MemorySessionStore
	issuer     *ChallengeIssuer
	verifier   *SignatureVerifier
	resolver   *RoleResolver
	wallet     *wallet.KeyWallet
}

func newHarness(t *testing.T, allowlist ...string) *harness {
	t.Helper()
	clock := newClock()
	challenges := store.NewMemoryChallengeStore(clock.now)
	w, err := wallet.Generate()
	require.NoError(t, err)

	return &harness{
		clock:      clock,
		challenges: challenges,
		identities: store.NewMemoryIdentityStore(),
		sessions:   store.NewMemorySessionStore(),
		issuer:     NewChallengeIssuer(challenges, nonceTTL, zerolog.Nop()).WithClock(clock.now),
		verifier: NewSignatureVerifier(challenges, VerifierConfig{Domain: testDomain, NonceTTL: nonceTTL}, zerolog.Nop()).
			WithClock(clock.now),
		resolver: NewRoleResolver(core.NewAllowlist(allowlist...), zerolog.Nop()),
		wallet:   w,
	}
}

func (h *harness) manager(w ports.Wallet, identities ports.IdentityStore) *SessionManager {
	if identities == nil {
		identities = h.identities
	}
	cfg := SessionConfig{
		Domain:             testDomain,
		URI:                testURI,
		Statement:          "Sign in to the beat marketplace.",
		ChainID:            1,
		NonceTTL:           nonceTTL,
		SessionTTL:         sessionTTL,
		StoreRetryInterval: time.Millisecond,
	}
	deps := SessionDeps{
		Issuer:     h.issuer,
		Verifier:   h.verifier,
		Identities: identities,
		Resolver:   h.resolver,
		Wallet:     w,
		Sessions:   h.sessions,
	}
	return NewSessionManager(cfg, deps, zerolog.Nop()).WithClock(h.clock.now)
}

// signedMessage issues a challenge and returns a message for it signed by
// the harness wallet. mutate may adjust the message before signing.
func (h *harness) signedMessage(t *testing.T, mutate func(*siwe.Message)) (string, string) {
	t.Helper()
	ctx := context.Background()
	challenge, err := h.issuer.Issue(ctx)
	require.NoError(t, err)

	msg := &siwe.Message{
		Domain:   testDomain,
		Address:  h.wallet.Address(),
		URI:      testURI,
		Version:  "1",
		ChainID:  1,
		Nonce:    challenge.Nonce,
		IssuedAt: h.clock.now(),
	}
	if mutate != nil {
		mutate(msg)
	}
	text := msg.String()
	sig, err := h.wallet.SignMessage(ctx, h.wallet.Address(), []byte(text))
	require.NoError(t, err)
	return text, sig
}

// flakyIdentityStore fails the first failures calls to Get.
type flakyIdentityStore struct {
	ports.IdentityStore
	mu       sync.Mutex
	failures int
	calls    int
}

func (s *flakyIdentityStore) Get(ctx context.Context, key string) (*core.Identity, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls <= s.failures
	s.mu.Unlock()
	if fail {
		return nil, errors.New("connection reset")
	}
	return s.IdentityStore.Get(ctx, key)
}

// gatedWallet blocks in SignMessage until released.
type gatedWallet struct {
	inner   ports.Wallet
	started chan struct{}
	release chan struct{}

	mu    sync.Mutex
	calls int
}

func newGatedWallet(inner ports.Wallet) *gatedWallet {
	return &gatedWallet{inner: inner, started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (w *gatedWallet) SignMessage(ctx context.Context, address string, message []byte) (string, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	w.started <- struct{}{}
	<-w.release
	return w.inner.SignMessage(ctx, address, message)
}

func (w *gatedWallet) signatures() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}

type roleChange struct {
	actor, target string
	from, to      core.Role
}

type recordingPublisher struct {
	mu          sync.Mutex
	signIns     []string
	logouts     []string
	roleChanges []roleChange
}

func (p *recordingPublisher) PublishSignIn(_ context.Context, address, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.signIns = append(p.signIns, address)
	return nil
}

func (p *recordingPublisher) PublishLogout(_ context.Context, address, _ string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.logouts = append(p.logouts, address)
	return nil
}

func (p *recordingPublisher) PublishRoleChange(_ context.Context, actor, target string, from, to core.Role) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.roleChanges = append(p.roleChanges, roleChange{actor, target, from, to})
	return nil
}
