package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/adapters/store"
	"github.com/layer-3/beatauth/adapters/tokenizer"
	"github.com/layer-3/beatauth/core"
)

type authFixture struct {
	*harness
	auth     *AuthService
	profiles *IdentityService
	events   *recordingPublisher
}

func newAuthFixture(t *testing.T, allowlist ...string) *authFixture {
	t.Helper()
	h := newHarness(t, allowlist...)
	key, err := tokenizer.GenerateKey()
	require.NoError(t, err)
	events := &recordingPublisher{}

	auth := NewAuthService(AuthDeps{
		Issuer:     h.issuer,
		Verifier:   h.verifier,
		Identities: h.identities,
		Resolver:   h.resolver,
		Tokenizer:  tokenizer.NewJWTTokenizer(key, h.clock.now),
		Tokens:     store.NewMemoryTokenStore(h.clock.now),
		Events:     events,
	}, sessionTTL, time.Millisecond, zerolog.Nop()).WithClock(h.clock.now)

	profiles := NewIdentityService(h.identities, events, time.Millisecond, zerolog.Nop()).WithClock(h.clock.now)
	return &authFixture{harness: h, auth: auth, profiles: profiles, events: events}
}

func (f *authFixture) signIn(t *testing.T) *SignInResult {
	t.Helper()
	text, sig := f.signedMessage(t, nil)
	res, err := f.auth.Verify(context.Background(), f.wallet.Address(), text, sig)
	require.NoError(t, err)
	return res
}

func TestVerifyIssuesSessionToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	res := f.signIn(t)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.Created)
	assert.Equal(t, core.RoleUser, res.Role)
	assert.Equal(t, f.clock.now().Add(sessionTTL), res.ExpiresAt)
	assert.Equal(t, []string{strings.ToLower(f.wallet.Address())}, f.events.signIns)

	p, err := f.auth.Authorize(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(f.wallet.Address()), p.Address)
	assert.Equal(t, res.SessionID, p.SessionID)
	assert.Equal(t, core.RoleUser, p.Role)

	second := f.signIn(t)
	assert.False(t, second.Created)
}

func TestVerifyTakesAddressFromMessage(t *testing.T) {
	f := newAuthFixture(t)
	text, sig := f.signedMessage(t, nil)

	res, err := f.auth.Verify(context.Background(), "", text, sig)
	require.NoError(t, err)
	assert.Equal(t, strings.ToLower(f.wallet.Address()), res.Identity.PrimaryKey)
}

func TestVerifyFailureLeavesNoProfile(t *testing.T) {
	f := newAuthFixture(t)
	text, sig := f.signedMessage(t, nil)

	_, err := f.auth.Verify(context.Background(), addrBob, text, sig)
	assert.ErrorIs(t, err, core.ErrAddressMismatch)
	assert.Equal(t, 0, f.identities.Len())
}

func TestAuthorizeResolvesRoleOnEveryRequest(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	res := f.signIn(t)

	root := &core.Principal{Address: addrAlice, Role: core.RoleSuperAdmin, Permissions: core.PermissionsFor(core.RoleSuperAdmin), Identity: &core.Identity{}}
	_, err := f.profiles.PromoteRole(ctx, root, f.wallet.Address(), core.RoleProducer)
	require.NoError(t, err)

	p, err := f.auth.Authorize(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, core.RoleProducer, p.Role)
	assert.True(t, p.Permissions.Has(core.PermNFTMint))
}

func TestAuthorizeRejectsBadTokens(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	res := f.signIn(t)

	_, err := f.auth.Authorize(ctx, "not-a-token")
	assert.ErrorIs(t, err, core.ErrInvalidToken)

	f.clock.advance(sessionTTL)
	_, err = f.auth.Authorize(ctx, res.Token)
	assert.ErrorIs(t, err, core.ErrTokenExpired)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	res := f.signIn(t)

	require.NoError(t, f.auth.Logout(ctx, res.Token))
	require.NoError(t, f.auth.Logout(ctx, res.Token))

	_, err := f.auth.Authorize(ctx, res.Token)
	assert.ErrorIs(t, err, core.ErrTokenInvalidated)
	assert.Len(t, f.events.logouts, 2)
}

func TestLogoutExpiredTokenSucceeds(t *testing.T) {
	f := newAuthFixture(t)
	res := f.signIn(t)
	f.clock.advance(sessionTTL + time.Minute)

	assert.NoError(t, f.auth.Logout(context.Background(), res.Token))
	assert.Empty(t, f.events.logouts)
}
