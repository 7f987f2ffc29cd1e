package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/core"
)

func principalFor(address string, role core.Role) *core.Principal {
	return &core.Principal{
		Address:     core.NormalizeAddress(address),
		Identity:    &core.Identity{PrimaryKey: core.NormalizeAddress(address), Role: role},
		Role:        role,
		Permissions: core.PermissionsFor(role),
	}
}

func TestUpdateProfileDisplayName(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signIn(t)
	f.clock.advance(time.Minute)

	name := "  Night Owl Beats "
	updated, err := f.profiles.UpdateProfile(ctx, principalFor(f.wallet.Address(), core.RoleUser), ProfileUpdate{DisplayName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Night Owl Beats", updated.DisplayName)
	assert.Equal(t, core.RoleUser, updated.Role)
	assert.True(t, updated.UpdatedAt.After(updated.CreatedAt))

	stored, err := f.profiles.Profile(ctx, f.wallet.Address())
	require.NoError(t, err)
	assert.Equal(t, "Night Owl Beats", stored.DisplayName)
}

func TestUpdateProfileRejectsBadNames(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signIn(t)
	actor := principalFor(f.wallet.Address(), core.RoleUser)

	for _, name := range []string{"", "   ", strings.Repeat("x", maxDisplayNameLength+1)} {
		_, err := f.profiles.UpdateProfile(ctx, actor, ProfileUpdate{DisplayName: &name})
		assert.ErrorIs(t, err, core.ErrInvalidProfile)
	}
}

func TestUpdateProfileRequiresPrincipal(t *testing.T) {
	f := newAuthFixture(t)
	name := "anon"

	_, err := f.profiles.UpdateProfile(context.Background(), nil, ProfileUpdate{DisplayName: &name})
	assert.ErrorIs(t, err, core.ErrForbidden)
}

func TestPromoteRole(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signIn(t)
	target := strings.ToLower(f.wallet.Address())
	root := principalFor(addrAlice, core.RoleSuperAdmin)

	updated, err := f.profiles.PromoteRole(ctx, root, f.wallet.Address(), core.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, core.RoleAdmin, updated.Role)
	assert.Equal(t, []roleChange{{
		actor: root.Address, target: target, from: core.RoleUser, to: core.RoleAdmin,
	}}, f.events.roleChanges)
}

func TestPromoteRoleRejections(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.signIn(t)
	root := principalFor(addrAlice, core.RoleSuperAdmin)

	_, err := f.profiles.PromoteRole(ctx, principalFor(addrBob, core.RoleAdmin), f.wallet.Address(), core.RoleProducer)
	assert.ErrorIs(t, err, core.ErrForbidden)

	_, err = f.profiles.PromoteRole(ctx, root, f.wallet.Address(), core.RoleSuperAdmin)
	assert.ErrorIs(t, err, core.ErrSuperAdminNotGranted)

	_, err = f.profiles.PromoteRole(ctx, root, f.wallet.Address(), core.Role("owner"))
	assert.ErrorIs(t, err, core.ErrInvalidRole)

	_, err = f.profiles.PromoteRole(ctx, root, addrBob, core.RoleProducer)
	assert.ErrorIs(t, err, core.ErrIdentityNotFound)

	assert.Empty(t, f.events.roleChanges)
}
