package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layer-3/beatauth/core"
)

func authenticatedAs(role core.Role) core.Snapshot {
	return core.Snapshot{
		Status:        core.StatusAuthenticated,
		WalletAddress: addrAlice,
		Identity:      &core.Identity{PrimaryKey: addrAlice, Role: role},
		Role:          role,
		Permissions:   core.PermissionsFor(role),
	}
}

func TestEvaluateOrder(t *testing.T) {
	connected := core.Snapshot{Status: core.StatusWalletConnected, WalletAddress: addrAlice}
	authenticating := core.Snapshot{Status: core.StatusAuthenticating, WalletAddress: addrAlice}
	loading := core.Snapshot{Status: core.StatusDisconnected, Loading: true}

	tests := []struct {
		name  string
		state core.Snapshot
		req   Requirement
		want  Outcome
	}{
		{"loading wins over missing wallet", loading, RoleRequired(core.RoleAdmin), OutcomePendingLoading},
		{"no wallet", core.Snapshot{Status: core.StatusDisconnected}, WalletRequired(), OutcomeRequireWalletConnect},
		{"no wallet for role", core.Snapshot{Status: core.StatusDisconnected}, RoleRequired(core.RoleAdmin), OutcomeRequireWalletConnect},
		{"wallet only", connected, WalletRequired(), OutcomeAllow},
		{"not signed in", connected, AuthenticationRequired(), OutcomeRequireSignIn},
		{"not signed in for permission", connected, PermissionRequired(core.PermNFTMint), OutcomeRequireSignIn},
		{"sign-in in flight", authenticating, AuthenticationRequired(), OutcomePendingLoading},
		{"sign-in in flight wallet only", authenticating, WalletRequired(), OutcomeAllow},
		{"signed in", authenticatedAs(core.RoleUser), AuthenticationRequired(), OutcomeAllow},
		{"permission held", authenticatedAs(core.RoleProducer), PermissionRequired(core.PermNFTMint), OutcomeAllow},
		{"permission inherited", authenticatedAs(core.RoleAdmin), PermissionRequired(core.PermBeatsUpload), OutcomeAllow},
		{"permission missing", authenticatedAs(core.RoleUser), PermissionRequired(core.PermNFTMint), OutcomeDenied},
		{"role above requirement", authenticatedAs(core.RoleAdmin), RoleRequired(core.RoleProducer), OutcomeAllow},
		{"role below requirement", authenticatedAs(core.RoleProducer), RoleRequired(core.RoleAdmin), OutcomeDenied},
		{"exact role listed", authenticatedAs(core.RoleAdmin), AnyRoleRequired(core.RoleAdmin, core.RoleSuperAdmin), OutcomeAllow},
		{"any-of is exact", authenticatedAs(core.RoleSuperAdmin), AnyRoleRequired(core.RoleProducer), OutcomeDenied},
		{"empty any-of", authenticatedAs(core.RoleSuperAdmin), AnyRoleRequired(), OutcomeDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Evaluate(tt.state, tt.req).Outcome)
		})
	}
}

func TestDeniedCarriesRequirement(t *testing.T) {
	d := NewAccessGate().Evaluate(authenticatedAs(core.RoleUser), AnyRoleRequired(core.RoleAdmin, core.RoleSuperAdmin))

	assert.Equal(t, OutcomeDenied, d.Outcome)
	assert.False(t, d.Allowed())
	require.NotNil(t, d.Denial)
	assert.Equal(t, []core.Role{core.RoleAdmin, core.RoleSuperAdmin}, d.Denial.RequiredRoles)
	assert.Equal(t, core.RoleUser, d.Denial.ActualRole)
	assert.NotEmpty(t, d.CallToAction())
}

func TestCallToActionPerOutcome(t *testing.T) {
	assert.Empty(t, Decision{Outcome: OutcomeAllow}.CallToAction())
	for _, o := range []Outcome{OutcomePendingLoading, OutcomeRequireWalletConnect, OutcomeRequireSignIn, OutcomeDenied} {
		assert.NotEmpty(t, Decision{Outcome: o}.CallToAction(), o)
	}
}

func TestPrincipalSnapshot(t *testing.T) {
	assert.Equal(t, OutcomeRequireWalletConnect, Evaluate(PrincipalSnapshot(nil), AuthenticationRequired()).Outcome)

	p := &core.Principal{
		Address:     addrAlice,
		Identity:    &core.Identity{PrimaryKey: addrAlice},
		Role:        core.RoleProducer,
		Permissions: core.PermissionsFor(core.RoleProducer),
	}
	assert.True(t, Evaluate(PrincipalSnapshot(p), PermissionRequired(core.PermSalesReadOwn)).Allowed())
}

func TestPrincipalSnapshotCopiesPermissions(t *testing.T) {
	p := &core.Principal{Address: addrAlice, Role: core.RoleUser, Permissions: core.PermissionsFor(core.RoleUser)}
	snap := PrincipalSnapshot(p)
	snap.Permissions[core.PermRolesManage] = struct{}{}

	assert.False(t, p.Permissions.Has(core.PermRolesManage))
	assert.Equal(t, OutcomeDenied, Evaluate(PrincipalSnapshot(p), PermissionRequired(core.PermRolesManage)).Outcome)
}
