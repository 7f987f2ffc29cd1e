package service

import (
	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/metrics"
)

// Resolution is the effective role of an identity and what it grants.
type Resolution struct {
	Role        core.Role
	Permissions core.PermissionSet
	BreakGlass  bool // role came from the super-admin allowlist
}

// RoleResolver derives the effective role for an address. It is the only
// component that reads the super-admin allowlist.
type RoleResolver struct {
	allowlist core.Allowlist
	log       zerolog.Logger
}

// NewRoleResolver creates a resolver around a fixed allowlist
func NewRoleResolver(allowlist core.Allowlist, log zerolog.Logger) *RoleResolver {
	return &RoleResolver{
		allowlist: allowlist,
		log:       log.With().Str("component", "role_resolver").Logger(),
	}
}

// Resolve returns the effective role. An allowlisted address is always
// super_admin regardless of its profile. A missing profile or an unknown
// stored role resolves to user.
func (r *RoleResolver) Resolve(address string, profile *core.Identity) Resolution {
	res := ResolveRole(r.allowlist, address, profile)
	if res.BreakGlass {
		metrics.BreakGlassTotal.Inc()
		stored := core.Role("")
		if profile != nil {
			stored = profile.Role
		}
		r.log.Warn().
			Str("address", core.NormalizeAddress(address)).
			Str("stored_role", string(stored)).
			Msg("super_admin granted through allowlist")
	}
	return res
}

// ResolveRole is the side-effect free form of RoleResolver.Resolve. The
// allowlist only applies to wallet identities.
func ResolveRole(allowlist core.Allowlist, address string, profile *core.Identity) Resolution {
	legacy := profile != nil && profile.Scheme == core.SchemeLegacy
	if !legacy && address != "" && allowlist.Contains(address) {
		return Resolution{
			Role:        core.RoleSuperAdmin,
			Permissions: core.PermissionsFor(core.RoleSuperAdmin),
			BreakGlass:  true,
		}
	}

	role := core.RoleUser
	if profile != nil && profile.Role.Valid() {
		role = profile.Role
	}
	return Resolution{Role: role, Permissions: core.PermissionsFor(role)}
}
