package service

import (
	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/internal/metrics"
)

// RequirementKind is what a protected resource asks of the caller.
type RequirementKind string

const (
	RequireWallet         RequirementKind = "wallet"
	RequireAuthentication RequirementKind = "authentication"
	RequirePermission     RequirementKind = "permission"
	RequireRole           RequirementKind = "role"
	RequireAnyRole        RequirementKind = "any_role"
)

// Requirement guards one resource.
type Requirement struct {
	Kind       RequirementKind
	Permission core.Permission
	Roles      []core.Role
}

func WalletRequired() Requirement         { return Requirement{Kind: RequireWallet} }
func AuthenticationRequired() Requirement { return Requirement{Kind: RequireAuthentication} }

// PermissionRequired is satisfied by any role whose permission set holds p.
func PermissionRequired(p core.Permission) Requirement {
	return Requirement{Kind: RequirePermission, Permission: p}
}

// RoleRequired is satisfied by role and every role above it.
func RoleRequired(role core.Role) Requirement {
	return Requirement{Kind: RequireRole, Roles: []core.Role{role}}
}

// AnyRoleRequired is satisfied only by the exact roles listed.
func AnyRoleRequired(roles ...core.Role) Requirement {
	return Requirement{Kind: RequireAnyRole, Roles: append([]core.Role(nil), roles...)}
}

// Outcome is the result class of a gate evaluation.
type Outcome string

const (
	OutcomeAllow                Outcome = "allow"
	OutcomePendingLoading       Outcome = "pending_loading"
	OutcomeRequireWalletConnect Outcome = "require_wallet_connect"
	OutcomeRequireSignIn        Outcome = "require_sign_in"
	OutcomeDenied               Outcome = "denied"
)

// Denial describes why an authenticated caller was refused.
type Denial struct {
	RequiredPermission core.Permission `json:"required_permission,omitempty"`
	RequiredRoles      []core.Role     `json:"required_roles,omitempty"`
	ActualRole         core.Role       `json:"actual_role"`
}

// Decision is the gate's verdict for one requirement.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	Denial  *Denial `json:"denial,omitempty"`
}

func (d Decision) Allowed() bool { return d.Outcome == OutcomeAllow }

// CallToAction is the prompt shown to the user for a non-allow decision.
func (d Decision) CallToAction() string {
	switch d.Outcome {
	case OutcomePendingLoading:
		return "Checking your session..."
	case OutcomeRequireWalletConnect:
		return "Connect your wallet to continue."
	case OutcomeRequireSignIn:
		return "Sign in with your wallet to continue."
	case OutcomeDenied:
		return "You do not have access to this page."
	}
	return ""
}

// Evaluate decides whether state satisfies req. Checks run in a fixed
// order: loading, wallet, authentication, then role or permission. The
// first failing check decides the outcome.
func Evaluate(state core.Snapshot, req Requirement) Decision {
	if state.Loading {
		return Decision{Outcome: OutcomePendingLoading}
	}
	if !state.WalletConnected() {
		return Decision{Outcome: OutcomeRequireWalletConnect}
	}
	if req.Kind == RequireWallet {
		return Decision{Outcome: OutcomeAllow}
	}

	if state.Status == core.StatusAuthenticating {
		return Decision{Outcome: OutcomePendingLoading}
	}
	if !state.Authenticated() {
		return Decision{Outcome: OutcomeRequireSignIn}
	}

	switch req.Kind {
	case RequireAuthentication:
		return Decision{Outcome: OutcomeAllow}
	case RequirePermission:
		if req.Permission != "" && state.Permissions.Has(req.Permission) {
			return Decision{Outcome: OutcomeAllow}
		}
		return denied(state, req)
	case RequireRole:
		if len(req.Roles) == 1 && state.Role.AtLeast(req.Roles[0]) {
			return Decision{Outcome: OutcomeAllow}
		}
		return denied(state, req)
	case RequireAnyRole:
		for _, r := range req.Roles {
			if state.Role == r {
				return Decision{Outcome: OutcomeAllow}
			}
		}
		return denied(state, req)
	}
	return denied(state, req)
}

func denied(state core.Snapshot, req Requirement) Decision {
	return Decision{
		Outcome: OutcomeDenied,
		Denial: &Denial{
			RequiredPermission: req.Permission,
			RequiredRoles:      append([]core.Role(nil), req.Roles...),
			ActualRole:         state.Role,
		},
	}
}

// AccessGate evaluates requirements and records each decision.
type AccessGate struct{}

func NewAccessGate() *AccessGate { return &AccessGate{} }

func (g *AccessGate) Evaluate(state core.Snapshot, req Requirement) Decision {
	d := Evaluate(state, req)
	metrics.GateDecisionsTotal.WithLabelValues(string(d.Outcome)).Inc()
	return d
}

// PrincipalSnapshot presents a server-side principal to the gate.
func PrincipalSnapshot(p *core.Principal) core.Snapshot {
	if p == nil {
		return core.Snapshot{Status: core.StatusDisconnected}
	}
	return core.Snapshot{
		Status:        core.StatusAuthenticated,
		WalletAddress: p.Address,
		Identity:      p.Identity,
		Role:          p.Role,
		Permissions:   p.Permissions.Clone(),
		ExpiresAt:     p.ExpiresAt,
	}
}
