package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/layer-3/beatauth/core"
	"github.com/layer-3/beatauth/ports"
)

const maxDisplayNameLength = 50

// ProfileUpdate holds the mutable profile fields. Nil fields are left as is.
type ProfileUpdate struct {
	DisplayName *string `json:"display_name"`
}

// IdentityService manages profiles on behalf of authenticated principals
type IdentityService struct {
	identities identityLoader
	gate       *AccessGate
	events     ports.EventPublisher
	log        zerolog.Logger
	now        func() time.Time
}

// NewIdentityService creates a new identity service
func NewIdentityService(store ports.IdentityStore, events ports.EventPublisher, retryInterval time.Duration, log zerolog.Logger) *IdentityService {
	return &IdentityService{
		identities: newIdentityLoader(store, retryInterval),
		gate:       NewAccessGate(),
		events:     events,
		log:        log.With().Str("component", "identity_service").Logger(),
		now:        time.Now,
	}
}

// WithClock replaces the service's time source.
func (s *IdentityService) WithClock(now func() time.Time) *IdentityService {
	s.now = now
	s.identities.now = now
	return s
}

// UpdateProfile applies update to the principal's own profile. Only the
// display name may change; identity and role fields are never writable here.
func (s *IdentityService) UpdateProfile(ctx context.Context, actor *core.Principal, update ProfileUpdate) (*core.Identity, error) {
	if !s.gate.Evaluate(PrincipalSnapshot(actor), PermissionRequired(core.PermProfileEdit)).Allowed() {
		return nil, core.ErrForbidden
	}

	identity, _, err := s.identities.loadOrCreate(ctx, actor.Address)
	if err != nil {
		return nil, err
	}

	if update.DisplayName != nil {
		name := strings.TrimSpace(*update.DisplayName)
		if name == "" || utf8.RuneCountInString(name) > maxDisplayNameLength {
			return nil, fmt.Errorf("%w: display name must be 1-%d characters", core.ErrInvalidProfile, maxDisplayNameLength)
		}
		identity.DisplayName = name
	}
	identity.UpdatedAt = s.now()

	if err := s.identities.save(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

// PromoteRole sets target's stored role. Only a super_admin may call it,
// and super_admin itself can never be granted through storage.
func (s *IdentityService) PromoteRole(ctx context.Context, actor *core.Principal, target string, role core.Role) (*core.Identity, error) {
	if !s.gate.Evaluate(PrincipalSnapshot(actor), RoleRequired(core.RoleSuperAdmin)).Allowed() {
		actorAddress := ""
		if actor != nil {
			actorAddress = actor.Address
		}
		s.log.Warn().Str("actor", actorAddress).Str("target", target).Msg("role change refused")
		return nil, core.ErrForbidden
	}
	if !role.Valid() {
		return nil, core.ErrInvalidRole
	}
	if role == core.RoleSuperAdmin {
		return nil, core.ErrSuperAdminNotGranted
	}

	key := core.NormalizeAddress(target)
	identity, err := s.identities.load(ctx, key)
	if err != nil {
		return nil, err
	}

	from := identity.Role
	identity.Role = role
	identity.UpdatedAt = s.now()
	if err := s.identities.save(ctx, identity); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("event", "role_change").
		Str("actor", actor.Address).
		Str("target", key).
		Str("from", string(from)).
		Str("to", string(role)).
		Msg("role changed")

	if err := s.events.PublishRoleChange(ctx, actor.Address, key, from, role); err != nil {
		s.log.Warn().Err(err).Msg("failed to publish role change event")
	}
	return identity, nil
}

// Profile returns the stored profile for key.
func (s *IdentityService) Profile(ctx context.Context, key string) (*core.Identity, error) {
	return s.identities.load(ctx, core.NormalizeAddress(key))
}
