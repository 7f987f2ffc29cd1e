package core

import (
	"strings"
	"time"
)

// IdentityScheme distinguishes the two identity schemes that coexist.
type IdentityScheme string

const (
	SchemeWallet IdentityScheme = "wallet"
	SchemeLegacy IdentityScheme = "legacy"
)

// Identity is one authenticatable principal.
type Identity struct {
	PrimaryKey  string         `json:"primary_key"` // lowercase wallet address or legacy account id
	Scheme      IdentityScheme `json:"scheme"`
	DisplayName string         `json:"display_name"`
	Role        Role           `json:"role"`
	IsVerified  bool           `json:"is_verified"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// Clone returns a copy that can be mutated independently.
func (i *Identity) Clone() *Identity {
	if i == nil {
		return nil
	}
	c := *i
	return &c
}

// NormalizeAddress lowercases and trims an address for use as a key.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && NormalizeAddress(a) == NormalizeAddress(b)
}

// ShortAddress renders 0x1234...abcd, the default display name.
func ShortAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) <= 10 {
		return address
	}
	return address[:6] + "..." + address[len(address)-4:]
}

// NewWalletIdentity builds the profile created on a first sign-in.
func NewWalletIdentity(address string, now time.Time) *Identity {
	key := NormalizeAddress(address)
	return &Identity{
		PrimaryKey:  key,
		Scheme:      SchemeWallet,
		DisplayName: ShortAddress(key),
		Role:        RoleUser,
		IsVerified:  true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Principal is an authenticated identity with its freshly resolved role.
type Principal struct {
	Address     string
	SessionID   string
	Identity    *Identity
	Role        Role
	Permissions PermissionSet
	ExpiresAt   time.Time
}
