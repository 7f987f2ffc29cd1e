package core

import "sort"

// Role describes a principal's place in the permission lattice.
type Role string

const (
	RoleUser       Role = "user"
	RoleProducer   Role = "producer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// Permission is a named capability granted through a role.
type Permission string

const (
	PermBeatsBrowse   Permission = "beats:browse"
	PermBeatsPurchase Permission = "beats:purchase"
	PermProfileEdit   Permission = "profile:edit"
	PermLibraryRead   Permission = "library:read"

	PermBeatsUpload    Permission = "beats:upload"
	PermBeatsManageOwn Permission = "beats:manage_own"
	PermSalesReadOwn   Permission = "sales:read_own"
	PermNFTMint        Permission = "nft:mint"

	PermBeatsModerate Permission = "beats:moderate"
	PermUsersRead     Permission = "users:read"
	PermContentManage Permission = "content:manage"
	PermSalesReadAll  Permission = "sales:read_all"

	PermRolesManage     Permission = "roles:manage"
	PermSystemConfigure Permission = "system:configure"
)

// roleLattice lists roles from lowest to highest. Each entry carries only
// the permissions the role adds on top of every role below it.
var roleLattice = []struct {
	role   Role
	grants []Permission
}{
	{RoleUser, []Permission{PermBeatsBrowse, PermBeatsPurchase, PermProfileEdit, PermLibraryRead}},
	{RoleProducer, []Permission{PermBeatsUpload, PermBeatsManageOwn, PermSalesReadOwn, PermNFTMint}},
	{RoleAdmin, []Permission{PermBeatsModerate, PermUsersRead, PermContentManage, PermSalesReadAll}},
	{RoleSuperAdmin, []Permission{PermRolesManage, PermSystemConfigure}},
}

// Roles returns every role in ascending order.
func Roles() []Role {
	out := make([]Role, 0, len(roleLattice))
	for _, r := range roleLattice {
		out = append(out, r.role)
	}
	return out
}

// Rank returns the role's position in the lattice, or -1 for unknown roles.
func (r Role) Rank() int {
	for i, entry := range roleLattice {
		if entry.role == r {
			return i
		}
	}
	return -1
}

// Valid returns true when r is one of the supported roles.
func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// AtLeast reports whether r sits at or above other in the lattice.
func (r Role) AtLeast(other Role) bool {
	rank := r.Rank()
	return rank >= 0 && other.Rank() >= 0 && rank >= other.Rank()
}

// ParseRole validates a role name.
func ParseRole(s string) (Role, error) {
	r := Role(s)
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// PermissionSet is the flattened set of permissions for a role.
type PermissionSet map[Permission]struct{}

// Has reports whether p is in the set.
func (s PermissionSet) Has(p Permission) bool {
	_, ok := s[p]
	return ok
}

// Clone returns an independent copy of the set.
func (s PermissionSet) Clone() PermissionSet {
	out := make(PermissionSet, len(s))
	for p := range s {
		out[p] = struct{}{}
	}
	return out
}

// Sorted returns the permissions in lexical order.
func (s PermissionSet) Sorted() []Permission {
	out := make([]Permission, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// PermissionsFor flattens the lattice up to and including role.
// Unknown roles get an empty set.
func PermissionsFor(role Role) PermissionSet {
	set := make(PermissionSet)
	rank := role.Rank()
	if rank < 0 {
		return set
	}
	for _, entry := range roleLattice[:rank+1] {
		for _, p := range entry.grants {
			set[p] = struct{}{}
		}
	}
	return set
}
