package core

// Allowlist is the read-only set of break-glass super-admin addresses.
// It is built once at startup and never mutated.
type Allowlist struct {
	addresses map[string]struct{}
}

// NewAllowlist normalizes and deduplicates the given addresses. Blank
// entries are skipped.
func NewAllowlist(addresses ...string) Allowlist {
	set := make(map[string]struct{}, len(addresses))
	for _, a := range addresses {
		n := NormalizeAddress(a)
		if n == "" {
			continue
		}
		set[n] = struct{}{}
	}
	return Allowlist{addresses: set}
}

// Contains reports whether address is allowlisted, ignoring case.
func (a Allowlist) Contains(address string) bool {
	if len(a.addresses) == 0 {
		return false
	}
	_, ok := a.addresses[NormalizeAddress(address)]
	return ok
}

// Len returns the number of allowlisted addresses.
func (a Allowlist) Len() int {
	return len(a.addresses)
}
