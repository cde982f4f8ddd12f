package vm

import "github.com/tolelom/degenchain/core"

// Authorization carries the privileged identity of the chain. The executor
// loads it from state for every transaction and hands it to the modules
// through the Context.
type Authorization struct {
	Owner core.Address
}

// OnlyOwner fails with ErrUnauthorized unless caller is the owner.
func (a Authorization) OnlyOwner(caller core.Address) error {
	if a.Owner.IsZero() || caller != a.Owner {
		return ErrUnauthorized
	}
	return nil
}

// IsOwner reports whether addr is the owner.
func (a Authorization) IsOwner(addr core.Address) bool {
	return !a.Owner.IsZero() && addr == a.Owner
}

// RequireNonZero fails with ErrZeroAddress if any address is the null address.
func RequireNonZero(addrs ...core.Address) error {
	for _, a := range addrs {
		if a.IsZero() {
			return ErrZeroAddress
		}
	}
	return nil
}
