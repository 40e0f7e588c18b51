package pool

import (
	"fmt"

	"sharepool/crypto"
)

// Signers is the set of identities that authorised the current instruction.
type Signers map[crypto.Address]struct{}

// NewSigners builds a signer set.
func NewSigners(addrs ...crypto.Address) Signers {
	set := make(Signers, len(addrs))
	for _, addr := range addrs {
		set[addr] = struct{}{}
	}
	return set
}

// Has reports whether addr signed.
func (s Signers) Has(addr crypto.Address) bool {
	_, ok := s[addr]
	return ok
}

func requireSigner(signers Signers, addr crypto.Address, role string) error {
	if addr.IsZero() || !signers.Has(addr) {
		return fmt.Errorf("%w: %s %s", ErrMissingSignature, role, addr)
	}
	return nil
}

func requireAddress(actual, expected crypto.Address, role string) error {
	if actual != expected {
		return fmt.Errorf("%w: %s", ErrAddressConstraint, role)
	}
	return nil
}
