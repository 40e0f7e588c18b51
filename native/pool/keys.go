package pool

import "sharepool/crypto"

// Address derivation tags.
const (
	TagPool         = "pool"
	TagMint         = "mint"
	TagDistribution = "distribution"
	TagClaim        = "claim"
	TagProgram      = "program"
	TagCreator      = "creator"
)

// Derive maps a (tag, parent) tuple to an address. Parents are fixed width per
// tag and the tag is length prefixed, so distinct tuples never share a preimage.
func Derive(tag string, parents ...crypto.Address) crypto.Address {
	buf := make([]byte, 0, 1+len(tag)+len(parents)*crypto.AddressLength)
	buf = append(buf, byte(len(tag)))
	buf = append(buf, tag...)
	for _, p := range parents {
		buf = append(buf, p[:]...)
	}
	digest := crypto.Keccak256(buf)
	return crypto.MustAddress(digest[12:])
}

// PoolAddress derives the pool record address from its reference.
func PoolAddress(reference crypto.Address) crypto.Address { return Derive(TagPool, reference) }

// MintAddress derives the share mint owned by a pool.
func MintAddress(pool crypto.Address) crypto.Address { return Derive(TagMint, pool) }

// DistributionAddress derives the single distribution of a pool. It doubles as
// the owner of the distribution vault.
func DistributionAddress(pool crypto.Address) crypto.Address {
	return Derive(TagDistribution, pool)
}

// ClaimAddress derives the per-holder claim record of a distribution.
func ClaimAddress(distribution, holder crypto.Address) crypto.Address {
	return Derive(TagClaim, distribution, holder)
}

// ProgramAddress is the address of the program configuration record.
func ProgramAddress() crypto.Address { return Derive(TagProgram) }

// CreatorPermitAddress derives the permit record of a creator.
func CreatorPermitAddress(creator crypto.Address) crypto.Address {
	return Derive(TagCreator, creator)
}
