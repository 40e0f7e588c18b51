package pool

import "sharepool/crypto"

// Vault moves base currency between balance holders. Pools and distributions
// hold their funds in vault accounts owned by their own addresses.
type Vault interface {
	BalanceOf(owner crypto.Address) (uint64, error)
	// Transfer fails without effect if from holds less than amount.
	Transfer(from, to crypto.Address, amount uint64) error
	// Close removes an empty vault account.
	Close(owner crypto.Address) error
}

// ShareLedger tracks per-holder share balances keyed by (mint, holder).
type ShareLedger interface {
	CreateMint(mint, authority crypto.Address, decimals uint8) error
	CloseMint(mint crypto.Address) error
	AccountExists(mint, holder crypto.Address) (bool, error)
	// OpenAccount creates the holder account if it does not exist yet.
	OpenAccount(mint, holder crypto.Address) error
	BalanceOf(mint, holder crypto.Address) (uint64, error)
	MintTo(mint, holder crypto.Address, amount uint64) error
	Burn(mint, holder crypto.Address, amount uint64) error
}
