package bank

import "sharepool/crypto"

// Mint describes a token class. The base currency and every pool's shares are
// mints of their own.
type Mint struct {
	Address   crypto.Address
	Authority crypto.Address
	Supply    uint64
	Decimals  uint8
}

func (m *Mint) Clone() *Mint {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

// TokenAccount is the balance of one owner for one mint.
type TokenAccount struct {
	Mint   crypto.Address
	Owner  crypto.Address
	Amount uint64
}

func (a *TokenAccount) Clone() *TokenAccount {
	if a == nil {
		return nil
	}
	clone := *a
	return &clone
}
