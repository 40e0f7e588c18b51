package pool

import "sharepool/crypto"

// Pool is a fundraising campaign with a fixed capital target and share count.
type Pool struct {
	Address   crypto.Address
	Creator   crypto.Address
	Authority crypto.Address
	Reference crypto.Address
	Mint      crypto.Address
	Seed      uint64
	Shares    uint64
	Minted    uint64
	// Redeemed counts shares burned through ClaimDeposit after closure.
	Redeemed     uint64
	Closed       bool
	StartDate    uint64
	MaturityDate uint64
	APY          uint8
	CreatedAt    uint64
}

// Clone returns a deep copy of the pool.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// SeedComplete reports whether every share has been issued.
func (p *Pool) SeedComplete() bool { return p != nil && p.Minted == p.Shares }

// Available returns the number of shares that can still be bought.
func (p *Pool) Available() uint64 {
	if p == nil || p.Minted >= p.Shares {
		return 0
	}
	return p.Shares - p.Minted
}

// Distribution tracks revenue earmarked for a pool's shareholders.
type Distribution struct {
	Address   crypto.Address
	Pool      crypto.Address
	Authority crypto.Address
	Rewards   uint64
	Claimed   uint64
	CreatedAt uint64
}

func (d *Distribution) Clone() *Distribution {
	if d == nil {
		return nil
	}
	clone := *d
	return &clone
}

// Outstanding is the earmarked amount not yet paid out.
func (d *Distribution) Outstanding() uint64 {
	if d == nil || d.Claimed >= d.Rewards {
		return 0
	}
	return d.Rewards - d.Claimed
}

// HolderClaim is the cumulative amount a holder has claimed from a distribution.
type HolderClaim struct {
	Distribution crypto.Address
	Holder       crypto.Address
	Claimed      uint64
}

func (c *HolderClaim) Clone() *HolderClaim {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ProgramConfig holds the program-wide administrator.
type ProgramConfig struct {
	GrandAuthority crypto.Address
}

func (c *ProgramConfig) Clone() *ProgramConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// CreatorPermit gates pool creation when permits are enforced.
type CreatorPermit struct {
	Creator   crypto.Address
	CanCreate bool
}

func (p *CreatorPermit) Clone() *CreatorPermit {
	if p == nil {
		return nil
	}
	clone := *p
	return &clone
}

// Metadata describes a pool's share token.
type Metadata struct {
	Mint   crypto.Address
	Name   string
	Symbol string
	URI    string
}

func (m *Metadata) Clone() *Metadata {
	if m == nil {
		return nil
	}
	clone := *m
	return &clone
}

const (
	maxNameLength   = 32
	maxSymbolLength = 10
	maxURILength    = 200
)

// CreatePoolParams carries the arguments of CreatePool.
type CreatePoolParams struct {
	Creator      crypto.Address
	Reference    crypto.Address
	Authority    crypto.Address
	Seed         uint64
	Shares       uint64
	Deposit      uint64
	StartDate    uint64
	MaturityDate uint64
	APY          uint8
	Name         string
	Symbol       string
	URI          string
}
