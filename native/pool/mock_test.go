package pool

import (
	"fmt"

	"sharepool/crypto"
)

type mockState struct {
	pools    map[crypto.Address]*Pool
	dists    map[crypto.Address]*Distribution
	claims   map[[2]crypto.Address]*HolderClaim
	refs     map[crypto.Address]bool
	metadata map[crypto.Address]*Metadata
	program  *ProgramConfig
	permits  map[crypto.Address]*CreatorPermit
}

func newMockState() *mockState {
	return &mockState{
		pools:    make(map[crypto.Address]*Pool),
		dists:    make(map[crypto.Address]*Distribution),
		claims:   make(map[[2]crypto.Address]*HolderClaim),
		refs:     make(map[crypto.Address]bool),
		metadata: make(map[crypto.Address]*Metadata),
		permits:  make(map[crypto.Address]*CreatorPermit),
	}
}

func (m *mockState) PoolGet(addr crypto.Address) (*Pool, bool, error) {
	p, ok := m.pools[addr]
	return p.Clone(), ok, nil
}

func (m *mockState) PoolPut(p *Pool) error {
	m.pools[p.Address] = p.Clone()
	return nil
}

func (m *mockState) PoolDelete(addr crypto.Address) error {
	delete(m.pools, addr)
	return nil
}

func (m *mockState) DistributionGet(addr crypto.Address) (*Distribution, bool, error) {
	d, ok := m.dists[addr]
	return d.Clone(), ok, nil
}

func (m *mockState) DistributionPut(d *Distribution) error {
	m.dists[d.Address] = d.Clone()
	return nil
}

func (m *mockState) DistributionDelete(addr crypto.Address) error {
	delete(m.dists, addr)
	return nil
}

func (m *mockState) HolderClaimGet(dist, holder crypto.Address) (*HolderClaim, bool, error) {
	c, ok := m.claims[[2]crypto.Address{dist, holder}]
	return c.Clone(), ok, nil
}

func (m *mockState) HolderClaimPut(c *HolderClaim) error {
	m.claims[[2]crypto.Address{c.Distribution, c.Holder}] = c.Clone()
	return nil
}

func (m *mockState) ReferenceUsed(ref crypto.Address) (bool, error) { return m.refs[ref], nil }

func (m *mockState) MarkReferenceUsed(ref crypto.Address) error {
	m.refs[ref] = true
	return nil
}

func (m *mockState) MetadataGet(mint crypto.Address) (*Metadata, bool, error) {
	md, ok := m.metadata[mint]
	return md.Clone(), ok, nil
}

func (m *mockState) MetadataPut(md *Metadata) error {
	m.metadata[md.Mint] = md.Clone()
	return nil
}

func (m *mockState) MetadataDelete(mint crypto.Address) error {
	delete(m.metadata, mint)
	return nil
}

func (m *mockState) ProgramConfigGet() (*ProgramConfig, bool, error) {
	return m.program.Clone(), m.program != nil, nil
}

func (m *mockState) ProgramConfigPut(cfg *ProgramConfig) error {
	m.program = cfg.Clone()
	return nil
}

func (m *mockState) CreatorPermitGet(creator crypto.Address) (*CreatorPermit, bool, error) {
	p, ok := m.permits[creator]
	return p.Clone(), ok, nil
}

func (m *mockState) CreatorPermitPut(p *CreatorPermit) error {
	m.permits[p.Creator] = p.Clone()
	return nil
}

// mockLedger backs both the currency vault and the share ledger.
type mockLedger struct {
	currency map[crypto.Address]uint64
	mints    map[crypto.Address]uint64
	shares   map[[2]crypto.Address]uint64
	open     map[[2]crypto.Address]bool
}

func newMockLedger() *mockLedger {
	return &mockLedger{
		currency: make(map[crypto.Address]uint64),
		mints:    make(map[crypto.Address]uint64),
		shares:   make(map[[2]crypto.Address]uint64),
		open:     make(map[[2]crypto.Address]bool),
	}
}

func (l *mockLedger) BalanceOf(owner crypto.Address) (uint64, error) { return l.currency[owner], nil }

func (l *mockLedger) Transfer(from, to crypto.Address, amount uint64) error {
	if l.currency[from] < amount {
		return fmt.Errorf("mock ledger: insufficient funds")
	}
	l.currency[from] -= amount
	l.currency[to] += amount
	return nil
}

func (l *mockLedger) Close(owner crypto.Address) error {
	if l.currency[owner] != 0 {
		return fmt.Errorf("mock ledger: non-zero balance")
	}
	delete(l.currency, owner)
	return nil
}

type mockShares struct{ *mockLedger }

func (s mockShares) CreateMint(mint, _ crypto.Address, _ uint8) error {
	if _, ok := s.mints[mint]; ok {
		return fmt.Errorf("mock ledger: mint exists")
	}
	s.mints[mint] = 0
	return nil
}

func (s mockShares) CloseMint(mint crypto.Address) error {
	if s.mints[mint] != 0 {
		return fmt.Errorf("mock ledger: supply outstanding")
	}
	delete(s.mints, mint)
	return nil
}

func (s mockShares) AccountExists(mint, holder crypto.Address) (bool, error) {
	return s.open[[2]crypto.Address{mint, holder}], nil
}

func (s mockShares) OpenAccount(mint, holder crypto.Address) error {
	s.open[[2]crypto.Address{mint, holder}] = true
	return nil
}

func (s mockShares) BalanceOf(mint, holder crypto.Address) (uint64, error) {
	return s.shares[[2]crypto.Address{mint, holder}], nil
}

func (s mockShares) MintTo(mint, holder crypto.Address, amount uint64) error {
	key := [2]crypto.Address{mint, holder}
	if !s.open[key] {
		return fmt.Errorf("mock ledger: account not open")
	}
	s.shares[key] += amount
	s.mints[mint] += amount
	return nil
}

func (s mockShares) Burn(mint, holder crypto.Address, amount uint64) error {
	key := [2]crypto.Address{mint, holder}
	if s.shares[key] < amount {
		return fmt.Errorf("mock ledger: insufficient shares")
	}
	s.shares[key] -= amount
	s.mints[mint] -= amount
	return nil
}
