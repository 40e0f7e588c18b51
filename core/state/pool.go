package state

import (
	"fmt"

	"sharepool/crypto"
	"sharepool/native/pool"
)

type storedPool struct {
	Address      [20]byte
	Creator      [20]byte
	Authority    [20]byte
	Reference    [20]byte
	Mint         [20]byte
	Seed         uint64
	Shares       uint64
	Minted       uint64
	Redeemed     uint64
	Closed       bool
	StartDate    uint64
	MaturityDate uint64
	APY          uint8
	CreatedAt    uint64
}

func newStoredPool(p *pool.Pool) *storedPool {
	return &storedPool{
		Address:      p.Address,
		Creator:      p.Creator,
		Authority:    p.Authority,
		Reference:    p.Reference,
		Mint:         p.Mint,
		Seed:         p.Seed,
		Shares:       p.Shares,
		Minted:       p.Minted,
		Redeemed:     p.Redeemed,
		Closed:       p.Closed,
		StartDate:    p.StartDate,
		MaturityDate: p.MaturityDate,
		APY:          p.APY,
		CreatedAt:    p.CreatedAt,
	}
}

func (s *storedPool) toPool() (*pool.Pool, error) {
	if s.Minted > s.Shares || s.Redeemed > s.Minted {
		return nil, fmt.Errorf("state: corrupt pool record %x", s.Address)
	}
	return &pool.Pool{
		Address:      s.Address,
		Creator:      s.Creator,
		Authority:    s.Authority,
		Reference:    s.Reference,
		Mint:         s.Mint,
		Seed:         s.Seed,
		Shares:       s.Shares,
		Minted:       s.Minted,
		Redeemed:     s.Redeemed,
		Closed:       s.Closed,
		StartDate:    s.StartDate,
		MaturityDate: s.MaturityDate,
		APY:          s.APY,
		CreatedAt:    s.CreatedAt,
	}, nil
}

type storedDistribution struct {
	Address   [20]byte
	Pool      [20]byte
	Authority [20]byte
	Rewards   uint64
	Claimed   uint64
	CreatedAt uint64
}

func (m *Manager) PoolGet(addr crypto.Address) (*pool.Pool, bool, error) {
	var stored storedPool
	ok, err := m.getRecord(storageKey(poolPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	p, err := stored.toPool()
	if err != nil {
		return nil, false, err
	}
	return p, true, nil
}

func (m *Manager) PoolPut(p *pool.Pool) error {
	if p == nil {
		return fmt.Errorf("state: nil pool")
	}
	return m.putRecord(storageKey(poolPrefix, p.Address[:]), newStoredPool(p))
}

func (m *Manager) PoolDelete(addr crypto.Address) error {
	return m.deleteRecord(storageKey(poolPrefix, addr[:]))
}

func (m *Manager) DistributionGet(addr crypto.Address) (*pool.Distribution, bool, error) {
	var stored storedDistribution
	ok, err := m.getRecord(storageKey(distributionPrefix, addr[:]), &stored)
	if err != nil || !ok {
		return nil, false, err
	}
	if stored.Claimed > stored.Rewards {
		return nil, false, fmt.Errorf("state: corrupt distribution record %x", stored.Address)
	}
	return &pool.Distribution{
		Address:   stored.Address,
		Pool:      stored.Pool,
		Authority: stored.Authority,
		Rewards:   stored.Rewards,
		Claimed:   stored.Claimed,
		CreatedAt: stored.CreatedAt,
	}, true, nil
}

func (m *Manager) DistributionPut(d *pool.Distribution) error {
	if d == nil {
		return fmt.Errorf("state: nil distribution")
	}
	return m.putRecord(storageKey(distributionPrefix, d.Address[:]), &storedDistribution{
		Address:   d.Address,
		Pool:      d.Pool,
		Authority: d.Authority,
		Rewards:   d.Rewards,
		Claimed:   d.Claimed,
		CreatedAt: d.CreatedAt,
	})
}

func (m *Manager) DistributionDelete(addr crypto.Address) error {
	return m.deleteRecord(storageKey(distributionPrefix, addr[:]))
}

func (m *Manager) HolderClaimGet(dist, holder crypto.Address) (*pool.HolderClaim, bool, error) {
	claim := new(pool.HolderClaim)
	ok, err := m.getRecord(storageKey(holderClaimPrefix, dist[:], holder[:]), claim)
	if err != nil || !ok {
		return nil, false, err
	}
	return claim, true, nil
}

func (m *Manager) HolderClaimPut(c *pool.HolderClaim) error {
	if c == nil {
		return fmt.Errorf("state: nil holder claim")
	}
	return m.putRecord(storageKey(holderClaimPrefix, c.Distribution[:], c.Holder[:]), c)
}

// ReferenceUsed reports whether reference ever seeded a pool. Tombstones are
// never removed, not even by pool teardown.
func (m *Manager) ReferenceUsed(reference crypto.Address) (bool, error) {
	var marker uint8
	return m.getRecord(storageKey(referencePrefix, reference[:]), &marker)
}

func (m *Manager) MarkReferenceUsed(reference crypto.Address) error {
	return m.putRecord(storageKey(referencePrefix, reference[:]), uint8(1))
}

func (m *Manager) MetadataGet(mint crypto.Address) (*pool.Metadata, bool, error) {
	meta := new(pool.Metadata)
	ok, err := m.getRecord(storageKey(metadataPrefix, mint[:]), meta)
	if err != nil || !ok {
		return nil, false, err
	}
	return meta, true, nil
}

func (m *Manager) MetadataPut(meta *pool.Metadata) error {
	if meta == nil {
		return fmt.Errorf("state: nil metadata")
	}
	return m.putRecord(storageKey(metadataPrefix, meta.Mint[:]), meta)
}

func (m *Manager) MetadataDelete(mint crypto.Address) error {
	return m.deleteRecord(storageKey(metadataPrefix, mint[:]))
}

func (m *Manager) ProgramConfigGet() (*pool.ProgramConfig, bool, error) {
	cfg := new(pool.ProgramConfig)
	ok, err := m.getRecord(storageKey(programConfigKey), cfg)
	if err != nil || !ok {
		return nil, false, err
	}
	return cfg, true, nil
}

func (m *Manager) ProgramConfigPut(cfg *pool.ProgramConfig) error {
	if cfg == nil {
		return fmt.Errorf("state: nil program config")
	}
	return m.putRecord(storageKey(programConfigKey), cfg)
}

func (m *Manager) CreatorPermitGet(creator crypto.Address) (*pool.CreatorPermit, bool, error) {
	permit := new(pool.CreatorPermit)
	ok, err := m.getRecord(storageKey(creatorPermitPrefix, creator[:]), permit)
	if err != nil || !ok {
		return nil, false, err
	}
	return permit, true, nil
}

func (m *Manager) CreatorPermitPut(permit *pool.CreatorPermit) error {
	if permit == nil {
		return fmt.Errorf("state: nil creator permit")
	}
	return m.putRecord(storageKey(creatorPermitPrefix, permit.Creator[:]), permit)
}
