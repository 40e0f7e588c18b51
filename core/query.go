package core

import (
	"errors"
	"fmt"

	nhstate "sharepool/core/state"
	"sharepool/crypto"
	"sharepool/native/bank"
	"sharepool/native/pool"
	"sharepool/storage"
)

// ErrNotFound is returned by queries for records that do not exist.
var ErrNotFound = errors.New("node: not found")

// snapshot opens a read view over committed state.
func (n *Node) snapshot() (*nhstate.Manager, *bank.Ledger, *pool.Engine) {
	manager := nhstate.NewManager(storage.NewJournal(n.db))
	ledger := bank.NewLedger(manager)
	return manager, ledger, n.newEngine(manager, ledger, nil, nil)
}

// Pool returns the pool record stored at addr.
func (n *Node) Pool(addr crypto.Address) (*pool.Pool, error) {
	_, _, engine := n.snapshot()
	return engine.Pool(addr)
}

// Distribution returns the distribution of a pool.
func (n *Node) Distribution(poolAddr crypto.Address) (*pool.Distribution, error) {
	_, _, engine := n.snapshot()
	dist, ok, err := engine.Distribution(poolAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: distribution for %s", ErrNotFound, poolAddr)
	}
	return dist, nil
}

// HolderClaim returns the cumulative rewards claimed by holder from a pool.
func (n *Node) HolderClaim(poolAddr, holder crypto.Address) (*pool.HolderClaim, error) {
	_, _, engine := n.snapshot()
	return engine.HolderClaim(poolAddr, holder)
}

// Metadata returns the display metadata of a share mint.
func (n *Node) Metadata(mint crypto.Address) (*pool.Metadata, error) {
	manager, _, _ := n.snapshot()
	meta, ok, err := manager.MetadataGet(mint)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: metadata for %s", ErrNotFound, mint)
	}
	return meta, nil
}

// Balance returns the amount of mint held by owner. Unopened accounts hold zero.
func (n *Node) Balance(mint, owner crypto.Address) (uint64, error) {
	_, ledger, _ := n.snapshot()
	exists, err := ledger.AccountExists(mint, owner)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}
	return ledger.BalanceOf(mint, owner)
}

// Nonce returns the next nonce expected from addr.
func (n *Node) Nonce(addr crypto.Address) (uint64, error) {
	manager, _, _ := n.snapshot()
	return manager.Nonce(addr)
}

// Head returns the digest chaining every committed instruction.
func (n *Node) Head() ([32]byte, error) {
	manager, _, _ := n.snapshot()
	return manager.LedgerHead()
}

// ProgramConfig returns the program record, if initialised.
func (n *Node) ProgramConfig() (*pool.ProgramConfig, error) {
	manager, _, _ := n.snapshot()
	cfg, ok, err := manager.ProgramConfigGet()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: program config", ErrNotFound)
	}
	return cfg, nil
}
