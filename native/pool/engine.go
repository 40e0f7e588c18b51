package pool

import (
	"time"

	"sharepool/core/events"
	"sharepool/core/types"
	"sharepool/crypto"
)

// DefaultMinDeposit is the smallest creator deposit accepted by CreatePool, in
// base currency units (100 units of a six-decimal currency).
const DefaultMinDeposit uint64 = 100_000_000

type engineState interface {
	PoolGet(addr crypto.Address) (*Pool, bool, error)
	PoolPut(pool *Pool) error
	PoolDelete(addr crypto.Address) error
	DistributionGet(addr crypto.Address) (*Distribution, bool, error)
	DistributionPut(dist *Distribution) error
	DistributionDelete(addr crypto.Address) error
	HolderClaimGet(distribution, holder crypto.Address) (*HolderClaim, bool, error)
	HolderClaimPut(claim *HolderClaim) error
	ReferenceUsed(reference crypto.Address) (bool, error)
	MarkReferenceUsed(reference crypto.Address) error
	MetadataGet(mint crypto.Address) (*Metadata, bool, error)
	MetadataPut(meta *Metadata) error
	MetadataDelete(mint crypto.Address) error
	ProgramConfigGet() (*ProgramConfig, bool, error)
	ProgramConfigPut(cfg *ProgramConfig) error
	CreatorPermitGet(creator crypto.Address) (*CreatorPermit, bool, error)
	CreatorPermitPut(permit *CreatorPermit) error
}

// Engine implements the pool lifecycle and distribution accounting. Every
// operation validates all preconditions before it touches the vault or the share
// ledger; the host is expected to run each call inside one unit of work.
type Engine struct {
	state         engineState
	vault         Vault
	shares        ShareLedger
	emitter       events.Emitter
	nowFn         func() int64
	minDeposit    uint64
	requirePermit bool
}

// NewEngine constructs a pool engine with default dependencies.
func NewEngine() *Engine {
	return &Engine{
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
		minDeposit: DefaultMinDeposit,
	}
}

// SetState configures the state backend used by the engine.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetVault configures the currency vault collaborator.
func (e *Engine) SetVault(vault Vault) { e.vault = vault }

// SetShareLedger configures the share balance collaborator.
func (e *Engine) SetShareLedger(shares ShareLedger) { e.shares = shares }

// SetEmitter configures the event emitter used by the engine.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source used for deterministic testing.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

// SetMinDeposit overrides the minimum creator deposit.
func (e *Engine) SetMinDeposit(amount uint64) { e.minDeposit = amount }

// SetRequireCreatorPermit toggles enforcement of creator permits in CreatePool.
func (e *Engine) SetRequireCreatorPermit(required bool) { e.requirePermit = required }

func (e *Engine) emit(evt *types.Event) {
	if e == nil || evt == nil || e.emitter == nil {
		return
	}
	e.emitter.Emit(WrapEvent(evt))
}

func (e *Engine) now() uint64 {
	if e == nil || e.nowFn == nil {
		return uint64(time.Now().Unix())
	}
	ts := e.nowFn()
	if ts < 0 {
		return 0
	}
	return uint64(ts)
}

func (e *Engine) ready() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.vault == nil:
		return errNilVault
	case e.shares == nil:
		return errNilShares
	}
	return nil
}

func (e *Engine) loadPool(addr crypto.Address) (*Pool, error) {
	pool, ok, err := e.state.PoolGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || pool == nil {
		return nil, ErrPoolNotFound
	}
	return pool, nil
}

func (e *Engine) requireFunds(owner crypto.Address, amount uint64) error {
	balance, err := e.vault.BalanceOf(owner)
	if err != nil {
		return err
	}
	if balance < amount {
		return ErrInsufficientFunds
	}
	return nil
}

// Pool returns the pool stored at addr.
func (e *Engine) Pool(addr crypto.Address) (*Pool, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	return e.loadPool(addr)
}

// Distribution returns the distribution of the pool at addr.
func (e *Engine) Distribution(pool crypto.Address) (*Distribution, bool, error) {
	if e == nil || e.state == nil {
		return nil, false, errNilState
	}
	return e.state.DistributionGet(DistributionAddress(pool))
}
