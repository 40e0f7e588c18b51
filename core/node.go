package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"lukechampine.com/blake3"

	"sharepool/core/events"
	nhstate "sharepool/core/state"
	"sharepool/core/tx"
	"sharepool/core/types"
	"sharepool/crypto"
	"sharepool/native/bank"
	"sharepool/native/pool"
	"sharepool/observability"
	"sharepool/observability/otel"
	"sharepool/storage"
)

// CurrencyDecimals is the precision of the base currency mint.
const CurrencyDecimals = 6

var (
	ErrChainID       = errors.New("node: chain id mismatch")
	ErrNonceMismatch = errors.New("node: nonce mismatch")
)

// Config fixes the ledger parameters of a node.
type Config struct {
	ChainID              uint64
	CurrencyMint         crypto.Address
	CurrencyIssuer       crypto.Address
	MinDeposit           uint64
	RequireCreatorPermit bool
}

// Receipt describes a committed instruction.
type Receipt struct {
	Hash   string         `json:"hash"`
	Head   string         `json:"head"`
	Events []*types.Event `json:"events"`
}

// Node executes signed instructions one at a time. Each instruction runs in its
// own storage journal: it either commits as a single batch or leaves no trace.
type Node struct {
	mu      sync.Mutex
	db      storage.Database
	cfg     Config
	emitter events.Emitter
	logger  *slog.Logger
	nowFn   func() int64
}

// NewNode opens a node over db and creates the currency mint on first start.
func NewNode(db storage.Database, cfg Config) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("node: database required")
	}
	if cfg.CurrencyMint.IsZero() || cfg.CurrencyIssuer.IsZero() {
		return nil, fmt.Errorf("node: currency mint and issuer required")
	}
	n := &Node{
		db:      db,
		cfg:     cfg,
		emitter: events.NoopEmitter{},
		logger:  slog.Default(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	journal := storage.NewJournal(db)
	ledger := bank.NewLedger(nhstate.NewManager(journal))
	if _, err := ledger.Mint(cfg.CurrencyMint); errors.Is(err, bank.ErrMintNotFound) {
		if err := ledger.CreateMint(cfg.CurrencyMint, cfg.CurrencyIssuer, CurrencyDecimals); err != nil {
			return nil, err
		}
		if err := journal.Commit(); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return n, nil
}

// SetEmitter configures where committed events are published.
func (n *Node) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		emitter = events.NoopEmitter{}
	}
	n.mu.Lock()
	n.emitter = emitter
	n.mu.Unlock()
}

// SetLogger overrides the structured logger.
func (n *Node) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	n.mu.Lock()
	n.logger = logger
	n.mu.Unlock()
}

// SetNowFunc overrides the time source used for record timestamps.
func (n *Node) SetNowFunc(now func() int64) {
	if now == nil {
		now = func() int64 { return time.Now().Unix() }
	}
	n.mu.Lock()
	n.nowFn = now
	n.mu.Unlock()
}

// Config returns the ledger parameters.
func (n *Node) Config() Config { return n.cfg }

// newEngine wires an engine over one unit of work. now may be nil for
// read-only views.
func (n *Node) newEngine(manager *nhstate.Manager, ledger *bank.Ledger, emitter events.Emitter, now func() int64) *pool.Engine {
	engine := pool.NewEngine()
	engine.SetState(manager)
	engine.SetVault(bank.NewCurrencyVault(ledger, n.cfg.CurrencyMint))
	engine.SetShareLedger(ledger)
	engine.SetEmitter(emitter)
	engine.SetNowFunc(now)
	if n.cfg.MinDeposit > 0 {
		engine.SetMinDeposit(n.cfg.MinDeposit)
	}
	engine.SetRequireCreatorPermit(n.cfg.RequireCreatorPermit)
	return engine
}

// Apply verifies, executes and commits one instruction.
func (n *Node) Apply(ctx context.Context, ins *tx.Instruction) (*Receipt, error) {
	if ins == nil {
		return nil, fmt.Errorf("%w: nil instruction", tx.ErrInvalidParams)
	}
	ctx, span := otel.Tracer().Start(ctx, "Node.Apply")
	defer span.End()
	span.SetAttributes(attribute.String("op", string(ins.Type)), attribute.Int64("nonce", int64(ins.Nonce)))

	start := time.Now()
	receipt, err := n.apply(ctx, ins)
	code := ""
	if err != nil {
		code = ErrorCode(err)
		span.RecordError(err)
		span.SetStatus(codes.Error, code)
	}
	observability.Ledger().Observe(string(ins.Type), code, time.Since(start))
	return receipt, err
}

func (n *Node) apply(ctx context.Context, ins *tx.Instruction) (*Receipt, error) {
	if ins.ChainID != n.cfg.ChainID {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrChainID, ins.ChainID, n.cfg.ChainID)
	}
	signerList, err := ins.Signers()
	if err != nil {
		return nil, err
	}
	hash, err := ins.Hash()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	journal := storage.NewJournal(n.db)
	manager := nhstate.NewManager(journal)
	nonce, err := manager.Nonce(ins.Payer)
	if err != nil {
		return nil, err
	}
	if nonce != ins.Nonce {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrNonceMismatch, ins.Nonce, nonce)
	}

	buf := events.NewBuffer()
	ledger := bank.NewLedger(manager)
	engine := n.newEngine(manager, ledger, buf, n.nowFn)
	if err := n.dispatch(engine, ledger, ins, pool.NewSigners(signerList...)); err != nil {
		journal.Discard()
		n.logger.Warn("instruction rejected",
			slog.String("op", string(ins.Type)),
			slog.String("payer", ins.Payer.String()),
			slog.String("error", err.Error()))
		return nil, err
	}

	prev, err := manager.LedgerHead()
	if err != nil {
		journal.Discard()
		return nil, err
	}
	head := blake3.Sum256(append(prev[:], hash[:]...))
	if err := manager.SetLedgerHead(head); err != nil {
		journal.Discard()
		return nil, err
	}
	if err := manager.SetNonce(ins.Payer, nonce+1); err != nil {
		journal.Discard()
		return nil, err
	}
	if err := journal.Commit(); err != nil {
		return nil, fmt.Errorf("node: commit: %w", err)
	}

	flushed := buf.Flush(n.emitter)
	receipt := &Receipt{
		Hash:   fmt.Sprintf("0x%x", hash),
		Head:   fmt.Sprintf("0x%x", head),
		Events: make([]*types.Event, 0, len(flushed)),
	}
	for _, evt := range flushed {
		if payload, ok := evt.(events.Payload); ok {
			receipt.Events = append(receipt.Events, payload.Event().Clone())
		}
	}
	n.logger.Info("instruction applied",
		slog.String("op", string(ins.Type)),
		slog.String("payer", ins.Payer.String()),
		slog.String("hash", receipt.Hash),
		slog.Int("events", len(receipt.Events)))
	return receipt, nil
}

func requireSigned(signers pool.Signers, addr crypto.Address, role string) error {
	if !signers.Has(addr) {
		return fmt.Errorf("%w: %s", pool.ErrMissingSignature, role)
	}
	return nil
}

func (n *Node) dispatch(engine *pool.Engine, ledger *bank.Ledger, ins *tx.Instruction, signers pool.Signers) error {
	switch ins.Type {
	case tx.TypeCreatePool:
		var p tx.CreatePoolParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.CreatePool(signers, pool.CreatePoolParams{
			Creator:      p.Creator,
			Reference:    p.Reference,
			Authority:    p.Authority,
			Seed:         p.Seed,
			Shares:       p.Shares,
			Deposit:      p.Deposit,
			StartDate:    p.StartDate,
			MaturityDate: p.MaturityDate,
			APY:          p.APY,
			Name:         p.Name,
			Symbol:       p.Symbol,
			URI:          p.URI,
		})
		return err
	case tx.TypeBuyShares:
		var p tx.BuySharesParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.BuyShares(signers, p.Buyer, p.Pool, p.Amount)
		return err
	case tx.TypeDistribute:
		var p tx.DistributeParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.Distribute(signers, p.Authority, p.Pool, p.DistributionAuthority, p.Amount)
		return err
	case tx.TypeClaimRewards:
		var p tx.ClaimRewardsParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.ClaimRewards(signers, p.Holder, p.Pool, p.DistributionAuthority, p.Amount)
		return err
	case tx.TypeWithdrawFromPool:
		var p tx.WithdrawFromPoolParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.WithdrawFromPool(signers, p.Authority, p.Pool, p.Destination, p.Amount)
		return err
	case tx.TypeClosePool:
		var p tx.PoolAuthorityParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.ClosePool(signers, p.Authority, p.Pool)
		return err
	case tx.TypeClosePoolAccounts:
		var p tx.PoolAuthorityParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		return engine.ClosePoolAccounts(signers, p.Authority, p.Pool)
	case tx.TypeClaimDeposit:
		var p tx.ClaimDepositParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, _, err := engine.ClaimDeposit(signers, p.Holder, p.Pool)
		return err
	case tx.TypeInitializeProgram:
		var p tx.InitializeProgramParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.InitializeProgram(signers, ins.Payer, p.GrandAuthority)
		return err
	case tx.TypeUpdateGrandAuthority:
		var p tx.UpdateGrandAuthorityParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.UpdateGrandAuthority(signers, p.GrandAuthority, p.NewAuthority)
		return err
	case tx.TypeAddPoolCreator:
		var p tx.PoolCreatorParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.AddPoolCreator(signers, p.GrandAuthority, p.Creator, p.CanCreate)
		return err
	case tx.TypeUpdatePoolCreator:
		var p tx.PoolCreatorParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		_, err := engine.UpdatePoolCreator(signers, p.GrandAuthority, p.Creator, p.CanCreate)
		return err
	case tx.TypeTransfer:
		var p tx.TransferParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		if err := requireSigned(signers, p.From, "sender"); err != nil {
			return err
		}
		if p.To.IsZero() {
			return fmt.Errorf("%w: recipient required", pool.ErrInvalidInput)
		}
		return ledger.Transfer(n.cfg.CurrencyMint, p.From, p.To, p.Amount)
	case tx.TypeMintCurrency:
		var p tx.MintCurrencyParams
		if err := ins.DecodeParams(&p); err != nil {
			return err
		}
		if err := requireSigned(signers, n.cfg.CurrencyIssuer, "currency issuer"); err != nil {
			return err
		}
		if p.To.IsZero() {
			return fmt.Errorf("%w: recipient required", pool.ErrInvalidInput)
		}
		if err := ledger.OpenAccount(n.cfg.CurrencyMint, p.To); err != nil {
			return err
		}
		return ledger.MintTo(n.cfg.CurrencyMint, p.To, p.Amount)
	default:
		return fmt.Errorf("%w: %q", tx.ErrUnknownType, ins.Type)
	}
}
