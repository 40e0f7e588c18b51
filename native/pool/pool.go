package pool

import (
	"fmt"
	"strings"

	"sharepool/crypto"
)

func validateMetadata(p *CreatePoolParams) error {
	if len(p.Name) > maxNameLength || len(p.Symbol) > maxSymbolLength || len(p.URI) > maxURILength {
		return fmt.Errorf("%w: metadata too long", ErrInvalidInput)
	}
	return nil
}

// CreatePool allocates a pool for reference, moves the creator's deposit into
// the capital vault and issues the matching shares to the creator.
func (e *Engine) CreatePool(signers Signers, params CreatePoolParams) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, params.Creator, "creator"); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, params.Reference, "reference"); err != nil {
		return nil, err
	}
	if params.Seed == 0 || params.Shares == 0 {
		return nil, fmt.Errorf("%w: seed and shares must be positive", ErrInvalidInput)
	}
	if params.Seed%params.Shares != 0 {
		return nil, fmt.Errorf("%w: seed must be divisible by shares", ErrInvalidInput)
	}
	if params.Authority.IsZero() {
		return nil, fmt.Errorf("%w: authority required", ErrInvalidInput)
	}
	if params.APY > 100 {
		return nil, fmt.Errorf("%w: apy above 100", ErrInvalidInput)
	}
	if params.StartDate != 0 && params.MaturityDate != 0 && params.MaturityDate < params.StartDate {
		return nil, fmt.Errorf("%w: maturity before start", ErrInvalidInput)
	}
	params.Name = strings.TrimSpace(params.Name)
	params.Symbol = strings.TrimSpace(params.Symbol)
	params.URI = strings.TrimSpace(params.URI)
	if err := validateMetadata(&params); err != nil {
		return nil, err
	}
	if e.requirePermit {
		permit, ok, err := e.state.CreatorPermitGet(params.Creator)
		if err != nil {
			return nil, err
		}
		if !ok || permit == nil || !permit.CanCreate {
			return nil, ErrCreatorNotAuthorized
		}
	}
	if params.Deposit < e.minDeposit {
		return nil, fmt.Errorf("%w: deposit below minimum %d", ErrInvalidDeposit, e.minDeposit)
	}
	price, err := PricePerShare(params.Seed, params.Shares)
	if err != nil {
		return nil, err
	}
	if params.Deposit%price != 0 {
		return nil, fmt.Errorf("%w: deposit must be a multiple of %d", ErrInvalidDeposit, price)
	}
	minted, err := SharesForDeposit(params.Deposit, params.Seed, params.Shares)
	if err != nil {
		return nil, err
	}
	if minted > params.Shares {
		return nil, fmt.Errorf("%w: deposit buys %d of %d shares", ErrInvalidDeposit, minted, params.Shares)
	}

	used, err := e.state.ReferenceUsed(params.Reference)
	if err != nil {
		return nil, err
	}
	addr := PoolAddress(params.Reference)
	if _, exists, err := e.state.PoolGet(addr); err != nil {
		return nil, err
	} else if used || exists {
		return nil, ErrReferenceUsed
	}
	if err := e.requireFunds(params.Creator, params.Deposit); err != nil {
		return nil, err
	}

	pool := &Pool{
		Address:      addr,
		Creator:      params.Creator,
		Authority:    params.Authority,
		Reference:    params.Reference,
		Mint:         MintAddress(addr),
		Seed:         params.Seed,
		Shares:       params.Shares,
		Minted:       minted,
		StartDate:    params.StartDate,
		MaturityDate: params.MaturityDate,
		APY:          params.APY,
		CreatedAt:    e.now(),
	}
	if err := e.shares.CreateMint(pool.Mint, pool.Address, 0); err != nil {
		return nil, err
	}
	if err := e.shares.OpenAccount(pool.Mint, pool.Creator); err != nil {
		return nil, err
	}
	if err := e.vault.Transfer(pool.Creator, pool.Address, params.Deposit); err != nil {
		return nil, err
	}
	if err := e.state.MetadataPut(&Metadata{Mint: pool.Mint, Name: params.Name, Symbol: params.Symbol, URI: params.URI}); err != nil {
		return nil, err
	}
	if minted > 0 {
		if err := e.shares.MintTo(pool.Mint, pool.Creator, minted); err != nil {
			return nil, err
		}
	}
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	if err := e.state.MarkReferenceUsed(pool.Reference); err != nil {
		return nil, err
	}
	e.emit(PoolCreatedEvent(pool, params.Deposit))
	return pool.Clone(), nil
}

// BuyShares sells amount shares to buyer at the pool's fixed price.
func (e *Engine) BuyShares(signers Signers, buyer, poolAddr crypto.Address, amount uint64) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, buyer, "buyer"); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	if pool.Closed {
		return nil, ErrPoolClosed
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount > pool.Available() {
		return nil, ErrExceedsAvailableShares
	}
	cost, err := CostForShares(amount, pool.Seed, pool.Shares)
	if err != nil {
		return nil, err
	}
	if err := e.requireFunds(buyer, cost); err != nil {
		return nil, err
	}
	if err := e.shares.OpenAccount(pool.Mint, buyer); err != nil {
		return nil, err
	}
	if err := e.vault.Transfer(buyer, pool.Address, cost); err != nil {
		return nil, err
	}
	if err := e.shares.MintTo(pool.Mint, buyer, amount); err != nil {
		return nil, err
	}
	pool.Minted += amount
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(SharesPurchasedEvent(pool.Address, buyer, amount, cost, pool.Minted))
	return pool.Clone(), nil
}

// WithdrawFromPool pays the capital backing amount shares to destination once
// the seed round is complete. A zero destination pays the authority.
func (e *Engine) WithdrawFromPool(signers Signers, authority, poolAddr, destination crypto.Address, amount uint64) (uint64, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if err := requireSigner(signers, authority, "authority"); err != nil {
		return 0, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return 0, err
	}
	if err := requireAddress(authority, pool.Authority, "pool authority"); err != nil {
		return 0, err
	}
	if pool.Closed {
		return 0, ErrPoolClosed
	}
	if amount == 0 {
		return 0, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if !pool.SeedComplete() {
		return 0, ErrSeedRoundsNotCompleted
	}
	payout, err := PayoutForShares(amount, pool.Seed, pool.Shares)
	if err != nil {
		return 0, err
	}
	balance, err := e.vault.BalanceOf(pool.Address)
	if err != nil {
		return 0, err
	}
	if payout > balance {
		return 0, ErrInsufficientPoolBalance
	}
	if destination.IsZero() {
		destination = authority
	}
	if err := e.vault.Transfer(pool.Address, destination, payout); err != nil {
		return 0, err
	}
	e.emit(CapitalWithdrawnEvent(pool.Address, destination, amount, payout))
	return payout, nil
}

// ClosePool stops all issuance, withdrawal and distribution on the pool. The
// distribution record must exist, even if it was created with a zero amount.
func (e *Engine) ClosePool(signers Signers, authority, poolAddr crypto.Address) (*Pool, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, authority, "authority"); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	if err := requireAddress(authority, pool.Authority, "pool authority"); err != nil {
		return nil, err
	}
	if _, ok, err := e.state.DistributionGet(DistributionAddress(pool.Address)); err != nil {
		return nil, err
	} else if !ok {
		return nil, fmt.Errorf("%w: distribution", ErrAccountNotInitialized)
	}
	if pool.Closed {
		return nil, ErrPoolClosed
	}
	pool.Closed = true
	if err := e.state.PoolPut(pool); err != nil {
		return nil, err
	}
	e.emit(PoolClosedEvent(pool.Address))
	return pool.Clone(), nil
}

// ClosePoolAccounts destroys a closed, fully unwound pool together with its
// distribution, metadata, vault accounts and share mint. The reference stays
// tombstoned.
//
// While shares are outstanding the capital vault must be empty and every reward
// claimed. Once every share is redeemed no holder can claim or redeem anything
// more, so rounding dust left in the distribution vault goes back to the
// distribution authority and anything left in the capital vault goes to the
// pool authority.
func (e *Engine) ClosePoolAccounts(signers Signers, authority, poolAddr crypto.Address) error {
	if err := e.ready(); err != nil {
		return err
	}
	if err := requireSigner(signers, authority, "authority"); err != nil {
		return err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return err
	}
	if err := requireAddress(authority, pool.Authority, "pool authority"); err != nil {
		return err
	}
	if !pool.Closed {
		return ErrPoolNotClosed
	}
	distAddr := DistributionAddress(pool.Address)
	dist, ok, err := e.state.DistributionGet(distAddr)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: distribution", ErrAccountNotInitialized)
	}
	poolBalance, err := e.vault.BalanceOf(pool.Address)
	if err != nil {
		return err
	}
	if pool.Redeemed != pool.Minted {
		if poolBalance != 0 {
			return ErrNonZeroPoolBalance
		}
		if dist.Claimed != dist.Rewards {
			return ErrUnclaimedRewards
		}
		return fmt.Errorf("%w: %d of %d shares redeemed", ErrSharesOutstanding, pool.Redeemed, pool.Minted)
	}
	distBalance, err := e.vault.BalanceOf(distAddr)
	if err != nil {
		return err
	}
	if distBalance > 0 {
		if err := e.vault.Transfer(distAddr, dist.Authority, distBalance); err != nil {
			return err
		}
	}
	if poolBalance > 0 {
		if err := e.vault.Transfer(pool.Address, pool.Authority, poolBalance); err != nil {
			return err
		}
	}

	if err := e.vault.Close(pool.Address); err != nil {
		return err
	}
	if err := e.vault.Close(distAddr); err != nil {
		return err
	}
	if err := e.shares.CloseMint(pool.Mint); err != nil {
		return err
	}
	if err := e.state.MetadataDelete(pool.Mint); err != nil {
		return err
	}
	if err := e.state.DistributionDelete(distAddr); err != nil {
		return err
	}
	if err := e.state.PoolDelete(pool.Address); err != nil {
		return err
	}
	e.emit(PoolAccountsClosedEvent(pool.Address, pool.Reference, poolBalance, distBalance))
	return nil
}

// ClaimDeposit burns the holder's whole share balance of a closed pool and pays
// the holder's pro-rata part of whatever capital is left in the vault. The last
// holder to redeem receives the remainder. Rewards the holder is still entitled
// to are paid out first.
func (e *Engine) ClaimDeposit(signers Signers, holder, poolAddr crypto.Address) (burned, refund uint64, err error) {
	if err := e.ready(); err != nil {
		return 0, 0, err
	}
	if err := requireSigner(signers, holder, "holder"); err != nil {
		return 0, 0, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return 0, 0, err
	}
	if !pool.Closed {
		return 0, 0, ErrPoolNotClosed
	}
	exists, err := e.shares.AccountExists(pool.Mint, holder)
	if err != nil {
		return 0, 0, err
	}
	if !exists {
		return 0, 0, fmt.Errorf("%w: holder share account", ErrAccountNotInitialized)
	}
	burned, err = e.shares.BalanceOf(pool.Mint, holder)
	if err != nil {
		return 0, 0, err
	}
	if burned == 0 {
		return 0, 0, fmt.Errorf("%w: no shares to redeem", ErrInvalidInput)
	}
	outstanding := pool.Minted - pool.Redeemed
	if burned > outstanding {
		return 0, 0, fmt.Errorf("%w: balance exceeds outstanding shares", ErrInvalidInput)
	}
	if _, err := e.settleRewards(pool, holder, burned); err != nil {
		return 0, 0, err
	}
	capital, err := e.vault.BalanceOf(pool.Address)
	if err != nil {
		return 0, 0, err
	}
	refund = capital
	if burned < outstanding {
		if refund, err = mulDiv(capital, burned, outstanding); err != nil {
			return 0, 0, err
		}
	}
	if err := e.shares.Burn(pool.Mint, holder, burned); err != nil {
		return 0, 0, err
	}
	if refund > 0 {
		if err := e.vault.Transfer(pool.Address, holder, refund); err != nil {
			return 0, 0, err
		}
	}
	pool.Redeemed += burned
	if err := e.state.PoolPut(pool); err != nil {
		return 0, 0, err
	}
	e.emit(DepositClaimedEvent(pool.Address, holder, burned, refund))
	return burned, refund, nil
}
