package pool

import (
	"fmt"

	"sharepool/crypto"
)

// Distribute earmarks amount of the distribution vault as claimable by the
// pool's holders. The first call creates the distribution and binds its
// authority; later calls must present the same authority. No funds move: the
// vault must already hold every outstanding reward plus amount.
func (e *Engine) Distribute(signers Signers, caller, poolAddr, distAuthority crypto.Address, amount uint64) (*Distribution, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, caller, "pool authority"); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, distAuthority, "distribution authority"); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	if err := requireAddress(caller, pool.Authority, "pool authority"); err != nil {
		return nil, err
	}
	if pool.Closed {
		return nil, ErrPoolClosed
	}
	distAddr := DistributionAddress(pool.Address)
	dist, exists, err := e.state.DistributionGet(distAddr)
	if err != nil {
		return nil, err
	}
	if exists {
		if err := requireAddress(distAuthority, dist.Authority, "distribution authority"); err != nil {
			return nil, err
		}
	} else {
		dist = &Distribution{
			Address:   distAddr,
			Pool:      pool.Address,
			Authority: distAuthority,
			CreatedAt: e.now(),
		}
	}
	required, err := addChecked(dist.Outstanding(), amount)
	if err != nil {
		return nil, err
	}
	balance, err := e.vault.BalanceOf(distAddr)
	if err != nil {
		return nil, err
	}
	if balance < required {
		return nil, fmt.Errorf("%w: vault holds %d, needs %d", ErrInsufficientDistributionBalance, balance, required)
	}
	if dist.Rewards, err = addChecked(dist.Rewards, amount); err != nil {
		return nil, err
	}
	if err := e.state.DistributionPut(dist); err != nil {
		return nil, err
	}
	e.emit(DistributionFundedEvent(dist, amount))
	return dist.Clone(), nil
}

// ClaimRewards pays amount from the distribution vault to holder. A holder may
// claim at most rewards * held / minted over the lifetime of the distribution.
func (e *Engine) ClaimRewards(signers Signers, holder, poolAddr, authority crypto.Address, amount uint64) (*HolderClaim, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, holder, "holder"); err != nil {
		return nil, err
	}
	if err := requireSigner(signers, authority, "distribution authority"); err != nil {
		return nil, err
	}
	pool, err := e.loadPool(poolAddr)
	if err != nil {
		return nil, err
	}
	distAddr := DistributionAddress(pool.Address)
	dist, ok, err := e.state.DistributionGet(distAddr)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: distribution", ErrAccountNotInitialized)
	}
	if err := requireAddress(authority, dist.Authority, "distribution authority"); err != nil {
		return nil, err
	}
	exists, err := e.shares.AccountExists(pool.Mint, holder)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: holder share account", ErrAccountNotInitialized)
	}
	if amount == 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if amount > dist.Outstanding() {
		return nil, ErrInsufficientDistributionBalance
	}
	balance, err := e.vault.BalanceOf(distAddr)
	if err != nil {
		return nil, err
	}
	if balance < amount {
		return nil, ErrInsufficientDistributionBalance
	}
	held, err := e.shares.BalanceOf(pool.Mint, holder)
	if err != nil {
		return nil, err
	}
	entitled, err := Entitlement(dist.Rewards, held, pool.Minted)
	if err != nil {
		return nil, err
	}
	claim, ok, err := e.state.HolderClaimGet(distAddr, holder)
	if err != nil {
		return nil, err
	}
	if !ok || claim == nil {
		claim = &HolderClaim{Distribution: distAddr, Holder: holder}
	}
	total, err := addChecked(claim.Claimed, amount)
	if err != nil {
		return nil, err
	}
	if total > entitled {
		return nil, fmt.Errorf("%w: entitled to %d, already claimed %d", ErrExceedsEntitlement, entitled, claim.Claimed)
	}
	if err := e.vault.Transfer(distAddr, holder, amount); err != nil {
		return nil, err
	}
	claim.Claimed = total
	dist.Claimed += amount
	if err := e.state.HolderClaimPut(claim); err != nil {
		return nil, err
	}
	if err := e.state.DistributionPut(dist); err != nil {
		return nil, err
	}
	e.emit(RewardsClaimedEvent(dist, holder, amount, claim.Claimed))
	return claim.Clone(), nil
}

// settleRewards pays holder whatever remains of its entitlement on the pool's
// distribution, capped by the outstanding rewards and the vault balance. It is
// called before a holder's shares are burned, when the entitlement would
// otherwise drop to zero.
func (e *Engine) settleRewards(pool *Pool, holder crypto.Address, held uint64) (uint64, error) {
	distAddr := DistributionAddress(pool.Address)
	dist, ok, err := e.state.DistributionGet(distAddr)
	if err != nil || !ok {
		return 0, err
	}
	entitled, err := Entitlement(dist.Rewards, held, pool.Minted)
	if err != nil {
		return 0, err
	}
	claim, ok, err := e.state.HolderClaimGet(distAddr, holder)
	if err != nil {
		return 0, err
	}
	if !ok || claim == nil {
		claim = &HolderClaim{Distribution: distAddr, Holder: holder}
	}
	if entitled <= claim.Claimed {
		return 0, nil
	}
	owed := entitled - claim.Claimed
	if outstanding := dist.Outstanding(); owed > outstanding {
		owed = outstanding
	}
	balance, err := e.vault.BalanceOf(distAddr)
	if err != nil {
		return 0, err
	}
	if owed > balance {
		owed = balance
	}
	if owed == 0 {
		return 0, nil
	}
	if err := e.vault.Transfer(distAddr, holder, owed); err != nil {
		return 0, err
	}
	claim.Claimed += owed
	dist.Claimed += owed
	if err := e.state.HolderClaimPut(claim); err != nil {
		return 0, err
	}
	if err := e.state.DistributionPut(dist); err != nil {
		return 0, err
	}
	e.emit(RewardsClaimedEvent(dist, holder, owed, claim.Claimed))
	return owed, nil
}

// HolderClaim returns the cumulative claim of holder against the pool's
// distribution. A holder that never claimed reports a zero record.
func (e *Engine) HolderClaim(poolAddr, holder crypto.Address) (*HolderClaim, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	distAddr := DistributionAddress(poolAddr)
	claim, ok, err := e.state.HolderClaimGet(distAddr, holder)
	if err != nil {
		return nil, err
	}
	if !ok || claim == nil {
		return &HolderClaim{Distribution: distAddr, Holder: holder}, nil
	}
	return claim, nil
}
