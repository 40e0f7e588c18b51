package pool

import (
	"fmt"
	"math/bits"

	"github.com/holiman/uint256"
)

// PricePerShare returns seed / shares, truncating toward zero.
func PricePerShare(seed, shares uint64) (uint64, error) {
	if shares == 0 {
		return 0, fmt.Errorf("%w: zero shares", ErrInvalidInput)
	}
	return seed / shares, nil
}

// SharesForDeposit returns floor(deposit * shares / seed).
func SharesForDeposit(deposit, seed, shares uint64) (uint64, error) {
	if seed == 0 {
		return 0, fmt.Errorf("%w: zero seed", ErrInvalidInput)
	}
	return mulDiv(deposit, shares, seed)
}

// PayoutForShares returns floor(n * seed / shares).
func PayoutForShares(n, seed, shares uint64) (uint64, error) {
	if shares == 0 {
		return 0, fmt.Errorf("%w: zero shares", ErrInvalidInput)
	}
	return mulDiv(n, seed, shares)
}

// CostForShares returns n * PricePerShare(seed, shares).
func CostForShares(n, seed, shares uint64) (uint64, error) {
	price, err := PricePerShare(seed, shares)
	if err != nil {
		return 0, err
	}
	hi, lo := bits.Mul64(n, price)
	if hi != 0 {
		return 0, fmt.Errorf("%w: cost overflows", ErrInvalidInput)
	}
	return lo, nil
}

// Entitlement is a holder's lifetime share of rewards: rewards * held / minted.
func Entitlement(rewards, held, minted uint64) (uint64, error) {
	if minted == 0 {
		return 0, nil
	}
	return mulDiv(rewards, held, minted)
}

// mulDiv computes floor(a*b/d) with a 256-bit intermediate.
func mulDiv(a, b, d uint64) (uint64, error) {
	if d == 0 {
		return 0, fmt.Errorf("%w: division by zero", ErrInvalidInput)
	}
	product, overflow := new(uint256.Int).MulOverflow(uint256.NewInt(a), uint256.NewInt(b))
	if overflow {
		return 0, fmt.Errorf("%w: product overflows", ErrInvalidInput)
	}
	quotient := new(uint256.Int).Div(product, uint256.NewInt(d))
	if !quotient.IsUint64() {
		return 0, fmt.Errorf("%w: result exceeds 64 bits", ErrInvalidInput)
	}
	return quotient.Uint64(), nil
}

func addChecked(a, b uint64) (uint64, error) {
	sum, carry := bits.Add64(a, b, 0)
	if carry != 0 {
		return 0, fmt.Errorf("%w: amount overflows", ErrInvalidInput)
	}
	return sum, nil
}
