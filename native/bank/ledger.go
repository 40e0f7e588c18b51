package bank

import (
	"errors"
	"fmt"
	"math/bits"

	"sharepool/crypto"
)

var (
	errNilState = errors.New("bank: state not configured")

	ErrInsufficientFunds = errors.New("bank: insufficient funds")
	ErrMintNotFound      = errors.New("bank: mint not found")
	ErrMintExists        = errors.New("bank: mint already exists")
	ErrAccountNotFound   = errors.New("bank: account not found")
	ErrNonZeroBalance    = errors.New("bank: account balance is not zero")
	ErrSupplyOutstanding = errors.New("bank: mint supply is not zero")
	ErrOverflow          = errors.New("bank: amount overflows")
)

type ledgerState interface {
	MintGet(addr crypto.Address) (*Mint, bool, error)
	MintPut(mint *Mint) error
	MintDelete(addr crypto.Address) error
	TokenAccountGet(mint, owner crypto.Address) (*TokenAccount, bool, error)
	TokenAccountPut(account *TokenAccount) error
	TokenAccountDelete(mint, owner crypto.Address) error
}

// Ledger keeps token balances keyed by (mint, owner).
type Ledger struct {
	state ledgerState
}

// NewLedger builds a ledger over state.
func NewLedger(state ledgerState) *Ledger { return &Ledger{state: state} }

func (l *Ledger) mint(addr crypto.Address) (*Mint, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	m, ok, err := l.state.MintGet(addr)
	if err != nil {
		return nil, err
	}
	if !ok || m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMintNotFound, addr)
	}
	return m, nil
}

func (l *Ledger) account(mint, owner crypto.Address) (*TokenAccount, bool, error) {
	if l == nil || l.state == nil {
		return nil, false, errNilState
	}
	acc, ok, err := l.state.TokenAccountGet(mint, owner)
	if err != nil {
		return nil, false, err
	}
	if !ok || acc == nil {
		return &TokenAccount{Mint: mint, Owner: owner}, false, nil
	}
	return acc, true, nil
}

// Mint returns the mint record at addr.
func (l *Ledger) Mint(addr crypto.Address) (*Mint, error) { return l.mint(addr) }

// CreateMint registers a new token class with zero supply.
func (l *Ledger) CreateMint(addr, authority crypto.Address, decimals uint8) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	if _, ok, err := l.state.MintGet(addr); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("%w: %s", ErrMintExists, addr)
	}
	return l.state.MintPut(&Mint{Address: addr, Authority: authority, Decimals: decimals})
}

// CloseMint removes a mint whose supply has been fully burned.
func (l *Ledger) CloseMint(addr crypto.Address) error {
	m, err := l.mint(addr)
	if err != nil {
		return err
	}
	if m.Supply != 0 {
		return ErrSupplyOutstanding
	}
	return l.state.MintDelete(addr)
}

// AccountExists reports whether owner has an open account for mint.
func (l *Ledger) AccountExists(mint, owner crypto.Address) (bool, error) {
	_, ok, err := l.account(mint, owner)
	return ok, err
}

// OpenAccount creates an empty account if none exists.
func (l *Ledger) OpenAccount(mint, owner crypto.Address) error {
	if _, err := l.mint(mint); err != nil {
		return err
	}
	acc, ok, err := l.account(mint, owner)
	if err != nil || ok {
		return err
	}
	return l.state.TokenAccountPut(acc)
}

// CloseAccount removes an empty account. Closing a missing account is a no-op.
func (l *Ledger) CloseAccount(mint, owner crypto.Address) error {
	acc, ok, err := l.account(mint, owner)
	if err != nil || !ok {
		return err
	}
	if acc.Amount != 0 {
		return ErrNonZeroBalance
	}
	return l.state.TokenAccountDelete(mint, owner)
}

// BalanceOf returns the balance of owner, zero when no account exists.
func (l *Ledger) BalanceOf(mint, owner crypto.Address) (uint64, error) {
	acc, _, err := l.account(mint, owner)
	if err != nil {
		return 0, err
	}
	return acc.Amount, nil
}

// Transfer moves amount from one owner to another, opening the destination
// account when needed. It fails without effect if from holds less than amount.
func (l *Ledger) Transfer(mint, from, to crypto.Address, amount uint64) error {
	if _, err := l.mint(mint); err != nil {
		return err
	}
	if amount == 0 || from == to {
		src, _, err := l.account(mint, from)
		if err != nil {
			return err
		}
		if src.Amount < amount {
			return ErrInsufficientFunds
		}
		return nil
	}
	src, ok, err := l.account(mint, from)
	if err != nil {
		return err
	}
	if !ok || src.Amount < amount {
		return fmt.Errorf("%w: %s holds %d, needs %d", ErrInsufficientFunds, from, src.Amount, amount)
	}
	dst, _, err := l.account(mint, to)
	if err != nil {
		return err
	}
	credited, carry := bits.Add64(dst.Amount, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	src.Amount -= amount
	dst.Amount = credited
	if err := l.state.TokenAccountPut(src); err != nil {
		return err
	}
	return l.state.TokenAccountPut(dst)
}

// MintTo issues amount new tokens to an open account.
func (l *Ledger) MintTo(mint, owner crypto.Address, amount uint64) error {
	m, err := l.mint(mint)
	if err != nil {
		return err
	}
	acc, ok, err := l.account(mint, owner)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, owner)
	}
	supply, carry := bits.Add64(m.Supply, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	// Supply bounds every balance, so the account cannot overflow.
	m.Supply = supply
	acc.Amount += amount
	if err := l.state.MintPut(m); err != nil {
		return err
	}
	return l.state.TokenAccountPut(acc)
}

// Burn destroys amount tokens held by owner.
func (l *Ledger) Burn(mint, owner crypto.Address, amount uint64) error {
	m, err := l.mint(mint)
	if err != nil {
		return err
	}
	acc, ok, err := l.account(mint, owner)
	if err != nil {
		return err
	}
	if !ok || acc.Amount < amount {
		return ErrInsufficientFunds
	}
	acc.Amount -= amount
	m.Supply -= amount
	if err := l.state.MintPut(m); err != nil {
		return err
	}
	return l.state.TokenAccountPut(acc)
}

// CurrencyVault exposes the ledger's accounts for one currency mint as vaults.
type CurrencyVault struct {
	ledger *Ledger
	mint   crypto.Address
}

// NewCurrencyVault binds ledger to the currency mint.
func NewCurrencyVault(ledger *Ledger, mint crypto.Address) *CurrencyVault {
	return &CurrencyVault{ledger: ledger, mint: mint}
}

func (v *CurrencyVault) BalanceOf(owner crypto.Address) (uint64, error) {
	return v.ledger.BalanceOf(v.mint, owner)
}

func (v *CurrencyVault) Transfer(from, to crypto.Address, amount uint64) error {
	return v.ledger.Transfer(v.mint, from, to, amount)
}

func (v *CurrencyVault) Close(owner crypto.Address) error {
	return v.ledger.CloseAccount(v.mint, owner)
}
