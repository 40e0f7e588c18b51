package pool

import "errors"

// Errors returned by the pool engine. Callers match them with errors.Is; the
// engine wraps them with context where the bare message would be ambiguous.
var (
	errNilState  = errors.New("pool engine: state not configured")
	errNilVault  = errors.New("pool engine: vault not configured")
	errNilShares = errors.New("pool engine: share ledger not configured")

	ErrInvalidInput                    = errors.New("pool: invalid input")
	ErrInvalidDeposit                  = errors.New("pool: invalid deposit")
	ErrInsufficientFunds               = errors.New("pool: insufficient funds")
	ErrExceedsAvailableShares          = errors.New("pool: exceeds available shares")
	ErrInsufficientDistributionBalance = errors.New("pool: insufficient distribution balance")
	ErrInsufficientPoolBalance         = errors.New("pool: insufficient pool balance")
	ErrSeedRoundsNotCompleted          = errors.New("pool: seed rounds are not completed")
	ErrAddressConstraint               = errors.New("pool: an address constraint was violated")
	ErrAccountNotInitialized           = errors.New("pool: the account is expected to be already initialized")
	ErrPoolClosed                      = errors.New("pool: pool closed")
	ErrPoolNotClosed                   = errors.New("pool: pool not closed")
	ErrNonZeroPoolBalance              = errors.New("pool: non-zero pool balance")
	ErrUnclaimedRewards                = errors.New("pool: unclaimed distribution rewards")
	ErrSharesOutstanding               = errors.New("pool: shares outstanding")
	ErrExceedsEntitlement              = errors.New("pool: claim exceeds holder entitlement")
	ErrPoolNotFound                    = errors.New("pool: pool not found")
	ErrReferenceUsed                   = errors.New("pool: reference already used")
	ErrMissingSignature                = errors.New("pool: missing required signature")
	ErrCreatorNotAuthorized            = errors.New("pool: creator not authorized")
	ErrSignerNotAuthorized             = errors.New("pool: signer not authorized")
	ErrAlreadyInitialized              = errors.New("pool: account already initialized")
)
