package core

import (
	"errors"

	"sharepool/core/tx"
	"sharepool/native/bank"
	"sharepool/native/pool"
)

// CodeInternal is reported for failures that are not caused by the instruction.
const CodeInternal = "Internal"

var errorCodes = []struct {
	err  error
	code string
}{
	{pool.ErrInvalidInput, "InvalidInput"},
	{pool.ErrInvalidDeposit, "InvalidDeposit"},
	{pool.ErrInsufficientFunds, "InsufficientFunds"},
	{pool.ErrExceedsAvailableShares, "ExceedsAvailableShares"},
	{pool.ErrInsufficientDistributionBalance, "InsufficientDistributionBalance"},
	{pool.ErrInsufficientPoolBalance, "InsufficientPoolBalance"},
	{pool.ErrSeedRoundsNotCompleted, "SeedRoundsNotCompleted"},
	{pool.ErrAddressConstraint, "AddressConstraint"},
	{pool.ErrAccountNotInitialized, "AccountNotInitialized"},
	{pool.ErrPoolClosed, "PoolClosed"},
	{pool.ErrPoolNotClosed, "PoolNotClosed"},
	{pool.ErrNonZeroPoolBalance, "NonZeroPoolBalance"},
	{pool.ErrUnclaimedRewards, "UnclaimedRewards"},
	{pool.ErrSharesOutstanding, "SharesOutstanding"},
	{pool.ErrExceedsEntitlement, "ExceedsEntitlement"},
	{pool.ErrPoolNotFound, "PoolNotFound"},
	{pool.ErrReferenceUsed, "ReferenceUsed"},
	{pool.ErrMissingSignature, "MissingSignature"},
	{pool.ErrCreatorNotAuthorized, "CreatorNotAuthorized"},
	{pool.ErrSignerNotAuthorized, "SignerNotAuthorized"},
	{pool.ErrAlreadyInitialized, "AlreadyInitialized"},
	{bank.ErrInsufficientFunds, "InsufficientFunds"},
	{bank.ErrMintNotFound, "MintNotFound"},
	{bank.ErrMintExists, "MintExists"},
	{bank.ErrAccountNotFound, "AccountNotInitialized"},
	{bank.ErrNonZeroBalance, "NonZeroBalance"},
	{bank.ErrSupplyOutstanding, "SupplyOutstanding"},
	{bank.ErrOverflow, "Overflow"},
	{tx.ErrUnknownType, "UnknownInstruction"},
	{tx.ErrNoSignatures, "MissingSignature"},
	{tx.ErrInvalidSignature, "InvalidSignature"},
	{tx.ErrPayerNotSigner, "MissingSignature"},
	{tx.ErrInvalidParams, "InvalidParams"},
	{ErrChainID, "ChainIDMismatch"},
	{ErrNonceMismatch, "NonceMismatch"},
	{ErrNotFound, "NotFound"},
}

// ErrorCode returns the stable code reported to clients for err. Errors that do
// not originate from instruction validation map to CodeInternal.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, entry := range errorCodes {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}
