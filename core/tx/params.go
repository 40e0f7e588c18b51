package tx

import "sharepool/crypto"

// Amounts are carried as decimal strings so JSON clients without 64-bit
// integers do not lose precision.

type CreatePoolParams struct {
	Creator      crypto.Address `json:"creator"`
	Reference    crypto.Address `json:"reference"`
	Authority    crypto.Address `json:"authority"`
	Seed         uint64         `json:"seed,string"`
	Shares       uint64         `json:"shares,string"`
	Deposit      uint64         `json:"deposit,string"`
	StartDate    uint64         `json:"startDate,omitempty"`
	MaturityDate uint64         `json:"maturityDate,omitempty"`
	APY          uint8          `json:"apy,omitempty"`
	Name         string         `json:"name,omitempty"`
	Symbol       string         `json:"symbol,omitempty"`
	URI          string         `json:"uri,omitempty"`
}

type BuySharesParams struct {
	Buyer  crypto.Address `json:"buyer"`
	Pool   crypto.Address `json:"pool"`
	Amount uint64         `json:"amount,string"`
}

type DistributeParams struct {
	Authority             crypto.Address `json:"authority"`
	Pool                  crypto.Address `json:"pool"`
	DistributionAuthority crypto.Address `json:"distributionAuthority"`
	Amount                uint64         `json:"amount,string"`
}

type ClaimRewardsParams struct {
	Holder                crypto.Address `json:"holder"`
	Pool                  crypto.Address `json:"pool"`
	DistributionAuthority crypto.Address `json:"distributionAuthority"`
	Amount                uint64         `json:"amount,string"`
}

type WithdrawFromPoolParams struct {
	Authority   crypto.Address `json:"authority"`
	Pool        crypto.Address `json:"pool"`
	Destination crypto.Address `json:"destination,omitempty"`
	Amount      uint64         `json:"amount,string"`
}

// PoolAuthorityParams serves closePool and closePoolAccounts.
type PoolAuthorityParams struct {
	Authority crypto.Address `json:"authority"`
	Pool      crypto.Address `json:"pool"`
}

type ClaimDepositParams struct {
	Holder crypto.Address `json:"holder"`
	Pool   crypto.Address `json:"pool"`
}

type InitializeProgramParams struct {
	GrandAuthority crypto.Address `json:"grandAuthority"`
}

type UpdateGrandAuthorityParams struct {
	GrandAuthority crypto.Address `json:"grandAuthority"`
	NewAuthority   crypto.Address `json:"newAuthority"`
}

// PoolCreatorParams serves addPoolCreator and updatePoolCreator.
type PoolCreatorParams struct {
	GrandAuthority crypto.Address `json:"grandAuthority"`
	Creator        crypto.Address `json:"creator"`
	CanCreate      bool           `json:"canCreate"`
}

type TransferParams struct {
	From   crypto.Address `json:"from"`
	To     crypto.Address `json:"to"`
	Amount uint64         `json:"amount,string"`
}

// MintCurrencyParams issues base currency; only the configured issuer may sign.
type MintCurrencyParams struct {
	To     crypto.Address `json:"to"`
	Amount uint64         `json:"amount,string"`
}
