package core

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"sharepool/core/events"
	"sharepool/core/tx"
	"sharepool/crypto"
	"sharepool/native/pool"
	"sharepool/storage"
)

const (
	testChainID = uint64(7)
	unit        = uint64(1_000_000)
)

var currencyMint = crypto.MustAddress(bytes.Repeat([]byte{0xC0}, crypto.AddressLength))

type harness struct {
	node   *Node
	db     *storage.MemDB
	issuer *crypto.PrivateKey
	events *events.Buffer
}

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

func addrOf(key *crypto.PrivateKey) crypto.Address { return key.PubKey().Address() }

func newHarness(t *testing.T) *harness {
	t.Helper()
	db := storage.NewMemDB()
	issuer := newKey(t)
	node, err := NewNode(db, Config{
		ChainID:        testChainID,
		CurrencyMint:   currencyMint,
		CurrencyIssuer: addrOf(issuer),
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	node.SetNowFunc(func() int64 { return 1_700_000_000 })
	buf := events.NewBuffer()
	node.SetEmitter(buf)
	return &harness{node: node, db: db, issuer: issuer, events: buf}
}

func (h *harness) build(t *testing.T, typ tx.Type, payer *crypto.PrivateKey, params interface{}, cosigners ...*crypto.PrivateKey) *tx.Instruction {
	t.Helper()
	nonce, err := h.node.Nonce(addrOf(payer))
	if err != nil {
		t.Fatalf("nonce: %v", err)
	}
	ins, err := tx.New(typ, testChainID, nonce, addrOf(payer), params)
	if err != nil {
		t.Fatalf("build %s: %v", typ, err)
	}
	for _, key := range append([]*crypto.PrivateKey{payer}, cosigners...) {
		if err := ins.Sign(key); err != nil {
			t.Fatalf("sign %s: %v", typ, err)
		}
	}
	return ins
}

func (h *harness) submit(t *testing.T, typ tx.Type, payer *crypto.PrivateKey, params interface{}, cosigners ...*crypto.PrivateKey) (*Receipt, error) {
	t.Helper()
	return h.node.Apply(context.Background(), h.build(t, typ, payer, params, cosigners...))
}

func (h *harness) mustSubmit(t *testing.T, typ tx.Type, payer *crypto.PrivateKey, params interface{}, cosigners ...*crypto.PrivateKey) *Receipt {
	t.Helper()
	receipt, err := h.submit(t, typ, payer, params, cosigners...)
	if err != nil {
		t.Fatalf("%s: %v", typ, err)
	}
	return receipt
}

func (h *harness) fund(t *testing.T, to crypto.Address, amount uint64) {
	t.Helper()
	h.mustSubmit(t, tx.TypeMintCurrency, h.issuer, tx.MintCurrencyParams{To: to, Amount: amount})
}

func (h *harness) balance(t *testing.T, mint, owner crypto.Address) uint64 {
	t.Helper()
	amount, err := h.node.Balance(mint, owner)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return amount
}

func (h *harness) dump() map[string][]byte {
	out := make(map[string][]byte)
	for _, key := range h.db.Keys() {
		value, _ := h.db.Get([]byte(key))
		out[key] = value
	}
	return out
}

func expectCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s, got nil", code)
	}
	if got := ErrorCode(err); got != code {
		t.Fatalf("expected code %s, got %s (%v)", code, got, err)
	}
}

func TestNodeFundraiseDistributeWithdrawFlow(t *testing.T) {
	h := newHarness(t)
	creator, reference, distAuth := newKey(t), newKey(t), newKey(t)
	h.fund(t, addrOf(creator), 1_000_000*unit)

	receipt := h.mustSubmit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
		Name:      "Octo Pool",
		Symbol:    "OCTO",
	}, reference)
	if len(receipt.Events) == 0 || receipt.Events[0].Type != pool.EventTypePoolCreated {
		t.Fatalf("expected pool created event, got %+v", receipt.Events)
	}

	poolAddr := pool.PoolAddress(addrOf(reference))
	p, err := h.node.Pool(poolAddr)
	if err != nil {
		t.Fatalf("query pool: %v", err)
	}
	if p.Minted != 3 || h.balance(t, p.Mint, addrOf(creator)) != 3 {
		t.Fatalf("unexpected pool after create: %+v", p)
	}
	if meta, err := h.node.Metadata(p.Mint); err != nil || meta.Symbol != "OCTO" {
		t.Fatalf("metadata: %+v %v", meta, err)
	}

	h.mustSubmit(t, tx.TypeBuyShares, creator, tx.BuySharesParams{Buyer: addrOf(creator), Pool: poolAddr, Amount: 3})
	if got := h.balance(t, currencyMint, poolAddr); got != 6_000*unit {
		t.Fatalf("expected pool vault 6000, got %d", got)
	}

	distAddr := pool.DistributionAddress(poolAddr)
	h.mustSubmit(t, tx.TypeTransfer, creator, tx.TransferParams{From: addrOf(creator), To: distAddr, Amount: 10_000 * unit})
	h.mustSubmit(t, tx.TypeDistribute, creator, tx.DistributeParams{
		Authority:             addrOf(creator),
		Pool:                  poolAddr,
		DistributionAuthority: addrOf(distAuth),
		Amount:                10_000 * unit,
	}, distAuth)

	h.mustSubmit(t, tx.TypeClaimRewards, creator, tx.ClaimRewardsParams{
		Holder:                addrOf(creator),
		Pool:                  poolAddr,
		DistributionAuthority: addrOf(distAuth),
		Amount:                1_000 * unit,
	}, distAuth)
	dist, err := h.node.Distribution(poolAddr)
	if err != nil || dist.Claimed != 1_000*unit {
		t.Fatalf("unexpected distribution %+v %v", dist, err)
	}
	claim, err := h.node.HolderClaim(poolAddr, addrOf(creator))
	if err != nil || claim.Claimed != 1_000*unit {
		t.Fatalf("unexpected holder claim %+v %v", claim, err)
	}

	_, err = h.submit(t, tx.TypeWithdrawFromPool, creator, tx.WithdrawFromPoolParams{Authority: addrOf(creator), Pool: poolAddr, Amount: 6})
	expectCode(t, err, "SeedRoundsNotCompleted")

	h.mustSubmit(t, tx.TypeBuyShares, creator, tx.BuySharesParams{Buyer: addrOf(creator), Pool: poolAddr, Amount: 94})
	before := h.balance(t, currencyMint, addrOf(creator))
	h.mustSubmit(t, tx.TypeWithdrawFromPool, creator, tx.WithdrawFromPoolParams{Authority: addrOf(creator), Pool: poolAddr, Amount: 100})
	if got := h.balance(t, currencyMint, addrOf(creator)); got != before+100_000*unit {
		t.Fatalf("withdrawal not credited: before=%d after=%d", before, got)
	}
	if got := h.balance(t, currencyMint, poolAddr); got != 0 {
		t.Fatalf("expected empty pool vault, got %d", got)
	}
}

func TestNodeCloseAndDestroyPool(t *testing.T) {
	h := newHarness(t)
	creator, reference, distAuth := newKey(t), newKey(t), newKey(t)
	h.fund(t, addrOf(creator), 10_000*unit)
	h.mustSubmit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
	}, reference)
	poolAddr := pool.PoolAddress(addrOf(reference))
	authority := tx.PoolAuthorityParams{Authority: addrOf(creator), Pool: poolAddr}

	h.mustSubmit(t, tx.TypeDistribute, creator, tx.DistributeParams{
		Authority: addrOf(creator), Pool: poolAddr, DistributionAuthority: addrOf(distAuth),
	}, distAuth)
	h.mustSubmit(t, tx.TypeClosePool, creator, authority)

	_, err := h.submit(t, tx.TypeClosePoolAccounts, creator, authority)
	expectCode(t, err, "NonZeroPoolBalance")

	h.mustSubmit(t, tx.TypeClaimDeposit, creator, tx.ClaimDepositParams{Holder: addrOf(creator), Pool: poolAddr})
	if got := h.balance(t, currencyMint, addrOf(creator)); got != 10_000*unit {
		t.Fatalf("expected full refund, got %d", got)
	}
	h.mustSubmit(t, tx.TypeClosePoolAccounts, creator, authority)

	if _, err := h.node.Pool(poolAddr); !errors.Is(err, pool.ErrPoolNotFound) {
		t.Fatalf("expected pool to be gone, got %v", err)
	}
	if _, err := h.node.Distribution(poolAddr); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected distribution to be gone, got %v", err)
	}

	_, err = h.submit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
	}, reference)
	expectCode(t, err, "ReferenceUsed")
}

func TestNodeRejectedInstructionLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	creator, reference := newKey(t), newKey(t)
	h.fund(t, addrOf(creator), 10_000*unit)
	h.mustSubmit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
	}, reference)
	h.events.Reset()

	before := h.dump()
	head, err := h.node.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	_, err = h.submit(t, tx.TypeBuyShares, creator, tx.BuySharesParams{
		Buyer: addrOf(creator), Pool: pool.PoolAddress(addrOf(reference)), Amount: 98,
	})
	expectCode(t, err, "ExceedsAvailableShares")

	after := h.dump()
	if len(before) != len(after) {
		t.Fatalf("key count changed: %d -> %d", len(before), len(after))
	}
	for key, value := range before {
		if !bytes.Equal(after[key], value) {
			t.Fatalf("key %x changed after rejected instruction", key)
		}
	}
	if got, _ := h.node.Head(); got != head {
		t.Fatalf("ledger head advanced on failure")
	}
	if n := len(h.events.Events()); n != 0 {
		t.Fatalf("expected no published events, got %d", n)
	}
}

func TestNodeEnvelopeChecks(t *testing.T) {
	h := newHarness(t)
	creator, reference, stranger := newKey(t), newKey(t), newKey(t)
	h.fund(t, addrOf(creator), 10_000*unit)

	ins := h.build(t, tx.TypeTransfer, creator, tx.TransferParams{From: addrOf(creator), To: addrOf(stranger), Amount: unit})
	if _, err := h.node.Apply(context.Background(), ins); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	_, err := h.node.Apply(context.Background(), ins)
	expectCode(t, err, "NonceMismatch")

	foreign := h.build(t, tx.TypeTransfer, creator, tx.TransferParams{From: addrOf(creator), To: addrOf(stranger), Amount: unit})
	foreign.ChainID = testChainID + 1
	_, err = h.node.Apply(context.Background(), foreign)
	expectCode(t, err, "ChainIDMismatch")

	// The reference key did not sign.
	_, err = h.submit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
	}, stranger)
	expectCode(t, err, "MissingSignature")

	_, err = h.submit(t, tx.TypeMintCurrency, stranger, tx.MintCurrencyParams{To: addrOf(stranger), Amount: unit})
	expectCode(t, err, "MissingSignature")

	_, err = h.submit(t, tx.TypeTransfer, stranger, tx.TransferParams{From: addrOf(creator), To: addrOf(stranger), Amount: unit})
	expectCode(t, err, "MissingSignature")

	unsigned, err := tx.New(tx.TypeTransfer, testChainID, 0, addrOf(stranger), tx.TransferParams{})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	_, err = h.node.Apply(context.Background(), unsigned)
	expectCode(t, err, "MissingSignature")

	if got := h.balance(t, currencyMint, addrOf(stranger)); got != unit {
		t.Fatalf("expected one transfer to land, got %d", got)
	}
}

func TestNodeHeadChainsCommittedInstructions(t *testing.T) {
	h := newHarness(t)
	alice := newKey(t)

	genesis, err := h.node.Head()
	if err != nil {
		t.Fatalf("head: %v", err)
	}
	first := h.mustSubmit(t, tx.TypeMintCurrency, h.issuer, tx.MintCurrencyParams{To: addrOf(alice), Amount: unit})
	second := h.mustSubmit(t, tx.TypeMintCurrency, h.issuer, tx.MintCurrencyParams{To: addrOf(alice), Amount: unit})
	if first.Head == second.Head || first.Hash == second.Hash {
		t.Fatalf("expected distinct receipts")
	}
	head, _ := h.node.Head()
	if head == genesis {
		t.Fatalf("head did not advance")
	}
	if nonce, _ := h.node.Nonce(addrOf(h.issuer)); nonce != 2 {
		t.Fatalf("expected issuer nonce 2, got %d", nonce)
	}

	// Reopening over the same store keeps the existing currency mint.
	if _, err := NewNode(h.db, h.node.Config()); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := h.balance(t, currencyMint, addrOf(alice)); got != 2*unit {
		t.Fatalf("expected balance to survive reopen, got %d", got)
	}
}

func TestErrorCodeFallsBackToInternal(t *testing.T) {
	if got := ErrorCode(errors.New("disk on fire")); got != CodeInternal {
		t.Fatalf("expected internal, got %s", got)
	}
	if got := ErrorCode(nil); got != "" {
		t.Fatalf("expected empty code for nil error, got %s", got)
	}
}

// signedAt builds an instruction with an explicit nonce so that concurrent
// payers do not read each other's nonces.
func signedAt(typ tx.Type, nonce uint64, payer *crypto.PrivateKey, params interface{}, cosigners ...*crypto.PrivateKey) (*tx.Instruction, error) {
	ins, err := tx.New(typ, testChainID, nonce, addrOf(payer), params)
	if err != nil {
		return nil, err
	}
	for _, key := range append([]*crypto.PrivateKey{payer}, cosigners...) {
		if err := ins.Sign(key); err != nil {
			return nil, err
		}
	}
	return ins, nil
}

func TestNodeConcurrentInstructionsKeepInvariants(t *testing.T) {
	h := newHarness(t)
	creator, reference, distAuth := newKey(t), newKey(t), newKey(t)
	buyers := []*crypto.PrivateKey{newKey(t), newKey(t), newKey(t), newKey(t)}
	h.fund(t, addrOf(creator), 3_000*unit)
	for _, buyer := range buyers {
		h.fund(t, addrOf(buyer), 40_000*unit)
	}
	h.mustSubmit(t, tx.TypeCreatePool, creator, tx.CreatePoolParams{
		Creator:   addrOf(creator),
		Reference: addrOf(reference),
		Authority: addrOf(creator),
		Seed:      100_000 * unit,
		Shares:    100,
		Deposit:   3_000 * unit,
	}, reference)
	poolAddr := pool.PoolAddress(addrOf(reference))
	distAddr := pool.DistributionAddress(poolAddr)
	const funded = 1_000 * unit
	h.fund(t, distAddr, funded)

	tolerated := map[string]bool{
		"ExceedsAvailableShares":          true,
		"ExceedsEntitlement":              true,
		"AccountNotInitialized":           true,
		"InsufficientDistributionBalance": true,
	}
	run := func(payer *crypto.PrivateKey, steps func(i int) (tx.Type, interface{}, []*crypto.PrivateKey)) {
		var nonce uint64
		for i := 0; i < 20; i++ {
			typ, params, cosigners := steps(i)
			ins, err := signedAt(typ, nonce, payer, params, cosigners...)
			if err != nil {
				t.Errorf("build %s: %v", typ, err)
				return
			}
			if _, err := h.node.Apply(context.Background(), ins); err != nil {
				if !tolerated[ErrorCode(err)] {
					t.Errorf("%s: unexpected error %v", typ, err)
					return
				}
				continue
			}
			nonce++
		}
	}

	var wg sync.WaitGroup
	for _, buyer := range buyers {
		buyer := buyer
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(buyer, func(i int) (tx.Type, interface{}, []*crypto.PrivateKey) {
				if i%2 == 0 {
					return tx.TypeBuyShares, tx.BuySharesParams{Buyer: addrOf(buyer), Pool: poolAddr, Amount: 3}, nil
				}
				return tx.TypeClaimRewards, tx.ClaimRewardsParams{
					Holder:                addrOf(buyer),
					Pool:                  poolAddr,
					DistributionAuthority: addrOf(distAuth),
					Amount:                7 * unit,
				}, []*crypto.PrivateKey{distAuth}
			})
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		run(creator, func(int) (tx.Type, interface{}, []*crypto.PrivateKey) {
			return tx.TypeDistribute, tx.DistributeParams{
				Authority:             addrOf(creator),
				Pool:                  poolAddr,
				DistributionAuthority: addrOf(distAuth),
				Amount:                40 * unit,
			}, []*crypto.PrivateKey{distAuth}
		})
	}()
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if _, err := h.node.Pool(poolAddr); err != nil {
				t.Errorf("query pool: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	p, err := h.node.Pool(poolAddr)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if p.Minted > p.Shares {
		t.Fatalf("minted %d exceeds shares %d", p.Minted, p.Shares)
	}
	held := h.balance(t, p.Mint, addrOf(creator))
	for _, buyer := range buyers {
		held += h.balance(t, p.Mint, addrOf(buyer))
	}
	if held != p.Minted {
		t.Fatalf("share balances %d do not match minted %d", held, p.Minted)
	}
	if got := h.balance(t, currencyMint, poolAddr); got != p.Minted*1_000*unit {
		t.Fatalf("pool vault %d does not back %d minted shares", got, p.Minted)
	}

	dist, err := h.node.Distribution(poolAddr)
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if dist.Claimed > dist.Rewards || dist.Rewards > funded {
		t.Fatalf("claimed %d rewards %d funded %d", dist.Claimed, dist.Rewards, funded)
	}
	var claimed uint64
	for _, buyer := range buyers {
		claim, err := h.node.HolderClaim(poolAddr, addrOf(buyer))
		if err != nil {
			t.Fatalf("holder claim: %v", err)
		}
		claimed += claim.Claimed
	}
	if claimed != dist.Claimed {
		t.Fatalf("holder claims %d do not sum to %d", claimed, dist.Claimed)
	}
	if got := h.balance(t, currencyMint, distAddr); got != funded-dist.Claimed {
		t.Fatalf("distribution vault %d, expected %d", got, funded-dist.Claimed)
	}
}

func TestNodeSettersAreSafeDuringApply(t *testing.T) {
	h := newHarness(t)
	alice := newKey(t)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			h.node.SetNowFunc(func() int64 { return 1_700_000_000 })
			h.node.SetLogger(nil)
			h.node.SetEmitter(h.events)
		}
	}()
	for i := uint64(0); i < 20; i++ {
		ins, err := signedAt(tx.TypeMintCurrency, i, h.issuer, tx.MintCurrencyParams{To: addrOf(alice), Amount: unit})
		if err != nil {
			t.Fatalf("build: %v", err)
		}
		if _, err := h.node.Apply(context.Background(), ins); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	wg.Wait()
	if got := h.balance(t, currencyMint, addrOf(alice)); got != 20*unit {
		t.Fatalf("expected 20 units, got %d", got)
	}
}
