package tx

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"sharepool/crypto"
)

func newKey(t *testing.T) *crypto.PrivateKey {
	t.Helper()
	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	return key
}

func TestInstructionSignAndRecover(t *testing.T) {
	creator, reference := newKey(t), newKey(t)
	params := CreatePoolParams{
		Creator:   creator.PubKey().Address(),
		Reference: reference.PubKey().Address(),
		Authority: creator.PubKey().Address(),
		Seed:      100_000_000_000,
		Shares:    100,
		Deposit:   3_000_000_000,
	}
	ins, err := New(TypeCreatePool, 7, 0, creator.PubKey().Address(), params)
	require.NoError(t, err)
	require.NoError(t, ins.Sign(creator))
	require.NoError(t, ins.Sign(reference))

	// Survives a JSON round trip, as it would through the RPC.
	wire, err := json.Marshal(ins)
	require.NoError(t, err)
	var decoded Instruction
	require.NoError(t, json.Unmarshal(wire, &decoded))

	signers, err := decoded.Signers()
	require.NoError(t, err)
	require.ElementsMatch(t, []crypto.Address{creator.PubKey().Address(), reference.PubKey().Address()}, signers)

	var got CreatePoolParams
	require.NoError(t, decoded.DecodeParams(&got))
	require.Equal(t, params, got)

	h1, err := ins.Hash()
	require.NoError(t, err)
	h2, err := decoded.Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestTamperedInstructionRecoversDifferentSigner(t *testing.T) {
	payer := newKey(t)
	ins, err := New(TypeBuyShares, 1, 0, payer.PubKey().Address(), BuySharesParams{Buyer: payer.PubKey().Address(), Amount: 3})
	require.NoError(t, err)
	require.NoError(t, ins.Sign(payer))

	ins.Nonce = 1
	_, err = ins.Signers()
	require.True(t, errors.Is(err, ErrPayerNotSigner), "got %v", err)
}

func TestInstructionEnvelopeValidation(t *testing.T) {
	payer := newKey(t)
	ins, err := New(Type("mintShares"), 1, 0, payer.PubKey().Address(), struct{}{})
	require.NoError(t, err)
	require.NoError(t, ins.Sign(payer))
	_, err = ins.Signers()
	require.ErrorIs(t, err, ErrUnknownType)

	ins.Type = TypeClosePool
	ins.Signatures = nil
	_, err = ins.Signers()
	require.ErrorIs(t, err, ErrNoSignatures)

	ins.Signatures = append(ins.Signatures, []byte{1, 2, 3})
	_, err = ins.Signers()
	require.ErrorIs(t, err, ErrInvalidSignature)

	ins.Params = json.RawMessage(`{"authority":"x","surprise":1}`)
	require.ErrorIs(t, ins.DecodeParams(&PoolAuthorityParams{}), ErrInvalidParams)
}
