package tx

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rlp"

	"sharepool/crypto"
)

// Type names an instruction.
type Type string

const (
	TypeCreatePool           Type = "createPool"
	TypeBuyShares            Type = "buyShares"
	TypeDistribute           Type = "distribute"
	TypeClaimRewards         Type = "claimRewards"
	TypeWithdrawFromPool     Type = "withdrawFromPool"
	TypeClosePool            Type = "closePool"
	TypeClosePoolAccounts    Type = "closePoolAccounts"
	TypeClaimDeposit         Type = "claimDeposit"
	TypeInitializeProgram    Type = "initializeProgram"
	TypeUpdateGrandAuthority Type = "updateGrandAuthority"
	TypeAddPoolCreator       Type = "addPoolCreator"
	TypeUpdatePoolCreator    Type = "updatePoolCreator"
	TypeTransfer             Type = "transfer"
	TypeMintCurrency         Type = "mintCurrency"
)

var knownTypes = map[Type]struct{}{
	TypeCreatePool: {}, TypeBuyShares: {}, TypeDistribute: {}, TypeClaimRewards: {},
	TypeWithdrawFromPool: {}, TypeClosePool: {}, TypeClosePoolAccounts: {}, TypeClaimDeposit: {},
	TypeInitializeProgram: {}, TypeUpdateGrandAuthority: {}, TypeAddPoolCreator: {},
	TypeUpdatePoolCreator: {}, TypeTransfer: {}, TypeMintCurrency: {},
}

var (
	ErrUnknownType      = errors.New("tx: unknown instruction type")
	ErrNoSignatures     = errors.New("tx: instruction carries no signatures")
	ErrInvalidSignature = errors.New("tx: invalid signature")
	ErrPayerNotSigner   = errors.New("tx: payer did not sign")
	ErrInvalidParams    = errors.New("tx: invalid params")
)

// Instruction is the signed envelope submitted to the node.
type Instruction struct {
	Type       Type            `json:"type"`
	ChainID    uint64          `json:"chainId"`
	Nonce      uint64          `json:"nonce"`
	Payer      crypto.Address  `json:"payer"`
	Params     json.RawMessage `json:"params"`
	Signatures []hexutil.Bytes `json:"signatures"`
}

// New builds an unsigned instruction with params encoded as JSON.
func New(typ Type, chainID, nonce uint64, payer crypto.Address, params interface{}) (*Instruction, error) {
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}
	return &Instruction{Type: typ, ChainID: chainID, Nonce: nonce, Payer: payer, Params: raw}, nil
}

// SigningHash is the digest every signer commits to.
func (ins *Instruction) SigningHash() ([]byte, error) {
	encoded, err := rlp.EncodeToBytes([]interface{}{
		ins.ChainID,
		string(ins.Type),
		ins.Nonce,
		ins.Payer[:],
		[]byte(ins.Params),
	})
	if err != nil {
		return nil, err
	}
	return crypto.Keccak256(encoded), nil
}

// Hash identifies the signed instruction.
func (ins *Instruction) Hash() ([32]byte, error) {
	var out [32]byte
	digest, err := ins.SigningHash()
	if err != nil {
		return out, err
	}
	sigs := make([][]byte, len(ins.Signatures))
	for i, sig := range ins.Signatures {
		sigs[i] = sig
	}
	encoded, err := rlp.EncodeToBytes([]interface{}{digest, sigs})
	if err != nil {
		return out, err
	}
	copy(out[:], crypto.Keccak256(encoded))
	return out, nil
}

// Sign appends key's signature over the signing hash.
func (ins *Instruction) Sign(key *crypto.PrivateKey) error {
	digest, err := ins.SigningHash()
	if err != nil {
		return err
	}
	sig, err := key.Sign(digest)
	if err != nil {
		return err
	}
	ins.Signatures = append(ins.Signatures, sig)
	return nil
}

// Signers recovers the address behind every signature and checks the envelope
// shape. The payer must be one of the signers.
func (ins *Instruction) Signers() ([]crypto.Address, error) {
	if _, ok := knownTypes[ins.Type]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, ins.Type)
	}
	if len(ins.Signatures) == 0 {
		return nil, ErrNoSignatures
	}
	digest, err := ins.SigningHash()
	if err != nil {
		return nil, err
	}
	signers := make([]crypto.Address, 0, len(ins.Signatures))
	payerSigned := false
	for i, sig := range ins.Signatures {
		if len(sig) != 65 {
			return nil, fmt.Errorf("%w: signature %d has length %d", ErrInvalidSignature, i, len(sig))
		}
		addr, err := crypto.RecoverAddress(digest, sig)
		if err != nil {
			return nil, fmt.Errorf("%w: signature %d: %v", ErrInvalidSignature, i, err)
		}
		if addr == ins.Payer {
			payerSigned = true
		}
		signers = append(signers, addr)
	}
	if !payerSigned {
		return nil, ErrPayerNotSigner
	}
	return signers, nil
}

// DecodeParams unmarshals the params payload into out, rejecting unknown fields.
func (ins *Instruction) DecodeParams(out interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(ins.Params))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	return nil
}
