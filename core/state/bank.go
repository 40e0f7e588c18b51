package state

import (
	"fmt"

	"sharepool/crypto"
	"sharepool/native/bank"
)

func (m *Manager) MintGet(addr crypto.Address) (*bank.Mint, bool, error) {
	mint := new(bank.Mint)
	ok, err := m.getRecord(storageKey(mintPrefix, addr[:]), mint)
	if err != nil || !ok {
		return nil, false, err
	}
	return mint, true, nil
}

func (m *Manager) MintPut(mint *bank.Mint) error {
	if mint == nil {
		return fmt.Errorf("state: nil mint")
	}
	return m.putRecord(storageKey(mintPrefix, mint.Address[:]), mint)
}

func (m *Manager) MintDelete(addr crypto.Address) error {
	return m.deleteRecord(storageKey(mintPrefix, addr[:]))
}

func (m *Manager) TokenAccountGet(mint, owner crypto.Address) (*bank.TokenAccount, bool, error) {
	acc := new(bank.TokenAccount)
	ok, err := m.getRecord(storageKey(tokenAccountPrefix, mint[:], owner[:]), acc)
	if err != nil || !ok {
		return nil, false, err
	}
	return acc, true, nil
}

func (m *Manager) TokenAccountPut(acc *bank.TokenAccount) error {
	if acc == nil {
		return fmt.Errorf("state: nil token account")
	}
	return m.putRecord(storageKey(tokenAccountPrefix, acc.Mint[:], acc.Owner[:]), acc)
}

func (m *Manager) TokenAccountDelete(mint, owner crypto.Address) error {
	return m.deleteRecord(storageKey(tokenAccountPrefix, mint[:], owner[:]))
}
