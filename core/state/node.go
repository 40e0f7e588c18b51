package state

import "sharepool/crypto"

// Nonce returns the next expected instruction nonce of addr.
func (m *Manager) Nonce(addr crypto.Address) (uint64, error) {
	var nonce uint64
	if _, err := m.getRecord(storageKey(noncePrefix, addr[:]), &nonce); err != nil {
		return 0, err
	}
	return nonce, nil
}

func (m *Manager) SetNonce(addr crypto.Address, nonce uint64) error {
	return m.putRecord(storageKey(noncePrefix, addr[:]), nonce)
}

// LedgerHead returns the digest over every committed instruction.
func (m *Manager) LedgerHead() ([32]byte, error) {
	var head [32]byte
	if _, err := m.getRecord(storageKey(ledgerHeadKey), &head); err != nil {
		return head, err
	}
	return head, nil
}

func (m *Manager) SetLedgerHead(head [32]byte) error {
	return m.putRecord(storageKey(ledgerHeadKey), head)
}
