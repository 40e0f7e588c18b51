package state

import (
	"errors"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"sharepool/storage"
)

// KV is the key-value surface the manager persists through. A storage.Journal
// satisfies it so every write lands in the current unit of work.
type KV interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
}

// Manager maps ledger records onto RLP-encoded values stored under
// keccak-hashed keys.
type Manager struct {
	kv KV
}

// NewManager creates a state manager operating on the provided store.
func NewManager(kv KV) *Manager {
	return &Manager{kv: kv}
}

func storageKey(prefix []byte, parts ...[]byte) []byte {
	size := len(prefix)
	for _, p := range parts {
		size += len(p)
	}
	buf := make([]byte, 0, size)
	buf = append(buf, prefix...)
	for _, p := range parts {
		buf = append(buf, p...)
	}
	return ethcrypto.Keccak256(buf)
}

// getRecord decodes the value at key into out. It reports false when the key is
// absent.
func (m *Manager) getRecord(key []byte, out interface{}) (bool, error) {
	data, err := m.kv.Get(key)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if len(data) == 0 {
		return false, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func (m *Manager) putRecord(key []byte, value interface{}) error {
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return err
	}
	return m.kv.Put(key, encoded)
}

func (m *Manager) deleteRecord(key []byte) error {
	return m.kv.Delete(key)
}
