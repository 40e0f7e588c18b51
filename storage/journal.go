package storage

import (
	"errors"
	"sort"
)

type journalEntry struct {
	value   []byte
	deleted bool
}

// Journal buffers writes on top of a Database so a state transition can be
// applied or discarded as a whole. Reads observe the pending writes first.
//
// Journal is not safe for concurrent use.
type Journal struct {
	db    Database
	dirty map[string]journalEntry
}

// NewJournal opens a unit of work over db.
func NewJournal(db Database) *Journal {
	return &Journal{db: db, dirty: make(map[string]journalEntry)}
}

// Get returns the pending value for key, falling back to the backing store.
func (j *Journal) Get(key []byte) ([]byte, error) {
	if entry, ok := j.dirty[string(key)]; ok {
		if entry.deleted {
			return nil, ErrNotFound
		}
		return append([]byte(nil), entry.value...), nil
	}
	return j.db.Get(key)
}

// Has reports whether key currently resolves to a value.
func (j *Journal) Has(key []byte) (bool, error) {
	_, err := j.Get(key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Put stages a write.
func (j *Journal) Put(key, value []byte) error {
	j.dirty[string(key)] = journalEntry{value: append([]byte(nil), value...)}
	return nil
}

// Delete stages a removal.
func (j *Journal) Delete(key []byte) error {
	j.dirty[string(key)] = journalEntry{deleted: true}
	return nil
}

// Pending reports the number of staged keys.
func (j *Journal) Pending() int { return len(j.dirty) }

// Commit writes all staged changes in one atomic batch and resets the journal.
func (j *Journal) Commit() error {
	if len(j.dirty) == 0 {
		return nil
	}
	keys := make([]string, 0, len(j.dirty))
	for k := range j.dirty {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	batch := new(Batch)
	for _, k := range keys {
		entry := j.dirty[k]
		if entry.deleted {
			batch.Delete([]byte(k))
			continue
		}
		batch.Put([]byte(k), entry.value)
	}
	if err := j.db.Write(batch); err != nil {
		return err
	}
	j.dirty = make(map[string]journalEntry)
	return nil
}

// Discard drops every staged change.
func (j *Journal) Discard() {
	j.dirty = make(map[string]journalEntry)
}
