package localcache

import (
	"fmt"
	"sync"
)

// MemStore is an in-memory Cache keyed on (hash,size), for tests and
// short-lived callers that don't want a goleveldb directory on disk.
type MemStore struct {
	mu      sync.Mutex
	entries map[string]string
}

func NewMemStore() *MemStore {
	return &MemStore{entries: make(map[string]string)}
}

func memKey(hash string, size uint64) string {
	return fmt.Sprintf("%d:%s", size, hash)
}

func (m *MemStore) Lookup(hash string, size uint64) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[memKey(hash, size)]
	return v, ok, nil
}

func (m *MemStore) Put(hash string, size uint64, checksumHex string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[memKey(hash, size)] = checksumHex
	return nil
}
