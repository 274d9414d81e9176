package persister

import (
	"errors"
	"sync"

	"github.com/neogan74/walletdb/internal/changeset"
)

// ErrMemoryClosed is returned by the memory backend after Close.
var ErrMemoryClosed = errors.New("memory store is closed")

// memoryStore keeps the aggregate ChangeSet in process memory. Nothing
// survives the process; it backs tests and dry runs.
type memoryStore struct {
	mu     sync.RWMutex
	state  *changeset.ChangeSet
	closed bool
}

// FromMemory returns a Handle backed by a fresh in-memory store.
func FromMemory() *Handle {
	return newHandle(BackendMemory, newMemoryStore(), memoryError)
}

func newMemoryStore() *memoryStore {
	return &memoryStore{state: changeset.New()}
}

func (m *memoryStore) load() (*changeset.ChangeSet, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrMemoryClosed
	}
	return m.state.Clone(), nil
}

func (m *memoryStore) appendChangeSet(cs *changeset.ChangeSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrMemoryClosed
	}
	if cs.IsEmpty() {
		return nil
	}
	m.state.Merge(cs)
	return nil
}

func (m *memoryStore) close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}
