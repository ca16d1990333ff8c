package storefakes

import (
	"sync"

	"github.com/noarlabs/go-capsule-client/internal/apperrors"
)

// InMemoryStore is a thread-safe in-memory implementation of store.Store for
// tests. FailKeys injects storage failures per key.
type InMemoryStore struct {
	mu       sync.RWMutex
	values   map[string][]byte
	FailKeys map[string]bool
}

// NewInMemoryStore creates an empty in-memory store
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values:   make(map[string][]byte),
		FailKeys: make(map[string]bool),
	}
}

func (s *InMemoryStore) Get(key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.FailKeys[key] {
		return nil, apperrors.Wrapf(apperrors.ErrStorage, "injected failure on %q", key)
	}
	value, exists := s.values[key]
	if !exists {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "key %q", key)
	}

	// Return a copy to prevent external modifications
	out := make([]byte, len(value))
	copy(out, value)
	return out, nil
}

func (s *InMemoryStore) Set(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailKeys[key] {
		return apperrors.Wrapf(apperrors.ErrStorage, "injected failure on %q", key)
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	s.values[key] = stored
	return nil
}

func (s *InMemoryStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailKeys[key] {
		return apperrors.Wrapf(apperrors.ErrStorage, "injected failure on %q", key)
	}
	delete(s.values, key)
	return nil
}

// Len reports the number of stored keys.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.values)
}
