package archive

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore keeps archived pages in memory. Used by tests and dry runs.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

// Put stores a copy of the body and returns a memory:// URI.
func (s *MemoryStore) Put(_ context.Context, objectPath string, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[objectPath] = append([]byte(nil), data...)
	return fmt.Sprintf("memory://%s", objectPath), nil
}

// Get returns the stored body for an object path.
func (s *MemoryStore) Get(objectPath string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	body, ok := s.data[objectPath]
	return body, ok
}

// Len reports how many objects have been stored.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
