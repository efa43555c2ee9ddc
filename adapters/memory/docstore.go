// Package memory provides in-memory store implementations.
// Useful for testing and development.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/kvorm/ports"
)

// DocumentStore is a thread-safe in-memory key-value store.
type DocumentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewDocumentStore creates an empty in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{data: make(map[string][]byte)}
}

// Set stores a copy of value under key.
func (s *DocumentStore) Set(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
	return nil
}

// Get retrieves the value for key, or (nil, nil) when absent.
func (s *DocumentStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, nil
}

// Delete removes key and reports whether it was present.
func (s *DocumentStore) Delete(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[key]
	delete(s.data, key)
	return ok, nil
}

// Keys returns all keys with the given prefix in lexicographic order.
func (s *DocumentStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	s.mu.RUnlock()
	sort.Strings(keys)
	return keys, nil
}

// Exists reports whether key is present.
func (s *DocumentStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.data[key]
	return ok, nil
}

// Ping always succeeds.
func (s *DocumentStore) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (s *DocumentStore) Close() error {
	return nil
}

// Clear removes all keys (for testing).
func (s *DocumentStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
}

// Len returns the number of stored keys (for testing).
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Ensure interface compliance.
var _ ports.DocumentStore = (*DocumentStore)(nil)
