// Package memory provides the in-memory key-value backend used as the
// fallback target and in tests.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"printstack/internal/kv"
)

// Compile-time contract assertion.
var _ kv.Backend = (*Store)(nil)

// Store is a map-backed backend. An optional byte quota makes it usable as
// a stand-in for quota-constrained native stores in tests.
type Store struct {
	mu       sync.RWMutex
	items    map[string]string
	maxBytes int
}

// NewStore constructs an unbounded in-memory backend.
func NewStore() *Store {
	return &Store{items: make(map[string]string)}
}

// NewStoreWithQuota constructs a backend that rejects writes once the total
// size of keys and values would exceed maxBytes.
func NewStoreWithQuota(maxBytes int) *Store {
	return &Store{items: make(map[string]string), maxBytes: maxBytes}
}

// Get returns the stored value, reporting absence through ok.
func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

// Set stores value under key, enforcing the quota when configured.
func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.maxBytes > 0 {
		total := len(key) + len(value)
		for k, v := range s.items {
			if k == key {
				continue
			}
			total += len(k) + len(v)
		}
		if total > s.maxBytes {
			return fmt.Errorf("%w: %d bytes over %d limit", kv.ErrQuotaExceeded, total-s.maxBytes, s.maxBytes)
		}
	}
	s.items[key] = value
	return nil
}

// Remove deletes key. Removing an absent key is not an error.
func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
	return nil
}

// Clear drops every stored item.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]string)
	return nil
}

// Keys returns all stored keys in lexical order.
func (s *Store) Keys() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
