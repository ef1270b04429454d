package dedup

import (
	"context"
	"strings"
	"sync"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu        sync.RWMutex
	keys      map[string]struct{}
	addresses []string // lower-cased
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]struct{})}
}

func (s *MemoryStore) HasKey(_ context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.keys[key]
	return ok, nil
}

func (s *MemoryStore) HasAddressContaining(_ context.Context, fragment string) (bool, error) {
	fragment = strings.ToLower(fragment)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, a := range s.addresses {
		if strings.Contains(a, fragment) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) Add(_ context.Context, key, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return nil
	}
	s.keys[key] = struct{}{}
	if address != "" {
		s.addresses = append(s.addresses, strings.ToLower(address))
	}
	return nil
}
