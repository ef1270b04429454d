package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/couchcryptid/incident-alert-service/internal/domain"
)

// MemoryStore is a process-local Store.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[string]domain.Subscription
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[string]domain.Subscription)}
}

func (s *MemoryStore) Get(_ context.Context, subscriberID string) (domain.Subscription, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subs[subscriberID]
	return sub, ok, nil
}

func (s *MemoryStore) Put(_ context.Context, sub domain.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[sub.SubscriberID] = sub
	return nil
}

func (s *MemoryStore) SetActive(_ context.Context, subscriberID string, active bool, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subscriberID]
	if !ok {
		return nil
	}
	sub.Active = active
	sub.UpdatedAt = at
	s.subs[subscriberID] = sub
	return nil
}

func (s *MemoryStore) ListActive(_ context.Context) ([]domain.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Subscription, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.Active {
			out = append(out, sub)
		}
	}
	return out, nil
}
