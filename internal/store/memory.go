package store

import (
	"context"
	"sync"
	"time"
)

type memoryDeliveryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	seen map[string]time.Time
}

// NewMemoryDeliveryStore keeps claims in process memory. Claims do not survive restarts.
func NewMemoryDeliveryStore(ttl time.Duration) DeliveryStore {
	return newMemoryDeliveryStore(ttl, time.Now)
}

func newMemoryDeliveryStore(ttl time.Duration, now func() time.Time) *memoryDeliveryStore {
	return &memoryDeliveryStore{ttl: ttl, now: now, seen: make(map[string]time.Time)}
}

func (s *memoryDeliveryStore) Claim(_ context.Context, platform, deliveryID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.evict(now)

	key := deliveryKey(platform, deliveryID)
	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = now.Add(s.ttl)
	return true, nil
}

func (s *memoryDeliveryStore) Release(_ context.Context, platform, deliveryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, deliveryKey(platform, deliveryID))
	return nil
}

func (s *memoryDeliveryStore) evict(now time.Time) {
	for key, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, key)
		}
	}
}

func (s *memoryDeliveryStore) Close() error {
	return nil
}
