package memory

import (
	"context"
	"sync"
	"time"

	"wedding-backend/application/ports"
)

// IdempotencyStore is an in-memory ports.IdempotencyStore with expiry.
type IdempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]time.Time
	now     func() time.Time
}

var _ ports.IdempotencyStore = (*IdempotencyStore)(nil)

// NewIdempotencyStore creates a store whose claims expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, entries: make(map[string]time.Time), now: time.Now}
}

func (s *IdempotencyStore) Claim(ctx context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := scope + "#" + key
	if exp, ok := s.entries[id]; ok && s.now().Before(exp) {
		return false, nil
	}
	s.entries[id] = s.now().Add(s.ttl)
	return true, nil
}

func (s *IdempotencyStore) Release(ctx context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, scope+"#"+key)
	return nil
}
