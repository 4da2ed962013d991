package cache

import (
	"context"
	"sync"
	"time"

	"github.com/posbridge/backend/internal/domain/shared"
)

const cleanupInterval = 5 * time.Minute

// InMemoryIdempotencyStore keeps webhook delivery keys in a process-local
// map. Good for tests and single-instance deployments; it cannot deduplicate
// across instances.
type InMemoryIdempotencyStore struct {
	mu        sync.RWMutex
	deadlines map[string]time.Time
	stop      chan struct{}
	done      sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryIdempotencyStore builds the store and starts a janitor that
// evicts expired keys.
func NewInMemoryIdempotencyStore() *InMemoryIdempotencyStore {
	s := &InMemoryIdempotencyStore{
		deadlines: make(map[string]time.Time),
		stop:      make(chan struct{}),
	}
	s.done.Add(1)
	go s.janitor()
	return s
}

// MarkProcessed records a delivery key for the given TTL. It reports true
// when the key is new and false when a live entry already holds it.
func (s *InMemoryIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if deadline, ok := s.deadlines[key]; ok && time.Now().Before(deadline) {
		return false, nil
	}
	s.deadlines[key] = time.Now().Add(ttl)
	return true, nil
}

// IsProcessed reports whether a live entry exists for the key. Expired
// entries count as unseen even before the janitor removes them.
func (s *InMemoryIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	deadline, ok := s.deadlines[key]
	return ok && time.Now().Before(deadline), nil
}

// Close stops the janitor. Safe to call more than once.
func (s *InMemoryIdempotencyStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stop)
		s.done.Wait()
	})
	return nil
}

func (s *InMemoryIdempotencyStore) janitor() {
	defer s.done.Done()

	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.evictExpired()
		}
	}
}

func (s *InMemoryIdempotencyStore) evictExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for key, deadline := range s.deadlines {
		if now.After(deadline) {
			delete(s.deadlines, key)
		}
	}
}

// Size reports the entry count, expired entries included.
func (s *InMemoryIdempotencyStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.deadlines)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
