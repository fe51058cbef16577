package cache

import (
	"context"
	"sync"
	"time"

	"github.com/syncengine/backend/internal/domain/shared"
)

// dedupeEntry holds an event ID's expiry
type dedupeEntry struct {
	expiresAt time.Time
}

// InMemoryDedupeStore implements IdempotencyStore with a map. Suitable for
// single-instance deployments and tests; state is not shared across
// processes, so distributed deployments need the Redis store.
type InMemoryDedupeStore struct {
	mu        sync.RWMutex
	entries   map[string]dedupeEntry
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryDedupeStore creates the store and starts its expiry sweeper
func NewInMemoryDedupeStore() *InMemoryDedupeStore {
	store := &InMemoryDedupeStore{
		entries:  make(map[string]dedupeEntry),
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.sweepLoop()

	return store
}

// MarkProcessed marks an event as processed with a TTL. Returns true if the
// event was newly marked, false if it was already processed.
func (s *InMemoryDedupeStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, exists := s.entries[eventID]; exists && time.Now().Before(e.expiresAt) {
		return false, nil
	}

	s.entries[eventID] = dedupeEntry{expiresAt: time.Now().Add(ttl)}
	return true, nil
}

// IsProcessed checks if an event has already been processed
func (s *InMemoryDedupeStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[eventID]
	if !exists || time.Now().After(e.expiresAt) {
		return false, nil
	}
	return true, nil
}

// Close stops the sweeper. Safe to call multiple times.
func (s *InMemoryDedupeStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

// Size returns the number of live entries, for tests and monitoring
func (s *InMemoryDedupeStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *InMemoryDedupeStore) sweepLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops expired entries
func (s *InMemoryDedupeStore) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for eventID, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, eventID)
		}
	}
}

// Ensure InMemoryDedupeStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*InMemoryDedupeStore)(nil)
