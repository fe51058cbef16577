package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/shared"
)

// InMemoryEventStore is an append-only event store backed by a slice.
// Suitable for tests and single-process deployments.
type InMemoryEventStore struct {
	mu     sync.RWMutex
	events []*shared.Event
	byID   map[uuid.UUID]*shared.Event
}

// NewInMemoryEventStore creates an empty in-memory event store
func NewInMemoryEventStore() *InMemoryEventStore {
	return &InMemoryEventStore{
		byID: make(map[uuid.UUID]*shared.Event),
	}
}

// Append persists a new event
func (s *InMemoryEventStore) Append(ctx context.Context, event *shared.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.ID]; exists {
		return shared.ErrAlreadyExists
	}
	stored := *event
	s.events = append(s.events, &stored)
	s.byID[stored.ID] = &stored
	return nil
}

// Undelivered returns events not yet marked delivered, oldest first
func (s *InMemoryEventStore) Undelivered(ctx context.Context, limit int) ([]*shared.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*shared.Event
	for _, e := range s.events {
		if e.Delivered {
			continue
		}
		copied := *e
		result = append(result, &copied)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// MarkDelivered flags events as dispatched
func (s *InMemoryEventStore) MarkDelivered(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		if e, ok := s.byID[id]; ok {
			e.Delivered = true
		}
	}
	return nil
}

// History returns events for one aggregate, newest first
func (s *InMemoryEventStore) History(ctx context.Context, aggregateID uuid.UUID, limit int) ([]*shared.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*shared.Event
	for i := len(s.events) - 1; i >= 0; i-- {
		e := s.events[i]
		if e.AggregateID != aggregateID {
			continue
		}
		copied := *e
		result = append(result, &copied)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// Range returns events for one aggregate in append order, optionally bounded
// below by a timestamp
func (s *InMemoryEventStore) Range(ctx context.Context, aggregateID uuid.UUID, from *time.Time) ([]*shared.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*shared.Event
	for _, e := range s.events {
		if e.AggregateID != aggregateID {
			continue
		}
		if from != nil && e.CreatedAt.Before(*from) {
			continue
		}
		copied := *e
		result = append(result, &copied)
	}
	return result, nil
}

// CountByStreamKind returns event counts grouped by stream and kind
func (s *InMemoryEventStore) CountByStreamKind(ctx context.Context) (map[shared.Stream]map[shared.EventKind]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[shared.Stream]map[shared.EventKind]int64)
	for _, e := range s.events {
		if counts[e.Stream] == nil {
			counts[e.Stream] = make(map[shared.EventKind]int64)
		}
		counts[e.Stream][e.Kind]++
	}
	return counts, nil
}

// CountSince returns the number of events appended since a point in time
func (s *InMemoryEventStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, e := range s.events {
		if !e.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// Ensure InMemoryEventStore implements EventStore
var _ shared.EventStore = (*InMemoryEventStore)(nil)
