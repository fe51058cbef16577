package event

import (
	"sync"

	"github.com/syncengine/backend/internal/domain/shared"
)

// ConsumerRegistry holds registered consumers and matches them against
// dispatched events. Registration and dispatch run concurrently.
type ConsumerRegistry struct {
	mu        sync.RWMutex
	consumers map[string]shared.Consumer
	order     []string
}

// NewConsumerRegistry creates an empty registry
func NewConsumerRegistry() *ConsumerRegistry {
	return &ConsumerRegistry{
		consumers: make(map[string]shared.Consumer),
	}
}

// Register adds a consumer. Consumer IDs must be unique.
func (r *ConsumerRegistry) Register(consumer shared.Consumer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := consumer.ConsumerID()
	if id == "" {
		return shared.NewDomainError("INVALID_INPUT", "consumer ID is required")
	}
	if _, exists := r.consumers[id]; exists {
		return shared.NewDomainError("ALREADY_EXISTS", "consumer already registered: "+id)
	}
	r.consumers[id] = consumer
	r.order = append(r.order, id)
	return nil
}

// Unregister removes a consumer by ID. Unknown IDs are ignored.
func (r *ConsumerRegistry) Unregister(consumerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.consumers[consumerID]; !exists {
		return
	}
	delete(r.consumers, consumerID)
	for i, id := range r.order {
		if id == consumerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Matching returns consumers interested in the event, in registration order
func (r *ConsumerRegistry) Matching(event *shared.Event) []shared.Consumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := make([]shared.Consumer, 0, len(r.order))
	for _, id := range r.order {
		consumer := r.consumers[id]
		if consumerMatches(consumer, event) {
			matched = append(matched, consumer)
		}
	}
	return matched
}

// Count returns the number of registered consumers
func (r *ConsumerRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.consumers)
}

// consumerMatches checks stream and kind interest. Empty interest lists
// match everything.
func consumerMatches(consumer shared.Consumer, event *shared.Event) bool {
	if streams := consumer.Streams(); len(streams) > 0 {
		found := false
		for _, s := range streams {
			if s == event.Stream {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if kinds := consumer.Kinds(); len(kinds) > 0 {
		found := false
		for _, k := range kinds {
			if k == event.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
