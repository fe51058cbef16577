package sync

import (
	"context"
	"sync"

	"github.com/syncengine/backend/internal/domain/shared"
)

// ChannelAdapter delivers one operation to one downstream channel. Deliver
// returns nil on success, a ValidationError for payloads the channel can
// never accept, and a TransportError for transient failures.
type ChannelAdapter interface {
	// Kind returns the channel kind this adapter serves
	Kind() ChannelKind
	// Deliver pushes the operation's payload to the channel endpoint
	Deliver(ctx context.Context, channel *Channel, op *Operation) error
}

// AdapterRegistry maps channel kinds to their delivery adapters
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[ChannelKind]ChannelAdapter
}

// NewAdapterRegistry creates an empty adapter registry
func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{
		adapters: make(map[ChannelKind]ChannelAdapter),
	}
}

// Register installs an adapter for its channel kind, replacing any previous
// adapter for the same kind.
func (r *AdapterRegistry) Register(adapter ChannelAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[adapter.Kind()] = adapter
}

// Lookup returns the adapter for a channel kind
func (r *AdapterRegistry) Lookup(kind ChannelKind) (ChannelAdapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	adapter, ok := r.adapters[kind]
	if !ok {
		return nil, shared.NewDomainError("ADAPTER_NOT_FOUND", "no adapter registered for channel kind: "+string(kind))
	}
	return adapter, nil
}

// Kinds returns the registered channel kinds
func (r *AdapterRegistry) Kinds() []ChannelKind {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]ChannelKind, 0, len(r.adapters))
	for kind := range r.adapters {
		kinds = append(kinds, kind)
	}
	return kinds
}
