package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Stream is a logical partition of the event log
type Stream string

const (
	StreamCatalog   Stream = "catalog"
	StreamInventory Stream = "inventory"
	StreamPricing   Stream = "pricing"
	StreamAnalytics Stream = "analytics"
	StreamQuality   Stream = "quality"
	StreamSearch    Stream = "search"
)

// IsValid returns true if the stream is a known partition
func (s Stream) IsValid() bool {
	switch s {
	case StreamCatalog, StreamInventory, StreamPricing, StreamAnalytics, StreamQuality, StreamSearch:
		return true
	default:
		return false
	}
}

// String returns the string representation of Stream
func (s Stream) String() string {
	return string(s)
}

// EventKind identifies the type of domain event
type EventKind string

const (
	KindProductCreated     EventKind = "product-created"
	KindProductUpdated     EventKind = "product-updated"
	KindProductDeactivated EventKind = "product-deactivated"
	KindInventoryChanged   EventKind = "inventory-changed"
	KindStockExhausted     EventKind = "stock-exhausted"
	KindPriceUpdated       EventKind = "price-updated"
	KindCatalogSynced      EventKind = "catalog-synced"
	KindConflictResolved   EventKind = "conflict-resolved"
)

// IsValid returns true if the event kind is known
func (k EventKind) IsValid() bool {
	switch k {
	case KindProductCreated, KindProductUpdated, KindProductDeactivated,
		KindInventoryChanged, KindStockExhausted, KindPriceUpdated,
		KindCatalogSynced, KindConflictResolved:
		return true
	default:
		return false
	}
}

// String returns the string representation of EventKind
func (k EventKind) String() string {
	return string(k)
}

// HighPriority returns true for event kinds that are dispatched synchronously
// at append time, in addition to the regular dispatch tick. Urgent downstream
// effects (overselling exhausted stock, selling at a stale price, selling a
// pulled product) must not wait for the tick granularity.
func (k EventKind) HighPriority() bool {
	switch k {
	case KindStockExhausted, KindPriceUpdated, KindProductDeactivated:
		return true
	default:
		return false
	}
}

// Event is an immutable domain event appended to the event log.
// Kind, Stream, AggregateID and Payload never change after append;
// only the Delivered flag is mutated by dispatch bookkeeping.
type Event struct {
	ID            uuid.UUID       `json:"id" gorm:"primaryKey"`
	Kind          EventKind       `json:"kind" gorm:"index:idx_events_stream_kind"`
	Stream        Stream          `json:"stream" gorm:"index:idx_events_stream_kind"`
	AggregateID   uuid.UUID       `json:"aggregate_id" gorm:"index"`
	Payload       json.RawMessage `json:"payload"`
	CorrelationID uuid.UUID       `json:"correlation_id"`
	CausationID   *uuid.UUID      `json:"causation_id,omitempty"`
	Origin        string          `json:"origin"`
	SchemaVersion int             `json:"schema_version"`
	Delivered     bool            `json:"delivered" gorm:"index"`
	CreatedAt     time.Time       `json:"created_at" gorm:"index"`
}

// NewEvent creates a new event with a fresh identity and correlation ID
func NewEvent(kind EventKind, stream Stream, aggregateID uuid.UUID, payload json.RawMessage) *Event {
	return &Event{
		ID:            uuid.New(),
		Kind:          kind,
		Stream:        stream,
		AggregateID:   aggregateID,
		Payload:       payload,
		CorrelationID: uuid.New(),
		SchemaVersion: 1,
		CreatedAt:     time.Now(),
	}
}

// CausedBy links this event to the event that triggered it, carrying the
// causal chain's correlation ID forward.
func (e *Event) CausedBy(cause *Event) *Event {
	causeID := cause.ID
	e.CausationID = &causeID
	e.CorrelationID = cause.CorrelationID
	return e
}

// WithOrigin records which component produced the event
func (e *Event) WithOrigin(origin string) *Event {
	e.Origin = origin
	return e
}

// Validate checks the event's required fields
func (e *Event) Validate() error {
	if !e.Kind.IsValid() {
		return NewValidationError("unknown event kind: " + string(e.Kind))
	}
	if !e.Stream.IsValid() {
		return NewValidationError("unknown stream: " + string(e.Stream))
	}
	if e.AggregateID == uuid.Nil {
		return NewValidationError("aggregate ID is required")
	}
	return nil
}
