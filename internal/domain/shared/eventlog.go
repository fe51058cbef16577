package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Consumer receives dispatched events. A consumer's ID is unique per
// registry; delivery is at-least-once, so Handle must be idempotent.
type Consumer interface {
	// ConsumerID returns the unique registration ID of this consumer
	ConsumerID() string
	// Streams returns the streams this consumer is interested in.
	// An empty slice means all streams.
	Streams() []Stream
	// Kinds returns the event kinds this consumer is interested in.
	// An empty slice means all kinds.
	Kinds() []EventKind
	// Handle processes a dispatched event
	Handle(ctx context.Context, event *Event) error
}

// EventAppender appends events to the log. Append acknowledges acceptance,
// not delivery; delivery outcome is observable asynchronously.
type EventAppender interface {
	Append(ctx context.Context, event *Event) (uuid.UUID, error)
}

// EventLog combines appending with subscription management and replay
type EventLog interface {
	EventAppender
	// Subscribe registers a consumer; the consumer ID must be unused
	Subscribe(consumer Consumer) error
	// Unsubscribe removes a consumer without side effects on history
	Unsubscribe(consumerID string)
	// Replay re-delivers historical events for an aggregate, in original
	// order, to all currently registered matching consumers. Returns the
	// number of events replayed.
	Replay(ctx context.Context, aggregateID uuid.UUID, from *time.Time) (int, error)
}

// EventStore is the persistence port for the append-only event log
type EventStore interface {
	// Append persists a new event
	Append(ctx context.Context, event *Event) error
	// Undelivered returns events not yet marked delivered, oldest first
	Undelivered(ctx context.Context, limit int) ([]*Event, error)
	// MarkDelivered flags events as dispatched
	MarkDelivered(ctx context.Context, ids []uuid.UUID) error
	// History returns events for one aggregate, newest first
	History(ctx context.Context, aggregateID uuid.UUID, limit int) ([]*Event, error)
	// Range returns events for one aggregate in original append order,
	// optionally bounded below by a timestamp
	Range(ctx context.Context, aggregateID uuid.UUID, from *time.Time) ([]*Event, error)
	// CountByStreamKind returns event counts grouped by stream and kind
	CountByStreamKind(ctx context.Context) (map[Stream]map[EventKind]int64, error)
	// CountSince returns the number of events appended since a point in time
	CountSince(ctx context.Context, since time.Time) (int64, error)
}
