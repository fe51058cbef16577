package event

import (
	"context"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
)

// DedupeMetrics tracks consumer-side duplicate suppression
type DedupeMetrics struct {
	// EventsProcessed counts first-time deliveries
	EventsProcessed atomic.Int64
	// EventsDuplicate counts suppressed redeliveries
	EventsDuplicate atomic.Int64
	// EventsFailed counts deliveries the wrapped consumer rejected
	EventsFailed atomic.Int64
}

// DedupeStats is a snapshot of dedupe metrics
type DedupeStats struct {
	EventsProcessed int64 `json:"events_processed"`
	EventsDuplicate int64 `json:"events_duplicate"`
	EventsFailed    int64 `json:"events_failed"`
}

// Stats returns a snapshot of the current metrics
func (m *DedupeMetrics) Stats() DedupeStats {
	return DedupeStats{
		EventsProcessed: m.EventsProcessed.Load(),
		EventsDuplicate: m.EventsDuplicate.Load(),
		EventsFailed:    m.EventsFailed.Load(),
	}
}

// IdempotentConsumer wraps a Consumer with duplicate suppression. Dispatch
// is at-least-once and high-priority kinds are delivered twice on purpose,
// so any consumer with non-idempotent side effects should be wrapped.
type IdempotentConsumer struct {
	consumer shared.Consumer
	store    shared.IdempotencyStore
	config   shared.IdempotencyConfig
	logger   *zap.Logger
	metrics  *DedupeMetrics
}

// IdempotentConsumerOption is a functional option for IdempotentConsumer
type IdempotentConsumerOption func(*IdempotentConsumer)

// WithDedupeConfig sets the idempotency configuration
func WithDedupeConfig(config shared.IdempotencyConfig) IdempotentConsumerOption {
	return func(c *IdempotentConsumer) {
		c.config = config
	}
}

// WithDedupeMetrics sets a shared metrics collector
func WithDedupeMetrics(metrics *DedupeMetrics) IdempotentConsumerOption {
	return func(c *IdempotentConsumer) {
		c.metrics = metrics
	}
}

// NewIdempotentConsumer wraps a consumer with duplicate suppression
func NewIdempotentConsumer(
	consumer shared.Consumer,
	store shared.IdempotencyStore,
	logger *zap.Logger,
	opts ...IdempotentConsumerOption,
) *IdempotentConsumer {
	c := &IdempotentConsumer{
		consumer: consumer,
		store:    store,
		config:   shared.DefaultIdempotencyConfig(),
		logger:   logger,
		metrics:  &DedupeMetrics{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ConsumerID returns the wrapped consumer's registration ID
func (c *IdempotentConsumer) ConsumerID() string {
	return c.consumer.ConsumerID()
}

// Streams returns the wrapped consumer's stream interest
func (c *IdempotentConsumer) Streams() []shared.Stream {
	return c.consumer.Streams()
}

// Kinds returns the wrapped consumer's kind interest
func (c *IdempotentConsumer) Kinds() []shared.EventKind {
	return c.consumer.Kinds()
}

// Handle processes the event once per ID within the dedupe TTL
func (c *IdempotentConsumer) Handle(ctx context.Context, event *shared.Event) error {
	if !c.config.Enabled {
		return c.consumer.Handle(ctx, event)
	}

	eventID := event.ID.String()

	isNew, err := c.store.MarkProcessed(ctx, eventID, c.config.TTL)
	if err != nil {
		// Better to risk a duplicate than to drop the event.
		c.logger.Warn("dedupe check failed, processing anyway",
			zap.String("event_id", eventID),
			zap.String("event_kind", event.Kind.String()),
			zap.Error(err),
		)
	} else if !isNew {
		c.metrics.EventsDuplicate.Add(1)
		c.logger.Debug("duplicate event suppressed",
			zap.String("event_id", eventID),
			zap.String("event_kind", event.Kind.String()),
		)
		return nil
	}

	if err := c.consumer.Handle(ctx, event); err != nil {
		c.metrics.EventsFailed.Add(1)
		// The dedupe key is kept on failure so hot redeliveries do not
		// hammer a failing consumer; the TTL allows an eventual retry.
		return err
	}

	c.metrics.EventsProcessed.Add(1)
	return nil
}

// Metrics returns this wrapper's dedupe counters
func (c *IdempotentConsumer) Metrics() *DedupeMetrics {
	return c.metrics
}

// Ensure IdempotentConsumer implements Consumer
var _ shared.Consumer = (*IdempotentConsumer)(nil)
