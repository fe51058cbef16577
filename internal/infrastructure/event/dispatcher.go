package event

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
)

// DispatcherConfig holds dispatch loop tuning
type DispatcherConfig struct {
	// DispatchInterval is how often undelivered events are fanned out
	DispatchInterval time.Duration
	// BatchSize bounds how many events one tick dispatches
	BatchSize int
}

// DefaultDispatcherConfig returns the default dispatch tuning
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		DispatchInterval: 100 * time.Millisecond,
		BatchSize:        100,
	}
}

// Dispatcher is the event log engine: it appends events to the store and
// fans them out to registered consumers.
//
// Delivery is at-least-once. High-priority events are dispatched
// synchronously at append time AND again by the dispatch tick, so consumers
// of those kinds see deliberate duplicates and must be idempotent. Consumer
// errors are logged and never block the log; the event is still marked
// delivered once the tick has fanned it out.
type Dispatcher struct {
	store    shared.EventStore
	registry *ConsumerRegistry
	config   DispatcherConfig
	logger   *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a dispatcher over an event store
func NewDispatcher(store shared.EventStore, config DispatcherConfig, logger *zap.Logger) *Dispatcher {
	if config.DispatchInterval <= 0 {
		config.DispatchInterval = DefaultDispatcherConfig().DispatchInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultDispatcherConfig().BatchSize
	}
	return &Dispatcher{
		store:    store,
		registry: NewConsumerRegistry(),
		config:   config,
		logger:   logger,
	}
}

// Append validates and persists an event, then dispatches it synchronously
// to matching consumers when its kind is high priority. Append acknowledges
// acceptance into the log; regular delivery happens on the next tick.
func (d *Dispatcher) Append(ctx context.Context, event *shared.Event) (uuid.UUID, error) {
	if err := event.Validate(); err != nil {
		return uuid.Nil, err
	}

	if err := d.store.Append(ctx, event); err != nil {
		return uuid.Nil, err
	}

	if event.Kind.HighPriority() {
		// Urgent kinds cannot wait for the tick. The delivered flag is
		// left unset, so the tick delivers the same event again.
		d.fanOut(ctx, event)
	}

	return event.ID, nil
}

// Subscribe registers a consumer for future dispatches
func (d *Dispatcher) Subscribe(consumer shared.Consumer) error {
	if err := d.registry.Register(consumer); err != nil {
		return err
	}
	d.logger.Debug("consumer subscribed",
		zap.String("consumer_id", consumer.ConsumerID()),
	)
	return nil
}

// Unsubscribe removes a consumer without side effects on history
func (d *Dispatcher) Unsubscribe(consumerID string) {
	d.registry.Unregister(consumerID)
	d.logger.Debug("consumer unsubscribed",
		zap.String("consumer_id", consumerID),
	)
}

// Replay re-delivers an aggregate's historical events, in original append
// order, to all currently matching consumers. Replay never touches delivered
// flags and never takes the high-priority path.
func (d *Dispatcher) Replay(ctx context.Context, aggregateID uuid.UUID, from *time.Time) (int, error) {
	events, err := d.store.Range(ctx, aggregateID, from)
	if err != nil {
		return 0, err
	}

	for _, event := range events {
		d.fanOut(ctx, event)
	}

	d.logger.Info("replay completed",
		zap.String("aggregate_id", aggregateID.String()),
		zap.Int("events", len(events)),
	)
	return len(events), nil
}

// Start begins the background dispatch loop
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	d.wg.Add(1)
	go d.dispatchLoop(ctx)

	d.logger.Info("event dispatcher started",
		zap.Duration("interval", d.config.DispatchInterval),
		zap.Int("batch_size", d.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the dispatch loop
func (d *Dispatcher) Stop(ctx context.Context) error {
	if d.cancel != nil {
		d.cancel()
	}

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("event dispatcher stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// dispatchLoop fans out undelivered events on every tick
func (d *Dispatcher) dispatchLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.DispatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.DispatchPending(ctx)
		}
	}
}

// DispatchPending fans out one batch of undelivered events and marks them
// delivered. Exposed for tests and manual draining; the tick calls it.
func (d *Dispatcher) DispatchPending(ctx context.Context) {
	events, err := d.store.Undelivered(ctx, d.config.BatchSize)
	if err != nil {
		d.logger.Error("failed to load undelivered events", zap.Error(err))
		return
	}
	if len(events) == 0 {
		return
	}

	ids := make([]uuid.UUID, 0, len(events))
	for _, event := range events {
		d.fanOut(ctx, event)
		ids = append(ids, event.ID)
	}

	// Delivery is at-least-once: consumer failures do not hold the event
	// back, they are the consumer's problem to absorb on redelivery.
	if err := d.store.MarkDelivered(ctx, ids); err != nil {
		d.logger.Error("failed to mark events delivered", zap.Error(err))
	}
}

// fanOut delivers one event to every matching consumer
func (d *Dispatcher) fanOut(ctx context.Context, event *shared.Event) {
	for _, consumer := range d.registry.Matching(event) {
		if err := d.deliver(ctx, consumer, event); err != nil {
			d.logger.Error("consumer failed to handle event",
				zap.String("consumer_id", consumer.ConsumerID()),
				zap.String("event_id", event.ID.String()),
				zap.String("event_kind", event.Kind.String()),
				zap.Error(err),
			)
		}
	}
}

// deliver invokes one consumer with panic recovery
func (d *Dispatcher) deliver(ctx context.Context, consumer shared.Consumer, event *shared.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("consumer panicked",
				zap.String("consumer_id", consumer.ConsumerID()),
				zap.String("event_kind", event.Kind.String()),
				zap.Any("panic", r),
			)
		}
	}()

	return consumer.Handle(ctx, event)
}

// Ensure Dispatcher implements EventLog
var _ shared.EventLog = (*Dispatcher)(nil)
