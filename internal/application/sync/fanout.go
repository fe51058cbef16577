package sync

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// FanOutConsumerID is the registry ID of the propagation consumer
const FanOutConsumerID = "sync-fanout"

// ProductChangeConsumer turns product change events into per-channel sync
// operations. It creates operations, which is a side effect, so it always
// runs behind the idempotent consumer wrapper: dispatch is at-least-once
// and high-priority kinds arrive twice, once at append and once on the
// next dispatch tick.
type ProductChangeConsumer struct {
	channels syncdomain.ChannelRepository
	ops      syncdomain.OperationStore
	products catalog.ProductRepository
	driver   OperationDriver
	logger   *zap.Logger
}

// NewProductChangeConsumer creates the fan-out consumer
func NewProductChangeConsumer(
	channels syncdomain.ChannelRepository,
	ops syncdomain.OperationStore,
	products catalog.ProductRepository,
	driver OperationDriver,
	logger *zap.Logger,
) *ProductChangeConsumer {
	return &ProductChangeConsumer{
		channels: channels,
		ops:      ops,
		products: products,
		driver:   driver,
		logger:   logger,
	}
}

// ConsumerID returns the unique registration ID of this consumer
func (c *ProductChangeConsumer) ConsumerID() string {
	return FanOutConsumerID
}

// Streams returns the streams this consumer is interested in
func (c *ProductChangeConsumer) Streams() []shared.Stream {
	return []shared.Stream{
		shared.StreamCatalog,
		shared.StreamInventory,
		shared.StreamPricing,
		shared.StreamQuality,
	}
}

// Kinds returns the event kinds that propagate to channels
func (c *ProductChangeConsumer) Kinds() []shared.EventKind {
	return []shared.EventKind{
		shared.KindProductCreated,
		shared.KindProductUpdated,
		shared.KindProductDeactivated,
		shared.KindInventoryChanged,
		shared.KindStockExhausted,
		shared.KindPriceUpdated,
		shared.KindConflictResolved,
	}
}

// Handle fans one product change out to every capable active channel
func (c *ProductChangeConsumer) Handle(ctx context.Context, event *shared.Event) error {
	opKind, ok := syncdomain.KindForEvent(event.Kind)
	if !ok {
		return nil
	}

	product, err := c.products.FindByID(ctx, event.AggregateID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			c.logger.Warn("event references unknown product, skipping fan-out",
				zap.String("event_id", event.ID.String()),
				zap.String("aggregate_id", event.AggregateID.String()),
			)
			return nil
		}
		return err
	}

	channels, err := c.channels.FindActive(ctx)
	if err != nil {
		return err
	}

	snapshot := snapshotOf(product)
	urgent := event.Kind.HighPriority()
	fanned := 0

	for _, channel := range channels {
		if !channel.Capabilities.Supports(opKind) {
			continue
		}

		payload, err := syncdomain.ShapePayload(snapshot, channel.Kind)
		if err != nil {
			c.logger.Error("failed to shape payload",
				zap.String("channel", channel.Name),
				zap.Error(err),
			)
			continue
		}

		op := syncdomain.NewOperation(channel, product.ID, opKind, payload)
		if err := c.ops.Save(ctx, op); err != nil {
			c.logger.Error("failed to enqueue operation",
				zap.String("channel", channel.Name),
				zap.String("product_id", product.ID.String()),
				zap.Error(err),
			)
			continue
		}
		fanned++

		if urgent || channel.Realtime() {
			c.driver.AttemptNow(ctx, op)
		}
	}

	c.logger.Debug("event fanned out",
		zap.String("event_id", event.ID.String()),
		zap.String("event_kind", event.Kind.String()),
		zap.String("operation_kind", opKind.String()),
		zap.Int("operations", fanned),
	)
	return nil
}

// Ensure ProductChangeConsumer implements Consumer
var _ shared.Consumer = (*ProductChangeConsumer)(nil)
