package sync

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
	"github.com/syncengine/backend/internal/infrastructure/cache"
	infraevent "github.com/syncengine/backend/internal/infrastructure/event"
	"github.com/syncengine/backend/internal/infrastructure/persistence"
)

type fanoutFixture struct {
	consumer *ProductChangeConsumer
	channels *persistence.InMemoryChannelRepository
	ops      *persistence.InMemoryOperationStore
	products *persistence.InMemoryProductRepository
	driver   *recordingDriver
	product  *catalog.Product
}

func newFanoutFixture(t *testing.T) *fanoutFixture {
	t.Helper()
	channels := persistence.NewInMemoryChannelRepository()
	ops := persistence.NewInMemoryOperationStore()
	products := persistence.NewInMemoryProductRepository()
	driver := &recordingDriver{}

	product, err := catalog.NewProduct("tee-001", "Graphic Tee", decimal.NewFromInt(25), 10)
	require.NoError(t, err)
	require.NoError(t, products.Save(context.Background(), product))

	return &fanoutFixture{
		consumer: NewProductChangeConsumer(channels, ops, products, driver, zap.NewNop()),
		channels: channels,
		ops:      ops,
		products: products,
		driver:   driver,
		product:  product,
	}
}

func (f *fanoutFixture) addChannel(t *testing.T, name string, kind syncdomain.ChannelKind, caps syncdomain.Capabilities, mode syncdomain.DeliveryMode) *syncdomain.Channel {
	t.Helper()
	channel, err := syncdomain.NewChannel(syncdomain.ChannelConfig{
		Name:         name,
		Kind:         kind,
		Endpoint:     "https://" + name + ".example.com/hook",
		Capabilities: caps,
		DeliveryMode: mode,
	})
	require.NoError(t, err)
	require.NoError(t, f.channels.Save(context.Background(), channel))
	return channel
}

func (f *fanoutFixture) opsByChannel(t *testing.T, channelID uuid.UUID) []*syncdomain.Operation {
	t.Helper()
	ops, err := f.ops.NonTerminalByChannel(context.Background(), channelID)
	require.NoError(t, err)
	return ops
}

func TestFanOutCapabilityFiltering(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture(t)

	web := f.addChannel(t, "webstore", syncdomain.ChannelKindWeb,
		syncdomain.Capabilities{Inventory: true, Pricing: true}, syncdomain.DeliveryRealtime)
	app := f.addChannel(t, "mobile", syncdomain.ChannelKindApp,
		syncdomain.Capabilities{Catalog: true}, syncdomain.DeliveryBatched)

	t.Run("price changes reach pricing channels only", func(t *testing.T) {
		event := shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, f.product.ID, nil)
		require.NoError(t, f.consumer.Handle(ctx, event))

		webOps := f.opsByChannel(t, web.ID)
		require.Len(t, webOps, 1)
		assert.Equal(t, syncdomain.OpPriceChange, webOps[0].Kind)
		assert.Empty(t, f.opsByChannel(t, app.ID))

		// Realtime channels get an immediate attempt.
		assert.Equal(t, 1, f.driver.attemptCount())
	})

	t.Run("catalog changes reach catalog channels only", func(t *testing.T) {
		before := len(f.opsByChannel(t, web.ID))

		event := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, f.product.ID, nil)
		require.NoError(t, f.consumer.Handle(ctx, event))

		appOps := f.opsByChannel(t, app.ID)
		require.Len(t, appOps, 1)
		assert.Equal(t, syncdomain.OpProductUpdate, appOps[0].Kind)
		assert.Len(t, f.opsByChannel(t, web.ID), before)
	})
}

func TestFanOutUrgency(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture(t)

	// Batched channel: ordinarily waits for the scheduler tick.
	marketplace := f.addChannel(t, "amazon", syncdomain.ChannelKindMarketplace,
		syncdomain.Capabilities{Inventory: true}, syncdomain.DeliveryBatched)

	event := shared.NewEvent(shared.KindInventoryChanged, shared.StreamInventory, f.product.ID, nil)
	require.NoError(t, f.consumer.Handle(ctx, event))
	assert.Zero(t, f.driver.attemptCount())

	// Stock exhaustion jumps the queue even on batched channels.
	urgent := shared.NewEvent(shared.KindStockExhausted, shared.StreamInventory, f.product.ID, nil)
	require.NoError(t, f.consumer.Handle(ctx, urgent))
	assert.Equal(t, 1, f.driver.attemptCount())

	assert.Len(t, f.opsByChannel(t, marketplace.ID), 2)
}

func TestFanOutSkips(t *testing.T) {
	ctx := context.Background()

	t.Run("non-propagating kinds are ignored", func(t *testing.T) {
		f := newFanoutFixture(t)
		ch := f.addChannel(t, "amazon", syncdomain.ChannelKindMarketplace,
			syncdomain.Capabilities{Catalog: true}, syncdomain.DeliveryBatched)

		event := shared.NewEvent(shared.KindCatalogSynced, shared.StreamAnalytics, f.product.ID, nil)
		require.NoError(t, f.consumer.Handle(ctx, event))
		assert.Empty(t, f.opsByChannel(t, ch.ID))
	})

	t.Run("unknown products are skipped without error", func(t *testing.T) {
		f := newFanoutFixture(t)
		ch := f.addChannel(t, "amazon", syncdomain.ChannelKindMarketplace,
			syncdomain.Capabilities{Catalog: true}, syncdomain.DeliveryBatched)

		event := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, uuid.New(), nil)
		require.NoError(t, f.consumer.Handle(ctx, event))
		assert.Empty(t, f.opsByChannel(t, ch.ID))
	})

	t.Run("inactive channels are excluded", func(t *testing.T) {
		f := newFanoutFixture(t)
		ch := f.addChannel(t, "amazon", syncdomain.ChannelKindMarketplace,
			syncdomain.Capabilities{Catalog: true}, syncdomain.DeliveryBatched)
		ch.Deactivate()
		require.NoError(t, f.channels.Update(ctx, ch))

		event := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, f.product.ID, nil)
		require.NoError(t, f.consumer.Handle(ctx, event))

		ops, err := f.ops.NonTerminal(ctx)
		require.NoError(t, err)
		assert.Empty(t, ops)
	})
}

func TestFanOutSuppressesRedelivery(t *testing.T) {
	ctx := context.Background()
	f := newFanoutFixture(t)

	web := f.addChannel(t, "web", syncdomain.ChannelKindWeb,
		syncdomain.Capabilities{Inventory: true, Pricing: true}, syncdomain.DeliveryBatched)

	store := cache.NewInMemoryDedupeStore()
	defer store.Close()
	consumer := infraevent.NewIdempotentConsumer(f.consumer, store, zap.NewNop(),
		infraevent.WithDedupeConfig(shared.IdempotencyConfig{TTL: time.Minute, Enabled: true}),
	)

	// High-priority kinds reach the consumer twice, once synchronously at
	// append and again on the next dispatch tick.
	event := shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, f.product.ID, nil)
	require.NoError(t, consumer.Handle(ctx, event))
	require.NoError(t, consumer.Handle(ctx, event))

	ops, err := f.ops.FindByProduct(ctx, f.product.ID, 10)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, web.ID, ops[0].ChannelID)
	assert.Equal(t, syncdomain.OpPriceChange, ops[0].Kind)
}

func TestFanOutRegistration(t *testing.T) {
	f := newFanoutFixture(t)

	assert.Equal(t, FanOutConsumerID, f.consumer.ConsumerID())
	assert.Contains(t, f.consumer.Streams(), shared.StreamPricing)
	assert.Contains(t, f.consumer.Kinds(), shared.KindStockExhausted)
	assert.NotContains(t, f.consumer.Kinds(), shared.KindCatalogSynced)
}
