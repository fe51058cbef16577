package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	"github.com/syncengine/backend/internal/infrastructure/cache"
)

func TestIdempotentConsumer(t *testing.T) {
	ctx := context.Background()

	newWrapped := func(t *testing.T, inner *recordingConsumer) (*IdempotentConsumer, *DedupeMetrics) {
		t.Helper()
		store := cache.NewInMemoryDedupeStore()
		t.Cleanup(func() { _ = store.Close() })

		metrics := &DedupeMetrics{}
		consumer := NewIdempotentConsumer(inner, store, zap.NewNop(),
			WithDedupeMetrics(metrics),
		)
		return consumer, metrics
	}

	t.Run("passes first delivery through", func(t *testing.T) {
		inner := &recordingConsumer{id: "inner"}
		consumer, metrics := newWrapped(t, inner)

		event := shared.NewEvent(shared.KindStockExhausted, shared.StreamInventory, uuid.New(), nil)
		require.NoError(t, consumer.Handle(ctx, event))

		assert.Len(t, inner.events(), 1)
		assert.Equal(t, int64(1), metrics.Stats().EventsProcessed)
	})

	t.Run("suppresses the duplicate delivery", func(t *testing.T) {
		inner := &recordingConsumer{id: "inner"}
		consumer, metrics := newWrapped(t, inner)

		event := shared.NewEvent(shared.KindStockExhausted, shared.StreamInventory, uuid.New(), nil)
		require.NoError(t, consumer.Handle(ctx, event))
		require.NoError(t, consumer.Handle(ctx, event))

		assert.Len(t, inner.events(), 1)
		assert.Equal(t, int64(1), metrics.Stats().EventsDuplicate)
	})

	t.Run("distinct events are not confused", func(t *testing.T) {
		inner := &recordingConsumer{id: "inner"}
		consumer, _ := newWrapped(t, inner)

		require.NoError(t, consumer.Handle(ctx, shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, uuid.New(), nil)))
		require.NoError(t, consumer.Handle(ctx, shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, uuid.New(), nil)))

		assert.Len(t, inner.events(), 2)
	})

	t.Run("failures surface and count", func(t *testing.T) {
		inner := &recordingConsumer{id: "inner", fail: errors.New("no thanks")}
		consumer, metrics := newWrapped(t, inner)

		event := shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, uuid.New(), nil)
		assert.Error(t, consumer.Handle(ctx, event))
		assert.Equal(t, int64(1), metrics.Stats().EventsFailed)
	})

	t.Run("disabled config processes everything", func(t *testing.T) {
		inner := &recordingConsumer{id: "inner"}
		store := cache.NewInMemoryDedupeStore()
		t.Cleanup(func() { _ = store.Close() })

		consumer := NewIdempotentConsumer(inner, store, zap.NewNop(),
			WithDedupeConfig(shared.IdempotencyConfig{TTL: time.Hour, Enabled: false}),
		)

		event := shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, uuid.New(), nil)
		require.NoError(t, consumer.Handle(ctx, event))
		require.NoError(t, consumer.Handle(ctx, event))
		assert.Len(t, inner.events(), 2)
	})

	t.Run("delegates identity and interest to the wrapped consumer", func(t *testing.T) {
		inner := &recordingConsumer{
			id:      "inner",
			streams: []shared.Stream{shared.StreamPricing},
			kinds:   []shared.EventKind{shared.KindPriceUpdated},
		}
		consumer, _ := newWrapped(t, inner)

		assert.Equal(t, "inner", consumer.ConsumerID())
		assert.Equal(t, inner.Streams(), consumer.Streams())
		assert.Equal(t, inner.Kinds(), consumer.Kinds())
	})
}
