package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
)

// recordingConsumer captures every event it is handed
type recordingConsumer struct {
	id      string
	streams []shared.Stream
	kinds   []shared.EventKind
	fail    error
	panics  bool

	mu       sync.Mutex
	received []*shared.Event
}

func (c *recordingConsumer) ConsumerID() string        { return c.id }
func (c *recordingConsumer) Streams() []shared.Stream  { return c.streams }
func (c *recordingConsumer) Kinds() []shared.EventKind { return c.kinds }

func (c *recordingConsumer) Handle(_ context.Context, event *shared.Event) error {
	if c.panics {
		panic("consumer exploded")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.received = append(c.received, event)
	return c.fail
}

func (c *recordingConsumer) events() []*shared.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*shared.Event, len(c.received))
	copy(out, c.received)
	return out
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *InMemoryEventStore) {
	t.Helper()
	store := NewInMemoryEventStore()
	dispatcher := NewDispatcher(store, DispatcherConfig{
		DispatchInterval: 10 * time.Millisecond,
		BatchSize:        100,
	}, zap.NewNop())
	return dispatcher, store
}

func TestDispatcherAppend(t *testing.T) {
	ctx := context.Background()

	t.Run("accepts and stores valid events", func(t *testing.T) {
		dispatcher, store := newTestDispatcher(t)

		event := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, uuid.New(), nil)
		id, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)
		assert.Equal(t, event.ID, id)

		pending, err := store.Undelivered(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("rejects invalid events", func(t *testing.T) {
		dispatcher, _ := newTestDispatcher(t)

		_, err := dispatcher.Append(ctx, shared.NewEvent("", shared.StreamCatalog, uuid.New(), nil))
		assert.Error(t, err)
	})

	t.Run("high priority events reach consumers synchronously", func(t *testing.T) {
		dispatcher, store := newTestDispatcher(t)
		consumer := &recordingConsumer{id: "urgent"}
		require.NoError(t, dispatcher.Subscribe(consumer))

		event := shared.NewEvent(shared.KindStockExhausted, shared.StreamInventory, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		assert.Len(t, consumer.events(), 1)

		// The synchronous path leaves the event undelivered so that the
		// regular dispatch pass sends it again. Consumers are expected
		// to absorb the duplicate.
		pending, err := store.Undelivered(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})

	t.Run("normal priority events wait for the dispatch pass", func(t *testing.T) {
		dispatcher, _ := newTestDispatcher(t)
		consumer := &recordingConsumer{id: "normal"}
		require.NoError(t, dispatcher.Subscribe(consumer))

		event := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		assert.Empty(t, consumer.events())
	})
}

func TestDispatchPending(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers and marks delivered", func(t *testing.T) {
		dispatcher, store := newTestDispatcher(t)
		consumer := &recordingConsumer{id: "worker"}
		require.NoError(t, dispatcher.Subscribe(consumer))

		event := shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		dispatcher.DispatchPending(ctx)

		assert.Len(t, consumer.events(), 1)
		pending, err := store.Undelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("high priority events are redelivered by the pass", func(t *testing.T) {
		dispatcher, _ := newTestDispatcher(t)
		consumer := &recordingConsumer{id: "worker"}
		require.NoError(t, dispatcher.Subscribe(consumer))

		event := shared.NewEvent(shared.KindPriceUpdated, shared.StreamPricing, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		dispatcher.DispatchPending(ctx)

		// Once at append, once from the pass.
		assert.Len(t, consumer.events(), 2)
	})

	t.Run("consumer errors do not block marking", func(t *testing.T) {
		dispatcher, store := newTestDispatcher(t)
		consumer := &recordingConsumer{id: "flaky", fail: errors.New("downstream broke")}
		require.NoError(t, dispatcher.Subscribe(consumer))

		event := shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		dispatcher.DispatchPending(ctx)

		pending, err := store.Undelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("panicking consumers are contained", func(t *testing.T) {
		dispatcher, _ := newTestDispatcher(t)
		victim := &recordingConsumer{id: "victim", panics: true}
		witness := &recordingConsumer{id: "witness"}
		require.NoError(t, dispatcher.Subscribe(victim))
		require.NoError(t, dispatcher.Subscribe(witness))

		event := shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil)
		_, err := dispatcher.Append(ctx, event)
		require.NoError(t, err)

		assert.NotPanics(t, func() { dispatcher.DispatchPending(ctx) })
		assert.Len(t, witness.events(), 1)
	})

	t.Run("filters by stream and kind", func(t *testing.T) {
		dispatcher, _ := newTestDispatcher(t)
		pricingOnly := &recordingConsumer{
			id:      "pricing-only",
			streams: []shared.Stream{shared.StreamPricing},
		}
		creations := &recordingConsumer{
			id:    "creations",
			kinds: []shared.EventKind{shared.KindProductCreated},
		}
		require.NoError(t, dispatcher.Subscribe(pricingOnly))
		require.NoError(t, dispatcher.Subscribe(creations))

		_, err := dispatcher.Append(ctx, shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil))
		require.NoError(t, err)

		dispatcher.DispatchPending(ctx)

		assert.Empty(t, pricingOnly.events())
		assert.Len(t, creations.events(), 1)
	})
}

func TestDispatcherSubscribe(t *testing.T) {
	dispatcher, _ := newTestDispatcher(t)

	require.NoError(t, dispatcher.Subscribe(&recordingConsumer{id: "one"}))
	assert.Error(t, dispatcher.Subscribe(&recordingConsumer{id: "one"}))

	dispatcher.Unsubscribe("one")
	assert.NoError(t, dispatcher.Subscribe(&recordingConsumer{id: "one"}))
}

func TestDispatcherReplay(t *testing.T) {
	ctx := context.Background()
	dispatcher, store := newTestDispatcher(t)
	aggregateID := uuid.New()

	first := shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, aggregateID, nil)
	second := shared.NewEvent(shared.KindProductUpdated, shared.StreamCatalog, aggregateID, nil)
	other := shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil)
	for _, e := range []*shared.Event{first, second, other} {
		_, err := dispatcher.Append(ctx, e)
		require.NoError(t, err)
	}
	dispatcher.DispatchPending(ctx)

	consumer := &recordingConsumer{id: "replayer"}
	require.NoError(t, dispatcher.Subscribe(consumer))

	t.Run("redelivers the aggregate history in order", func(t *testing.T) {
		count, err := dispatcher.Replay(ctx, aggregateID, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		received := consumer.events()
		require.Len(t, received, 2)
		assert.Equal(t, first.ID, received[0].ID)
		assert.Equal(t, second.ID, received[1].ID)
	})

	t.Run("replay never changes delivered flags", func(t *testing.T) {
		pending, err := store.Undelivered(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("honors the from bound", func(t *testing.T) {
		future := time.Now().Add(time.Hour)
		count, err := dispatcher.Replay(ctx, aggregateID, &future)
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestDispatcherStartStop(t *testing.T) {
	ctx := context.Background()
	dispatcher, _ := newTestDispatcher(t)
	consumer := &recordingConsumer{id: "loop"}
	require.NoError(t, dispatcher.Subscribe(consumer))

	require.NoError(t, dispatcher.Start(ctx))

	_, err := dispatcher.Append(ctx, shared.NewEvent(shared.KindProductCreated, shared.StreamCatalog, uuid.New(), nil))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return len(consumer.events()) == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, dispatcher.Stop(ctx))
}
