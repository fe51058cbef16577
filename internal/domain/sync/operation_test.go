package sync

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncengine/backend/internal/domain/shared"
)

func testChannel(t *testing.T) *Channel {
	t.Helper()
	channel, err := NewChannel(ChannelConfig{
		Name:     "test-marketplace",
		Kind:     ChannelKindMarketplace,
		Endpoint: "https://marketplace.example.com/hook",
		Capabilities: Capabilities{
			Inventory: true,
			Pricing:   true,
			Catalog:   true,
		},
		MaxRetries: 3,
	})
	require.NoError(t, err)
	return channel
}

func TestNewOperation(t *testing.T) {
	channel := testChannel(t)
	productID := uuid.New()

	op := NewOperation(channel, productID, OpInventoryUpdate, []byte(`{"inventory":5}`))

	assert.NotEqual(t, uuid.Nil, op.ID)
	assert.Equal(t, channel.ID, op.ChannelID)
	assert.Equal(t, productID, op.ProductID)
	assert.Equal(t, OpPending, op.Status)
	assert.Equal(t, 0, op.Attempts)
	assert.Equal(t, channel.MaxRetries, op.MaxRetries)
	assert.False(t, op.Terminal())
}

func TestKindForEvent(t *testing.T) {
	tests := []struct {
		event      shared.EventKind
		want       OperationKind
		propagates bool
	}{
		{shared.KindInventoryChanged, OpInventoryUpdate, true},
		{shared.KindStockExhausted, OpInventoryUpdate, true},
		{shared.KindPriceUpdated, OpPriceChange, true},
		{shared.KindProductCreated, OpProductCreate, true},
		{shared.KindProductUpdated, OpProductUpdate, true},
		{shared.KindConflictResolved, OpProductUpdate, true},
		{shared.KindProductDeactivated, OpCatalogSync, true},
		{shared.KindCatalogSynced, "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			kind, ok := KindForEvent(tt.event)
			assert.Equal(t, tt.propagates, ok)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestOperationLifecycle(t *testing.T) {
	t.Run("start then complete", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)

		require.NoError(t, op.Start())
		assert.Equal(t, OpProcessing, op.Status)

		op.Complete()
		assert.Equal(t, OpCompleted, op.Status)
		require.NotNil(t, op.CompletedAt)
		assert.True(t, op.Terminal())
	})

	t.Run("start refuses processing operation", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)
		require.NoError(t, op.Start())

		assert.Error(t, op.Start())
	})

	t.Run("start refuses terminal operation", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)
		op.FailTerminal("bad payload")

		assert.Error(t, op.Start())
	})
}

func TestOperationFail(t *testing.T) {
	t.Run("moves to retrying with backoff", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpPriceChange, nil)
		require.NoError(t, op.Start())

		op.Fail("connection refused", time.Second, time.Minute)

		assert.Equal(t, OpRetrying, op.Status)
		assert.Equal(t, 1, op.Attempts)
		assert.Equal(t, "connection refused", op.LastError)
		require.NotNil(t, op.NextAttemptAt)
		assert.True(t, op.NextAttemptAt.After(time.Now()))
	})

	t.Run("exhausted retries fail terminally", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpPriceChange, nil)

		for i := 0; i < op.MaxRetries; i++ {
			require.NoError(t, op.Start())
			op.Fail("still down", time.Second, time.Minute)
		}

		assert.Equal(t, OpFailed, op.Status)
		assert.Equal(t, op.MaxRetries, op.Attempts)
		assert.Contains(t, op.LastError, ErrExhaustedRetries.Message)
		assert.Contains(t, op.LastError, "still down")
		assert.Nil(t, op.NextAttemptAt)
		assert.True(t, op.Terminal())
	})

	t.Run("fail terminal bypasses retries", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpPriceChange, nil)
		require.NoError(t, op.Start())

		op.FailTerminal("payload rejected")

		assert.Equal(t, OpFailed, op.Status)
		assert.Equal(t, 1, op.Attempts)
		assert.True(t, op.Terminal())
	})
}

func TestOperationAttemptableAt(t *testing.T) {
	now := time.Now()

	t.Run("pending is always attemptable", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)
		assert.True(t, op.AttemptableAt(now))
	})

	t.Run("retrying waits for backoff", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)
		require.NoError(t, op.Start())
		op.Fail("timeout", time.Minute, time.Hour)

		assert.False(t, op.AttemptableAt(now))
		// Fail samples its own clock, so check strictly past the two
		// minute backoff rather than exactly at it.
		assert.True(t, op.AttemptableAt(now.Add(3*time.Minute)))
	})

	t.Run("terminal is never attemptable", func(t *testing.T) {
		op := NewOperation(testChannel(t), uuid.New(), OpCatalogSync, nil)
		op.Complete()
		assert.False(t, op.AttemptableAt(now))
	})
}

func TestBackoff(t *testing.T) {
	base := time.Second
	cap := 5 * time.Minute

	assert.Equal(t, time.Second, Backoff(0, base, cap))
	assert.Equal(t, 2*time.Second, Backoff(1, base, cap))
	assert.Equal(t, 4*time.Second, Backoff(2, base, cap))
	assert.Equal(t, 32*time.Second, Backoff(5, base, cap))

	t.Run("caps large attempt counts", func(t *testing.T) {
		assert.Equal(t, cap, Backoff(10, base, cap))
		assert.Equal(t, cap, Backoff(31, base, cap))
		assert.Equal(t, cap, Backoff(1000, base, cap))
	})

	t.Run("falls back to defaults for zero tuning", func(t *testing.T) {
		assert.Equal(t, DefaultBaseBackoff, Backoff(0, 0, 0))
		assert.Equal(t, DefaultMaxBackoff, Backoff(40, 0, 0))
	})
}
