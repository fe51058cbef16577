package shared

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventKindClassification(t *testing.T) {
	t.Run("all known kinds are valid", func(t *testing.T) {
		kinds := []EventKind{
			KindProductCreated, KindProductUpdated, KindProductDeactivated,
			KindInventoryChanged, KindStockExhausted, KindPriceUpdated,
			KindCatalogSynced, KindConflictResolved,
		}
		for _, kind := range kinds {
			assert.True(t, kind.IsValid(), kind.String())
		}
		assert.False(t, EventKind("product-teleported").IsValid())
	})

	t.Run("urgent kinds bypass the dispatch tick", func(t *testing.T) {
		assert.True(t, KindStockExhausted.HighPriority())
		assert.True(t, KindPriceUpdated.HighPriority())
		assert.True(t, KindProductDeactivated.HighPriority())

		assert.False(t, KindProductCreated.HighPriority())
		assert.False(t, KindInventoryChanged.HighPriority())
		assert.False(t, KindConflictResolved.HighPriority())
	})
}

func TestStreamValidity(t *testing.T) {
	for _, stream := range []Stream{StreamCatalog, StreamInventory, StreamPricing, StreamAnalytics, StreamQuality, StreamSearch} {
		assert.True(t, stream.IsValid(), stream.String())
	}
	assert.False(t, Stream("void").IsValid())
}

func TestNewEvent(t *testing.T) {
	aggregateID := uuid.New()
	event := NewEvent(KindPriceUpdated, StreamPricing, aggregateID, []byte(`{"previous":"25"}`))

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.NotEqual(t, uuid.Nil, event.CorrelationID)
	assert.Nil(t, event.CausationID)
	assert.Equal(t, aggregateID, event.AggregateID)
	assert.Equal(t, 1, event.SchemaVersion)
	assert.False(t, event.Delivered)
}

func TestEventCausedBy(t *testing.T) {
	cause := NewEvent(KindStockExhausted, StreamInventory, uuid.New(), nil)
	effect := NewEvent(KindConflictResolved, StreamQuality, cause.AggregateID, nil).CausedBy(cause)

	require.NotNil(t, effect.CausationID)
	assert.Equal(t, cause.ID, *effect.CausationID)
	assert.Equal(t, cause.CorrelationID, effect.CorrelationID)
}

func TestEventValidate(t *testing.T) {
	valid := NewEvent(KindProductCreated, StreamCatalog, uuid.New(), nil)
	require.NoError(t, valid.Validate())

	badKind := NewEvent(EventKind("bogus"), StreamCatalog, uuid.New(), nil)
	err := badKind.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	badStream := NewEvent(KindProductCreated, Stream("void"), uuid.New(), nil)
	assert.Error(t, badStream.Validate())

	noAggregate := NewEvent(KindProductCreated, StreamCatalog, uuid.Nil, nil)
	assert.Error(t, noAggregate.Validate())
}
