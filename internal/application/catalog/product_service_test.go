package catalog

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	"github.com/syncengine/backend/internal/infrastructure/persistence"
)

// recordingAppender captures appended events without dispatching them
type recordingAppender struct {
	mu     sync.Mutex
	events []*shared.Event
	err    error
}

func (a *recordingAppender) Append(ctx context.Context, event *shared.Event) (uuid.UUID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return uuid.Nil, a.err
	}
	a.events = append(a.events, event)
	return event.ID, nil
}

func (a *recordingAppender) kinds() []shared.EventKind {
	a.mu.Lock()
	defer a.mu.Unlock()
	kinds := make([]shared.EventKind, len(a.events))
	for i, e := range a.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func (a *recordingAppender) last() *shared.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.events) == 0 {
		return nil
	}
	return a.events[len(a.events)-1]
}

func newProductService(t *testing.T) (*ProductService, *recordingAppender) {
	t.Helper()
	appender := &recordingAppender{}
	svc := NewProductService(persistence.NewInMemoryProductRepository(), appender, zap.NewNop())
	return svc, appender
}

func createRequest() CreateProductRequest {
	return CreateProductRequest{
		SKU:       "tee-001",
		Name:      "Graphic Tee",
		Price:     decimal.NewFromInt(25),
		Inventory: 10,
	}
}

func TestProductServiceCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates a product and appends product-created", func(t *testing.T) {
		svc, appender := newProductService(t)

		resp, err := svc.Create(ctx, createRequest())

		require.NoError(t, err)
		assert.Equal(t, "TEE-001", resp.SKU)
		assert.True(t, resp.Active)

		event := appender.last()
		require.NotNil(t, event)
		assert.Equal(t, shared.KindProductCreated, event.Kind)
		assert.Equal(t, shared.StreamCatalog, event.Stream)
		assert.Equal(t, resp.ID, event.AggregateID)
		assert.Equal(t, "catalog", event.Origin)
	})

	t.Run("rejects a duplicate SKU regardless of case", func(t *testing.T) {
		svc, _ := newProductService(t)
		_, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		req := createRequest()
		req.SKU = "TEE-001"
		_, err = svc.Create(ctx, req)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	})

	t.Run("append failure does not fail the mutation", func(t *testing.T) {
		svc, appender := newProductService(t)
		appender.err = assert.AnError

		resp, err := svc.Create(ctx, createRequest())

		require.NoError(t, err)
		got, err := svc.Get(ctx, resp.ID)
		require.NoError(t, err)
		assert.Equal(t, resp.ID, got.ID)
	})
}

func TestProductServiceSetPrice(t *testing.T) {
	ctx := context.Background()
	svc, appender := newProductService(t)
	created, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	resp, err := svc.SetPrice(ctx, created.ID, SetPriceRequest{Price: decimal.NewFromInt(30)})

	require.NoError(t, err)
	assert.True(t, resp.Price.Equal(decimal.NewFromInt(30)))

	event := appender.last()
	require.NotNil(t, event)
	assert.Equal(t, shared.KindPriceUpdated, event.Kind)
	assert.Equal(t, shared.StreamPricing, event.Stream)
	assert.Contains(t, string(event.Payload), `"previous":"25"`)

	_, err = svc.SetPrice(ctx, created.ID, SetPriceRequest{Price: decimal.NewFromInt(-1)})
	require.Error(t, err)
}

func TestProductServiceInventory(t *testing.T) {
	ctx := context.Background()

	t.Run("adjustment appends inventory-changed", func(t *testing.T) {
		svc, appender := newProductService(t)
		created, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		resp, err := svc.AdjustInventory(ctx, created.ID, AdjustInventoryRequest{Delta: -4})

		require.NoError(t, err)
		assert.Equal(t, int64(6), resp.Inventory)
		assert.Equal(t, shared.KindInventoryChanged, appender.last().Kind)
		assert.Equal(t, shared.StreamInventory, appender.last().Stream)
	})

	t.Run("draining stock also appends stock-exhausted", func(t *testing.T) {
		svc, appender := newProductService(t)
		created, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		resp, err := svc.AdjustInventory(ctx, created.ID, AdjustInventoryRequest{Delta: -10})

		require.NoError(t, err)
		assert.Equal(t, int64(0), resp.Inventory)
		kinds := appender.kinds()
		assert.Contains(t, kinds, shared.KindInventoryChanged)
		assert.Equal(t, shared.KindStockExhausted, kinds[len(kinds)-1])
	})

	t.Run("rejects adjustments below zero", func(t *testing.T) {
		svc, _ := newProductService(t)
		created, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		_, err = svc.AdjustInventory(ctx, created.ID, AdjustInventoryRequest{Delta: -11})
		require.Error(t, err)
	})

	t.Run("absolute level replaces stock", func(t *testing.T) {
		svc, appender := newProductService(t)
		created, err := svc.Create(ctx, createRequest())
		require.NoError(t, err)

		resp, err := svc.SetInventory(ctx, created.ID, SetInventoryRequest{Level: 0})

		require.NoError(t, err)
		assert.Equal(t, int64(0), resp.Inventory)
		assert.Equal(t, shared.KindStockExhausted, appender.last().Kind)
	})
}

func TestProductServiceUpdate(t *testing.T) {
	ctx := context.Background()
	svc, appender := newProductService(t)
	created, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	name := "Premium Graphic Tee"
	category := "apparel"
	resp, err := svc.Update(ctx, created.ID, UpdateProductRequest{Name: &name, Category: &category})

	require.NoError(t, err)
	assert.Equal(t, name, resp.Name)
	assert.Equal(t, category, resp.Category)
	assert.Greater(t, resp.Version, created.Version)
	assert.Equal(t, shared.KindProductUpdated, appender.last().Kind)
}

func TestProductServiceDeactivate(t *testing.T) {
	ctx := context.Background()
	svc, appender := newProductService(t)
	created, err := svc.Create(ctx, createRequest())
	require.NoError(t, err)

	resp, err := svc.Deactivate(ctx, created.ID)

	require.NoError(t, err)
	assert.False(t, resp.Active)
	assert.Equal(t, shared.KindProductDeactivated, appender.last().Kind)

	// A second deactivation is an invalid state transition.
	_, err = svc.Deactivate(ctx, created.ID)
	require.Error(t, err)
}

func TestProductServiceList(t *testing.T) {
	ctx := context.Background()
	svc, _ := newProductService(t)

	for i, sku := range []string{"a-1", "a-2", "a-3"} {
		req := createRequest()
		req.SKU = sku
		req.Inventory = int64(i)
		_, err := svc.Create(ctx, req)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	page, err := svc.List(ctx, 2, 0)
	require.NoError(t, err)
	assert.Len(t, page, 2)

	_, err = svc.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
