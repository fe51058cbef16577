package sync

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
	"github.com/syncengine/backend/internal/infrastructure/persistence"
)

// recordingDriver captures AttemptNow and FailQueuedForChannel calls
type recordingDriver struct {
	mu       sync.Mutex
	attempts []uuid.UUID
	failed   []uuid.UUID
}

func (d *recordingDriver) AttemptNow(_ context.Context, op *syncdomain.Operation) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts = append(d.attempts, op.ID)
}

func (d *recordingDriver) FailQueuedForChannel(_ context.Context, channelID uuid.UUID, _ string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.failed = append(d.failed, channelID)
	return 0
}

func (d *recordingDriver) attemptCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.attempts)
}

type serviceFixture struct {
	service  *Service
	channels *persistence.InMemoryChannelRepository
	ops      *persistence.InMemoryOperationStore
	products *persistence.InMemoryProductRepository
	driver   *recordingDriver
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	channels := persistence.NewInMemoryChannelRepository()
	ops := persistence.NewInMemoryOperationStore()
	products := persistence.NewInMemoryProductRepository()
	driver := &recordingDriver{}
	return &serviceFixture{
		service:  NewService(channels, ops, products, driver, zap.NewNop()),
		channels: channels,
		ops:      ops,
		products: products,
		driver:   driver,
	}
}

func (f *serviceFixture) seedProduct(t *testing.T) *catalog.Product {
	t.Helper()
	product, err := catalog.NewProduct("tee-001", "Graphic Tee", decimal.NewFromInt(25), 10)
	require.NoError(t, err)
	require.NoError(t, f.products.Save(context.Background(), product))
	return product
}

func registerRequest(name string) RegisterChannelRequest {
	return RegisterChannelRequest{
		Name:      name,
		Kind:      "marketplace",
		Endpoint:  "https://marketplace.example.com/hook",
		Inventory: true,
		Pricing:   true,
		Catalog:   true,
	}
}

func TestRegisterChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("registers with defaults", func(t *testing.T) {
		f := newServiceFixture(t)

		resp, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))

		require.NoError(t, err)
		assert.Equal(t, "amazon", resp.Name)
		assert.Equal(t, string(syncdomain.ChannelActive), resp.Status)
		assert.Equal(t, string(syncdomain.DeliveryBatched), resp.DeliveryMode)
	})

	t.Run("rejects duplicate names", func(t *testing.T) {
		f := newServiceFixture(t)
		_, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		_, err = f.service.RegisterChannel(ctx, registerRequest("amazon"))

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "ALREADY_EXISTS", domainErr.Code)
	})

	t.Run("rejects unknown kinds", func(t *testing.T) {
		f := newServiceFixture(t)
		req := registerRequest("fax")
		req.Kind = "fax"

		_, err := f.service.RegisterChannel(ctx, req)
		require.Error(t, err)
	})
}

func TestChannelLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)

	registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
	require.NoError(t, err)

	deactivated, err := f.service.DeactivateChannel(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, string(syncdomain.ChannelInactive), deactivated.Status)
	assert.Equal(t, []uuid.UUID{registered.ID}, f.driver.failed)

	activated, err := f.service.ActivateChannel(ctx, registered.ID)
	require.NoError(t, err)
	assert.Equal(t, string(syncdomain.ChannelActive), activated.Status)

	listed, err := f.service.ListChannels(ctx)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
}

func TestScheduleSync(t *testing.T) {
	ctx := context.Background()

	t.Run("queues a catalog sync by default", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		resp, err := f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
		})

		require.NoError(t, err)
		assert.Equal(t, string(syncdomain.OpCatalogSync), resp.Kind)
		assert.Equal(t, string(syncdomain.OpPending), resp.Status)

		// Batched channels wait for the tick.
		assert.Zero(t, f.driver.attemptCount())
	})

	t.Run("queues the requested change kind and payload", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		resp, err := f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
			Kind:      string(syncdomain.OpInventoryUpdate),
			Payload:   json.RawMessage(`{"inventory":0}`),
		})

		require.NoError(t, err)
		assert.Equal(t, string(syncdomain.OpInventoryUpdate), resp.Kind)

		op, err := f.ops.FindByID(ctx, resp.ID)
		require.NoError(t, err)
		assert.JSONEq(t, `{"inventory":0}`, string(op.Payload))
	})

	t.Run("rejects unknown change kinds", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
			Kind:      "order-export",
		})
		assert.True(t, shared.IsValidation(err))
	})

	t.Run("realtime channels are attempted immediately", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		req := registerRequest("webstore")
		req.DeliveryMode = string(syncdomain.DeliveryRealtime)
		registered, err := f.service.RegisterChannel(ctx, req)
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
		})

		require.NoError(t, err)
		assert.Equal(t, 1, f.driver.attemptCount())
	})

	t.Run("high priority skips the tick on batched channels", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
			Priority:  string(syncdomain.PriorityHigh),
		})

		require.NoError(t, err)
		assert.Equal(t, 1, f.driver.attemptCount())
	})

	t.Run("rejects channels without the needed capability", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		req := registerRequest("stock-feed")
		req.Catalog = false
		registered, err := f.service.RegisterChannel(ctx, req)
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
		})
		assert.ErrorIs(t, err, syncdomain.ErrCapabilityMismatch)
	})

	t.Run("rejects deactivated channels", func(t *testing.T) {
		f := newServiceFixture(t)
		product := f.seedProduct(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)
		_, err = f.service.DeactivateChannel(ctx, registered.ID)
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
		})
		assert.ErrorIs(t, err, syncdomain.ErrChannelDeactivated)
	})

	t.Run("rejects unknown products", func(t *testing.T) {
		f := newServiceFixture(t)
		registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
		require.NoError(t, err)

		_, err = f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: uuid.New(),
			ChannelID: registered.ID,
		})
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t)
	product := f.seedProduct(t)
	registered, err := f.service.RegisterChannel(ctx, registerRequest("amazon"))
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := f.service.ScheduleSync(ctx, ScheduleSyncRequest{
			ProductID: product.ID,
			ChannelID: registered.ID,
		})
		require.NoError(t, err)
	}

	status, err := f.service.Status(ctx, product.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, product.ID, status.ProductID)
	assert.Len(t, status.Operations, 2)

	op, err := f.service.GetOperation(ctx, status.Operations[0].ID)
	require.NoError(t, err)
	assert.Equal(t, product.ID, op.ProductID)
}
