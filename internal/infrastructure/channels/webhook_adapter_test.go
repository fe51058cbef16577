package channels

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

func webhookChannel(t *testing.T, endpoint string) *syncdomain.Channel {
	t.Helper()
	channel, err := syncdomain.NewChannel(syncdomain.ChannelConfig{
		Name:         "marketplace",
		Kind:         syncdomain.ChannelKindMarketplace,
		Endpoint:     endpoint,
		Credentials:  "secret-token",
		Capabilities: syncdomain.Capabilities{Inventory: true, Pricing: true, Catalog: true},
	})
	require.NoError(t, err)
	return channel
}

func TestWebhookDeliver(t *testing.T) {
	adapter := NewWebhookAdapter(syncdomain.ChannelKindMarketplace, nil, zap.NewNop())
	payload := []byte(`{"quantity":5}`)

	t.Run("posts the payload with operation headers", func(t *testing.T) {
		var gotReq *http.Request
		var gotBody []byte
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotReq = r.Clone(context.Background())
			gotBody, _ = io.ReadAll(r.Body)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		channel := webhookChannel(t, srv.URL)
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		err := adapter.Deliver(context.Background(), channel, op)

		require.NoError(t, err)
		require.NotNil(t, gotReq)
		assert.Equal(t, http.MethodPost, gotReq.Method)
		assert.Equal(t, "application/json", gotReq.Header.Get("Content-Type"))
		assert.Equal(t, "inventory-update", gotReq.Header.Get("X-Sync-Operation"))
		assert.Equal(t, op.ID.String(), gotReq.Header.Get("X-Sync-Operation-ID"))
		assert.Equal(t, "Bearer secret-token", gotReq.Header.Get("Authorization"))
		assert.JSONEq(t, string(payload), string(gotBody))
	})

	t.Run("omits authorization without credentials", func(t *testing.T) {
		var gotAuth string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		channel := webhookChannel(t, srv.URL)
		channel.Credentials = ""
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		require.NoError(t, adapter.Deliver(context.Background(), channel, op))
		assert.Empty(t, gotAuth)
	})

	t.Run("rejection is terminal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"negative quantity"}`))
		}))
		defer srv.Close()

		channel := webhookChannel(t, srv.URL)
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		err := adapter.Deliver(context.Background(), channel, op)

		require.Error(t, err)
		assert.True(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "400")
		assert.Contains(t, err.Error(), "negative quantity")
	})

	t.Run("rate limiting is retryable", func(t *testing.T) {
		for _, status := range []int{http.StatusRequestTimeout, http.StatusTooManyRequests} {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(status)
			}))

			channel := webhookChannel(t, srv.URL)
			op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

			err := adapter.Deliver(context.Background(), channel, op)

			require.Error(t, err)
			assert.False(t, shared.IsValidation(err))
			srv.Close()
		}
	})

	t.Run("server errors are retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()

		channel := webhookChannel(t, srv.URL)
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		err := adapter.Deliver(context.Background(), channel, op)

		require.Error(t, err)
		assert.False(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("timeout is retryable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		channel := webhookChannel(t, srv.URL)
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := adapter.Deliver(ctx, channel, op)

		require.Error(t, err)
		assert.False(t, shared.IsValidation(err))
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("unreachable endpoint is retryable", func(t *testing.T) {
		channel := webhookChannel(t, "http://127.0.0.1:1")
		op := syncdomain.NewOperation(channel, uuid.New(), syncdomain.OpInventoryUpdate, payload)

		err := adapter.Deliver(context.Background(), channel, op)

		require.Error(t, err)
		assert.False(t, shared.IsValidation(err))
	})
}

func TestRegisterAll(t *testing.T) {
	registry := syncdomain.NewAdapterRegistry()
	RegisterAll(registry, nil, zap.NewNop())

	for _, kind := range []syncdomain.ChannelKind{
		syncdomain.ChannelKindMarketplace,
		syncdomain.ChannelKindSocial,
		syncdomain.ChannelKindOffline,
		syncdomain.ChannelKindApp,
		syncdomain.ChannelKindWeb,
	} {
		adapter, err := registry.Lookup(kind)
		require.NoError(t, err)
		assert.Equal(t, kind, adapter.Kind())
	}
}
