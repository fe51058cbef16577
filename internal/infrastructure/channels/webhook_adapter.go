package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// maxResponseSize limits the response body size to prevent memory exhaustion
const maxResponseSize = 1 * 1024 * 1024

// WebhookAdapter delivers operations by POSTing their payload to the
// channel's endpoint. One instance serves one channel kind; all kinds speak
// the same webhook contract.
//
// 2xx is success. 4xx means the payload is unacceptable and retrying is
// pointless, except 408 and 429 which are transient. 5xx and network faults
// are transient.
type WebhookAdapter struct {
	kind   syncdomain.ChannelKind
	client *http.Client
	logger *zap.Logger
}

// NewWebhookAdapter creates a webhook adapter for one channel kind. The
// client's timeout is left to the per-attempt context, which carries the
// channel's delivery timeout.
func NewWebhookAdapter(kind syncdomain.ChannelKind, client *http.Client, logger *zap.Logger) *WebhookAdapter {
	if client == nil {
		client = &http.Client{}
	}
	return &WebhookAdapter{
		kind:   kind,
		client: client,
		logger: logger,
	}
}

// Kind returns the channel kind this adapter serves
func (a *WebhookAdapter) Kind() syncdomain.ChannelKind {
	return a.kind
}

// Deliver POSTs the operation payload to the channel endpoint
func (a *WebhookAdapter) Deliver(ctx context.Context, channel *syncdomain.Channel, op *syncdomain.Operation) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, channel.Endpoint, bytes.NewReader(op.Payload))
	if err != nil {
		return shared.NewValidationError("invalid channel endpoint: " + err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Sync-Operation", op.Kind.String())
	req.Header.Set("X-Sync-Operation-ID", op.ID.String())
	if channel.Credentials != "" {
		req.Header.Set("Authorization", "Bearer "+channel.Credentials)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return syncdomain.NewTransportError("delivery timed out", err)
		}
		return syncdomain.NewTransportError("request failed", err)
	}
	defer resp.Body.Close()

	// Drain a bounded amount so the connection can be reused.
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode == http.StatusTooManyRequests:
		return syncdomain.NewTransportError(fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		reason := fmt.Sprintf("endpoint rejected payload with %d", resp.StatusCode)
		if len(body) > 0 {
			reason += ": " + truncateBody(body)
		}
		return shared.NewValidationError(reason)
	default:
		return syncdomain.NewTransportError(fmt.Sprintf("endpoint returned %d", resp.StatusCode), nil)
	}
}

// truncateBody keeps error reasons loggable
func truncateBody(body []byte) string {
	const limit = 256
	if len(body) > limit {
		return string(body[:limit]) + "..."
	}
	return string(body)
}

// Ensure WebhookAdapter implements ChannelAdapter
var _ syncdomain.ChannelAdapter = (*WebhookAdapter)(nil)

// RegisterAll installs a webhook adapter for every known channel kind
func RegisterAll(registry *syncdomain.AdapterRegistry, client *http.Client, logger *zap.Logger) {
	kinds := []syncdomain.ChannelKind{
		syncdomain.ChannelKindMarketplace,
		syncdomain.ChannelKindSocial,
		syncdomain.ChannelKindOffline,
		syncdomain.ChannelKindApp,
		syncdomain.ChannelKindWeb,
	}
	for _, kind := range kinds {
		registry.Register(NewWebhookAdapter(kind, client, logger))
	}
}
