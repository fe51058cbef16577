package sync

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// OperationDriver is the scheduling surface the service needs: immediate
// attempts for urgent work and queue teardown on deactivation.
type OperationDriver interface {
	AttemptNow(ctx context.Context, op *syncdomain.Operation)
	FailQueuedForChannel(ctx context.Context, channelID uuid.UUID, reason string) int
}

// Service manages channels and the propagation work fanned out to them
type Service struct {
	channels syncdomain.ChannelRepository
	ops      syncdomain.OperationStore
	products catalog.ProductRepository
	driver   OperationDriver
	logger   *zap.Logger
}

// NewService creates a new sync Service
func NewService(
	channels syncdomain.ChannelRepository,
	ops syncdomain.OperationStore,
	products catalog.ProductRepository,
	driver OperationDriver,
	logger *zap.Logger,
) *Service {
	return &Service{
		channels: channels,
		ops:      ops,
		products: products,
		driver:   driver,
		logger:   logger,
	}
}

// RegisterChannel registers a new sync target
func (s *Service) RegisterChannel(ctx context.Context, req RegisterChannelRequest) (*ChannelResponse, error) {
	if _, err := s.channels.FindByName(ctx, req.Name); err == nil {
		return nil, shared.NewDomainError("ALREADY_EXISTS", "Channel with this name already exists")
	} else if !errors.Is(err, shared.ErrNotFound) {
		return nil, err
	}

	channel, err := syncdomain.NewChannel(syncdomain.ChannelConfig{
		Name:        req.Name,
		Kind:        syncdomain.ChannelKind(req.Kind),
		Endpoint:    req.Endpoint,
		Credentials: req.Credentials,
		Capabilities: syncdomain.Capabilities{
			Inventory: req.Inventory,
			Pricing:   req.Pricing,
			Catalog:   req.Catalog,
			Orders:    req.Orders,
		},
		DeliveryMode:    syncdomain.DeliveryMode(req.DeliveryMode),
		BatchSize:       req.BatchSize,
		MaxRetries:      req.MaxRetries,
		DeliveryTimeout: time.Duration(req.DeliveryTimeout) * time.Second,
		Priority:        req.Priority,
	})
	if err != nil {
		return nil, err
	}

	if err := s.channels.Save(ctx, channel); err != nil {
		return nil, err
	}

	s.logger.Info("channel registered",
		zap.String("channel_id", channel.ID.String()),
		zap.String("name", channel.Name),
		zap.String("kind", string(channel.Kind)),
	)

	resp := ToChannelResponse(channel)
	return &resp, nil
}

// GetChannel retrieves a channel by ID
func (s *Service) GetChannel(ctx context.Context, id uuid.UUID) (*ChannelResponse, error) {
	channel, err := s.channels.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToChannelResponse(channel)
	return &resp, nil
}

// ListChannels lists all registered channels
func (s *Service) ListChannels(ctx context.Context) ([]ChannelResponse, error) {
	channels, err := s.channels.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	responses := make([]ChannelResponse, len(channels))
	for i, c := range channels {
		responses[i] = ToChannelResponse(c)
	}
	return responses, nil
}

// ActivateChannel re-enables a deactivated channel
func (s *Service) ActivateChannel(ctx context.Context, id uuid.UUID) (*ChannelResponse, error) {
	channel, err := s.channels.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	channel.Activate()
	if err := s.channels.Update(ctx, channel); err != nil {
		return nil, err
	}

	resp := ToChannelResponse(channel)
	return &resp, nil
}

// DeactivateChannel takes a channel out of rotation. Its queued operations
// are terminally failed so their outcome is observable, not lost.
func (s *Service) DeactivateChannel(ctx context.Context, id uuid.UUID) (*ChannelResponse, error) {
	channel, err := s.channels.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	channel.Deactivate()
	if err := s.channels.Update(ctx, channel); err != nil {
		return nil, err
	}

	failed := s.driver.FailQueuedForChannel(ctx, channel.ID, syncdomain.ErrChannelDeactivated.Message)
	s.logger.Info("channel deactivated",
		zap.String("channel_id", channel.ID.String()),
		zap.Int("failed_operations", failed),
	)

	resp := ToChannelResponse(channel)
	return &resp, nil
}

// ScheduleSync queues one product change for delivery to one channel. The
// kind defaults to a full catalog sync; high priority requests and realtime
// channels are attempted immediately instead of waiting for the next tick.
func (s *Service) ScheduleSync(ctx context.Context, req ScheduleSyncRequest) (*OperationResponse, error) {
	kind := syncdomain.OpCatalogSync
	if req.Kind != "" {
		kind = syncdomain.OperationKind(req.Kind)
		if !kind.IsValid() {
			return nil, shared.NewValidationError("unknown operation kind: " + req.Kind)
		}
	}

	channel, err := s.channels.FindByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}
	if !channel.IsActive() {
		return nil, syncdomain.ErrChannelDeactivated
	}
	if !channel.Capabilities.Supports(kind) {
		return nil, syncdomain.ErrCapabilityMismatch
	}

	product, err := s.products.FindByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}

	payload := req.Payload
	if len(payload) == 0 {
		payload, err = syncdomain.ShapePayload(snapshotOf(product), channel.Kind)
		if err != nil {
			return nil, err
		}
	}

	op := syncdomain.NewOperation(channel, product.ID, kind, payload)
	if err := s.ops.Save(ctx, op); err != nil {
		return nil, err
	}

	if channel.Realtime() || syncdomain.Priority(req.Priority) == syncdomain.PriorityHigh {
		s.driver.AttemptNow(ctx, op)
	}

	resp := ToOperationResponse(op)
	return &resp, nil
}

// Status returns a product's recent operations across all channels
func (s *Service) Status(ctx context.Context, productID uuid.UUID, limit int) (*SyncStatusResponse, error) {
	ops, err := s.ops.FindByProduct(ctx, productID, limit)
	if err != nil {
		return nil, err
	}

	responses := make([]OperationResponse, len(ops))
	for i, op := range ops {
		responses[i] = ToOperationResponse(op)
	}
	return &SyncStatusResponse{
		ProductID:  productID,
		Operations: responses,
	}, nil
}

// GetOperation retrieves one operation by ID
func (s *Service) GetOperation(ctx context.Context, id uuid.UUID) (*OperationResponse, error) {
	op, err := s.ops.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToOperationResponse(op)
	return &resp, nil
}

// snapshotOf captures the channel-facing view of a product
func snapshotOf(p *catalog.Product) syncdomain.ProductSnapshot {
	return syncdomain.ProductSnapshot{
		ProductID:   p.ID,
		SKU:         p.SKU,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Currency:    p.Currency,
		Inventory:   p.Inventory,
		ImageURL:    p.ImageURL,
		Category:    p.Category,
		Active:      p.Active,
		CapturedAt:  p.UpdatedAt,
	}
}
