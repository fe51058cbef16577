package sync

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// ConflictConfig holds conflict detection tuning
type ConflictConfig struct {
	// DetectionWindow bounds how far apart observations can be and still
	// count as the same disagreement
	DetectionWindow time.Duration
	// DefaultPolicy is applied to newly opened conflict records
	DefaultPolicy syncdomain.ResolutionPolicy
}

// DefaultConflictConfig returns the default detection tuning
func DefaultConflictConfig() ConflictConfig {
	return ConflictConfig{
		DetectionWindow: 5 * time.Minute,
		DefaultPolicy:   syncdomain.PolicyAutomatic,
	}
}

// ConflictService detects and resolves disagreements between channels about
// product state. Resolution writes the authoritative value back to the
// product and appends a correction event, which re-enters the regular
// fan-out so every channel converges.
type ConflictService struct {
	conflicts syncdomain.ConflictRepository
	channels  syncdomain.ChannelRepository
	products  catalog.ProductRepository
	events    shared.EventAppender
	config    ConflictConfig
	logger    *zap.Logger
}

// NewConflictService creates a new ConflictService
func NewConflictService(
	conflicts syncdomain.ConflictRepository,
	channels syncdomain.ChannelRepository,
	products catalog.ProductRepository,
	events shared.EventAppender,
	config ConflictConfig,
	logger *zap.Logger,
) *ConflictService {
	if config.DetectionWindow <= 0 {
		config.DetectionWindow = DefaultConflictConfig().DetectionWindow
	}
	if config.DefaultPolicy == "" {
		config.DefaultPolicy = DefaultConflictConfig().DefaultPolicy
	}
	return &ConflictService{
		conflicts: conflicts,
		channels:  channels,
		products:  products,
		events:    events,
		config:    config,
		logger:    logger,
	}
}

// conflictResolvedPayload is the event payload for conflict-resolved
type conflictResolvedPayload struct {
	ConflictID uuid.UUID `json:"conflict_id"`
	Attribute  string    `json:"attribute"`
	Policy     string    `json:"policy"`
	Value      string    `json:"value"`
}

// RecordObservation folds one channel's view of a product attribute into the
// open conflict record, opening one if needed. When the record becomes
// disputed and its policy is not manual, it is resolved on the spot.
func (s *ConflictService) RecordObservation(ctx context.Context, req RecordObservationRequest) (*ConflictResponse, error) {
	attribute := syncdomain.Attribute(req.Attribute)
	if !attribute.IsValid() {
		return nil, shared.NewDomainError("INVALID_INPUT", "unknown conflict attribute: "+req.Attribute)
	}

	value, err := observationValue(attribute, req)
	if err != nil {
		return nil, err
	}

	channel, err := s.channels.FindByID(ctx, req.ChannelID)
	if err != nil {
		return nil, err
	}

	if _, err := s.products.FindByID(ctx, req.ProductID); err != nil {
		return nil, err
	}

	observedAt := time.Now()
	if req.ObservedAt != nil {
		observedAt = *req.ObservedAt
	}

	record, err := s.conflicts.FindOpen(ctx, req.ProductID, attribute)
	fresh := false
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			return nil, err
		}
		record = syncdomain.NewConflictRecord(req.ProductID, attribute, s.config.DefaultPolicy)
		fresh = true
	}

	record.Observe(syncdomain.Observation{
		ChannelID:  channel.ID,
		Value:      value,
		ObservedAt: observedAt,
		Priority:   channel.Priority,
	}, s.config.DetectionWindow)

	if fresh {
		err = s.conflicts.Save(ctx, record)
	} else {
		err = s.conflicts.Update(ctx, record)
	}
	if err != nil {
		return nil, err
	}

	if record.Disputed() && record.Policy != syncdomain.PolicyManual {
		if err := s.resolveRecord(ctx, record, record.Policy, nil); err != nil {
			return nil, err
		}
	}

	resp := ToConflictResponse(record)
	return &resp, nil
}

// Get retrieves a conflict record by ID
func (s *ConflictService) Get(ctx context.Context, id uuid.UUID) (*ConflictResponse, error) {
	record, err := s.conflicts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := ToConflictResponse(record)
	return &resp, nil
}

// List returns conflict records matching the filter, newest first
func (s *ConflictService) List(ctx context.Context, filter syncdomain.ConflictFilter) ([]ConflictResponse, error) {
	records, err := s.conflicts.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	responses := make([]ConflictResponse, len(records))
	for i, r := range records {
		responses[i] = ToConflictResponse(r)
	}
	return responses, nil
}

// Resolve resolves an open conflict record, overriding its policy when the
// request names one. Manual resolution must supply the value.
func (s *ConflictService) Resolve(ctx context.Context, id uuid.UUID, req ResolveConflictRequest) (*ConflictResponse, error) {
	record, err := s.conflicts.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if record.Status != syncdomain.ConflictOpen {
		return nil, shared.NewDomainError("INVALID_STATE", "conflict is already resolved")
	}

	policy := record.Policy
	if req.Policy != "" {
		policy = syncdomain.ResolutionPolicy(req.Policy)
	}

	var manual *syncdomain.AttributeValue
	if policy == syncdomain.PolicyManual {
		value, err := manualValue(record.Attribute, req)
		if err != nil {
			return nil, err
		}
		manual = &value
	}

	if err := s.resolveRecord(ctx, record, policy, manual); err != nil {
		return nil, err
	}

	resp := ToConflictResponse(record)
	return &resp, nil
}

// resolveRecord computes the authoritative value, writes it back to the
// product, archives the record and appends the correction event.
func (s *ConflictService) resolveRecord(ctx context.Context, record *syncdomain.ConflictRecord, policy syncdomain.ResolutionPolicy, manual *syncdomain.AttributeValue) error {
	value, err := record.Resolve(policy, manual)
	if err != nil {
		return err
	}

	if err := s.writeBack(ctx, record, value); err != nil {
		return err
	}

	record.MarkResolved(value)
	if err := s.conflicts.Update(ctx, record); err != nil {
		return err
	}

	payload, err := json.Marshal(conflictResolvedPayload{
		ConflictID: record.ID,
		Attribute:  string(record.Attribute),
		Policy:     string(policy),
		Value:      value.String(),
	})
	if err != nil {
		return err
	}

	event := shared.NewEvent(shared.KindConflictResolved, shared.StreamQuality, record.ProductID, payload).
		WithOrigin("conflict-resolution")
	if _, err := s.events.Append(ctx, event); err != nil {
		s.logger.Error("failed to append correction event",
			zap.String("conflict_id", record.ID.String()),
			zap.Error(err),
		)
	}

	s.logger.Info("conflict resolved",
		zap.String("conflict_id", record.ID.String()),
		zap.String("attribute", string(record.Attribute)),
		zap.String("policy", string(policy)),
		zap.String("value", value.String()),
	)
	return nil
}

// writeBack applies the authoritative value to the canonical product record
func (s *ConflictService) writeBack(ctx context.Context, record *syncdomain.ConflictRecord, value syncdomain.AttributeValue) error {
	product, err := s.products.FindByID(ctx, record.ProductID)
	if err != nil {
		return err
	}

	switch record.Attribute {
	case syncdomain.AttrInventory:
		if _, err := product.SetInventory(value.Number.IntPart()); err != nil {
			return err
		}
	case syncdomain.AttrPrice:
		if err := product.SetPrice(value.Number); err != nil {
			return err
		}
	case syncdomain.AttrContent:
		if err := product.UpdateDetails(product.Name, value.Text, product.ImageURL, product.Category); err != nil {
			return err
		}
	}

	return s.products.Update(ctx, product)
}

// observationValue builds the attribute value an observation asserts
func observationValue(attribute syncdomain.Attribute, req RecordObservationRequest) (syncdomain.AttributeValue, error) {
	if attribute == syncdomain.AttrContent {
		if req.Text == nil {
			return syncdomain.AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "content observations require text")
		}
		return syncdomain.TextValue(*req.Text), nil
	}
	if req.Number == nil {
		return syncdomain.AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "numeric observations require number")
	}
	return syncdomain.NumericValue(*req.Number), nil
}

// manualValue builds the operator-supplied resolution value
func manualValue(attribute syncdomain.Attribute, req ResolveConflictRequest) (syncdomain.AttributeValue, error) {
	if attribute == syncdomain.AttrContent {
		if req.Text == nil {
			return syncdomain.AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "manual content resolution requires text")
		}
		return syncdomain.TextValue(*req.Text), nil
	}
	if req.Number == nil {
		return syncdomain.AttributeValue{}, shared.NewDomainError("INVALID_INPUT", "manual numeric resolution requires number")
	}
	return syncdomain.NumericValue(*req.Number), nil
}
