package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// nonTerminalStatuses are the lifecycle states still eligible for work
var nonTerminalStatuses = []syncdomain.OperationStatus{
	syncdomain.OpPending,
	syncdomain.OpProcessing,
	syncdomain.OpRetrying,
}

// GormOperationStore implements OperationStore using GORM
type GormOperationStore struct {
	db *gorm.DB
}

// NewGormOperationStore creates a new GormOperationStore
func NewGormOperationStore(db *gorm.DB) *GormOperationStore {
	return &GormOperationStore{db: db}
}

// Save persists a new operation
func (r *GormOperationStore) Save(ctx context.Context, op *syncdomain.Operation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

// Update persists operation mutations
func (r *GormOperationStore) Update(ctx context.Context, op *syncdomain.Operation) error {
	return r.db.WithContext(ctx).Save(op).Error
}

// FindByID retrieves an operation by its ID
func (r *GormOperationStore) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.Operation, error) {
	var op syncdomain.Operation
	if err := r.db.WithContext(ctx).First(&op, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &op, nil
}

// NonTerminal returns all outstanding operations in creation order
func (r *GormOperationStore) NonTerminal(ctx context.Context) ([]*syncdomain.Operation, error) {
	var ops []*syncdomain.Operation
	err := r.db.WithContext(ctx).
		Where("status IN ?", nonTerminalStatuses).
		Order("created_at ASC").
		Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// NonTerminalByChannel returns a channel's outstanding operations in creation order
func (r *GormOperationStore) NonTerminalByChannel(ctx context.Context, channelID uuid.UUID) ([]*syncdomain.Operation, error) {
	var ops []*syncdomain.Operation
	err := r.db.WithContext(ctx).
		Where("channel_id = ? AND status IN ?", channelID, nonTerminalStatuses).
		Order("created_at ASC").
		Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// FindByProduct returns a product's operations, newest first
func (r *GormOperationStore) FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*syncdomain.Operation, error) {
	var ops []*syncdomain.Operation
	query := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&ops).Error; err != nil {
		return nil, err
	}
	return ops, nil
}

// CountByStatus counts operations per lifecycle state
func (r *GormOperationStore) CountByStatus(ctx context.Context) (map[syncdomain.OperationStatus]int64, error) {
	var rows []struct {
		Status syncdomain.OperationStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&syncdomain.Operation{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[syncdomain.OperationStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// CountActiveByChannel counts non-terminal operations per channel
func (r *GormOperationStore) CountActiveByChannel(ctx context.Context) (map[uuid.UUID]int64, error) {
	var rows []struct {
		ChannelID uuid.UUID
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&syncdomain.Operation{}).
		Select("channel_id, COUNT(*) AS count").
		Where("status IN ?", nonTerminalStatuses).
		Group("channel_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]int64, len(rows))
	for _, row := range rows {
		counts[row.ChannelID] = row.Count
	}
	return counts, nil
}

// CountByChannelAndStatus counts operations per channel per lifecycle state
func (r *GormOperationStore) CountByChannelAndStatus(ctx context.Context) (map[uuid.UUID]map[syncdomain.OperationStatus]int64, error) {
	var rows []struct {
		ChannelID uuid.UUID
		Status    syncdomain.OperationStatus
		Count     int64
	}
	err := r.db.WithContext(ctx).
		Model(&syncdomain.Operation{}).
		Select("channel_id, status, COUNT(*) AS count").
		Group("channel_id").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[uuid.UUID]map[syncdomain.OperationStatus]int64)
	for _, row := range rows {
		byStatus, ok := counts[row.ChannelID]
		if !ok {
			byStatus = make(map[syncdomain.OperationStatus]int64)
			counts[row.ChannelID] = byStatus
		}
		byStatus[row.Status] = row.Count
	}
	return counts, nil
}

// CompletedSince returns operations completed at or after the given instant
func (r *GormOperationStore) CompletedSince(ctx context.Context, since time.Time) ([]*syncdomain.Operation, error) {
	var ops []*syncdomain.Operation
	err := r.db.WithContext(ctx).
		Where("status = ? AND completed_at >= ?", syncdomain.OpCompleted, since).
		Order("completed_at ASC").
		Find(&ops).Error
	if err != nil {
		return nil, err
	}
	return ops, nil
}

// Ensure GormOperationStore implements OperationStore
var _ syncdomain.OperationStore = (*GormOperationStore)(nil)
