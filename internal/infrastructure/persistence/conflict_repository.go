package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// GormConflictRepository implements ConflictRepository using GORM
type GormConflictRepository struct {
	db *gorm.DB
}

// NewGormConflictRepository creates a new GormConflictRepository
func NewGormConflictRepository(db *gorm.DB) *GormConflictRepository {
	return &GormConflictRepository{db: db}
}

// Save persists a new conflict record
func (r *GormConflictRepository) Save(ctx context.Context, record *syncdomain.ConflictRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

// Update persists conflict record mutations
func (r *GormConflictRepository) Update(ctx context.Context, record *syncdomain.ConflictRecord) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// FindByID retrieves a conflict record by its ID
func (r *GormConflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.ConflictRecord, error) {
	var record syncdomain.ConflictRecord
	if err := r.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// FindOpen retrieves the open record for a product attribute
func (r *GormConflictRepository) FindOpen(ctx context.Context, productID uuid.UUID, attribute syncdomain.Attribute) (*syncdomain.ConflictRecord, error) {
	var record syncdomain.ConflictRecord
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND attribute = ? AND status = ?", productID, attribute, syncdomain.ConflictOpen).
		First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &record, nil
}

// List returns conflict records matching the filter, newest first
func (r *GormConflictRepository) List(ctx context.Context, filter syncdomain.ConflictFilter) ([]*syncdomain.ConflictRecord, error) {
	query := r.db.WithContext(ctx).Model(&syncdomain.ConflictRecord{})
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.Attribute != nil {
		query = query.Where("attribute = ?", *filter.Attribute)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}

	var records []*syncdomain.ConflictRecord
	if err := query.Order("created_at DESC").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// CountByStatus counts conflict records per status
func (r *GormConflictRepository) CountByStatus(ctx context.Context) (map[syncdomain.ConflictStatus]int64, error) {
	var rows []struct {
		Status syncdomain.ConflictStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).
		Model(&syncdomain.ConflictRecord{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[syncdomain.ConflictStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Ensure GormConflictRepository implements ConflictRepository
var _ syncdomain.ConflictRepository = (*GormConflictRepository)(nil)
