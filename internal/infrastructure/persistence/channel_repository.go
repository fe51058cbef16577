package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// GormChannelRepository implements ChannelRepository using GORM
type GormChannelRepository struct {
	db *gorm.DB
}

// NewGormChannelRepository creates a new GormChannelRepository
func NewGormChannelRepository(db *gorm.DB) *GormChannelRepository {
	return &GormChannelRepository{db: db}
}

// Save persists a new channel
func (r *GormChannelRepository) Save(ctx context.Context, channel *syncdomain.Channel) error {
	return r.db.WithContext(ctx).Create(channel).Error
}

// Update persists channel mutations
func (r *GormChannelRepository) Update(ctx context.Context, channel *syncdomain.Channel) error {
	return r.db.WithContext(ctx).Save(channel).Error
}

// FindByID retrieves a channel by its ID
func (r *GormChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.Channel, error) {
	var channel syncdomain.Channel
	if err := r.db.WithContext(ctx).First(&channel, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// FindByName retrieves a channel by its unique name
func (r *GormChannelRepository) FindByName(ctx context.Context, name string) (*syncdomain.Channel, error) {
	var channel syncdomain.Channel
	if err := r.db.WithContext(ctx).First(&channel, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &channel, nil
}

// FindAll lists all registered channels
func (r *GormChannelRepository) FindAll(ctx context.Context) ([]*syncdomain.Channel, error) {
	var channels []*syncdomain.Channel
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&channels).Error; err != nil {
		return nil, err
	}
	return channels, nil
}

// FindActive lists channels currently accepting operations
func (r *GormChannelRepository) FindActive(ctx context.Context) ([]*syncdomain.Channel, error) {
	var channels []*syncdomain.Channel
	err := r.db.WithContext(ctx).
		Where("status IN ?", []syncdomain.ChannelStatus{
			syncdomain.ChannelActive,
			syncdomain.ChannelErroring,
			syncdomain.ChannelSyncing,
		}).
		Order("created_at ASC").
		Find(&channels).Error
	if err != nil {
		return nil, err
	}
	return channels, nil
}

// Ensure GormChannelRepository implements ChannelRepository
var _ syncdomain.ChannelRepository = (*GormChannelRepository)(nil)
