package event

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/syncengine/backend/internal/domain/shared"
)

// GormEventStore is a durable event store on a relational database
type GormEventStore struct {
	db *gorm.DB
}

// NewGormEventStore creates a GORM-backed event store
func NewGormEventStore(db *gorm.DB) *GormEventStore {
	return &GormEventStore{db: db}
}

// Append persists a new event
func (s *GormEventStore) Append(ctx context.Context, event *shared.Event) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// Undelivered returns events not yet marked delivered, oldest first
func (s *GormEventStore) Undelivered(ctx context.Context, limit int) ([]*shared.Event, error) {
	var events []*shared.Event
	query := s.db.WithContext(ctx).
		Where("delivered = ?", false).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// MarkDelivered flags events as dispatched
func (s *GormEventStore) MarkDelivered(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Model(&shared.Event{}).
		Where("id IN ?", ids).
		Update("delivered", true).Error
}

// History returns events for one aggregate, newest first
func (s *GormEventStore) History(ctx context.Context, aggregateID uuid.UUID, limit int) ([]*shared.Event, error) {
	var events []*shared.Event
	query := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// Range returns events for one aggregate in append order, optionally bounded
// below by a timestamp
func (s *GormEventStore) Range(ctx context.Context, aggregateID uuid.UUID, from *time.Time) ([]*shared.Event, error) {
	var events []*shared.Event
	query := s.db.WithContext(ctx).
		Where("aggregate_id = ?", aggregateID).
		Order("created_at ASC")
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if err := query.Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}

// CountByStreamKind returns event counts grouped by stream and kind
func (s *GormEventStore) CountByStreamKind(ctx context.Context) (map[shared.Stream]map[shared.EventKind]int64, error) {
	var rows []struct {
		Stream shared.Stream
		Kind   shared.EventKind
		Count  int64
	}
	err := s.db.WithContext(ctx).
		Model(&shared.Event{}).
		Select("stream, kind, COUNT(*) AS count").
		Group("stream").
		Group("kind").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[shared.Stream]map[shared.EventKind]int64)
	for _, row := range rows {
		if counts[row.Stream] == nil {
			counts[row.Stream] = make(map[shared.EventKind]int64)
		}
		counts[row.Stream][row.Kind] = row.Count
	}
	return counts, nil
}

// CountSince returns the number of events appended since a point in time
func (s *GormEventStore) CountSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&shared.Event{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	return count, err
}

// Ensure GormEventStore implements EventStore
var _ shared.EventStore = (*GormEventStore)(nil)
