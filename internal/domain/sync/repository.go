package sync

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChannelRepository is the persistence port for registered channels
type ChannelRepository interface {
	// Save persists a new channel
	Save(ctx context.Context, channel *Channel) error
	// Update persists channel mutations
	Update(ctx context.Context, channel *Channel) error
	// FindByID retrieves a channel by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Channel, error)
	// FindByName retrieves a channel by its unique name
	FindByName(ctx context.Context, name string) (*Channel, error)
	// FindAll lists all registered channels
	FindAll(ctx context.Context) ([]*Channel, error)
	// FindActive lists channels currently accepting operations
	FindActive(ctx context.Context) ([]*Channel, error)
}

// OperationStore is the persistence port for sync operations
type OperationStore interface {
	// Save persists a new operation
	Save(ctx context.Context, op *Operation) error
	// Update persists operation mutations
	Update(ctx context.Context, op *Operation) error
	// FindByID retrieves an operation by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*Operation, error)
	// NonTerminal returns all pending, processing and retrying operations
	// in creation order
	NonTerminal(ctx context.Context) ([]*Operation, error)
	// NonTerminalByChannel returns a channel's outstanding operations in
	// creation order
	NonTerminalByChannel(ctx context.Context, channelID uuid.UUID) ([]*Operation, error)
	// FindByProduct returns a product's operations, newest first
	FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*Operation, error)
	// CountByStatus counts operations per lifecycle state
	CountByStatus(ctx context.Context) (map[OperationStatus]int64, error)
	// CountActiveByChannel counts non-terminal operations per channel
	CountActiveByChannel(ctx context.Context) (map[uuid.UUID]int64, error)
	// CountByChannelAndStatus counts operations per channel per lifecycle
	// state
	CountByChannelAndStatus(ctx context.Context) (map[uuid.UUID]map[OperationStatus]int64, error)
	// CompletedSince returns operations completed at or after the given
	// instant, for latency accounting
	CompletedSince(ctx context.Context, since time.Time) ([]*Operation, error)
}

// ConflictFilter narrows conflict record listings
type ConflictFilter struct {
	ProductID *uuid.UUID
	Attribute *Attribute
	Status    *ConflictStatus
}

// ConflictRepository is the persistence port for conflict records
type ConflictRepository interface {
	// Save persists a new conflict record
	Save(ctx context.Context, record *ConflictRecord) error
	// Update persists conflict record mutations
	Update(ctx context.Context, record *ConflictRecord) error
	// FindByID retrieves a conflict record by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*ConflictRecord, error)
	// FindOpen retrieves the open record for a product attribute, or
	// shared.ErrNotFound when none exists
	FindOpen(ctx context.Context, productID uuid.UUID, attribute Attribute) (*ConflictRecord, error)
	// List returns conflict records matching the filter, newest first
	List(ctx context.Context, filter ConflictFilter) ([]*ConflictRecord, error)
	// CountByStatus counts conflict records per status
	CountByStatus(ctx context.Context) (map[ConflictStatus]int64, error)
}
