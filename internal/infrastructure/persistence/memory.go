package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/syncengine/backend/internal/domain/catalog"
	"github.com/syncengine/backend/internal/domain/shared"
	syncdomain "github.com/syncengine/backend/internal/domain/sync"
)

// In-memory implementations of the persistence ports, for tests and
// single-process runs without a database. All of them copy on read and
// write so callers never share mutable state with the store.

// InMemoryChannelRepository implements ChannelRepository with a map
type InMemoryChannelRepository struct {
	mu       sync.RWMutex
	channels map[uuid.UUID]*syncdomain.Channel
}

// NewInMemoryChannelRepository creates an empty repository
func NewInMemoryChannelRepository() *InMemoryChannelRepository {
	return &InMemoryChannelRepository{
		channels: make(map[uuid.UUID]*syncdomain.Channel),
	}
}

// Save persists a new channel
func (r *InMemoryChannelRepository) Save(ctx context.Context, channel *syncdomain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[channel.ID]; exists {
		return shared.ErrAlreadyExists
	}
	for _, existing := range r.channels {
		if existing.Name == channel.Name {
			return shared.ErrAlreadyExists
		}
	}
	copied := *channel
	r.channels[channel.ID] = &copied
	return nil
}

// Update persists channel mutations
func (r *InMemoryChannelRepository) Update(ctx context.Context, channel *syncdomain.Channel) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[channel.ID]; !exists {
		return shared.ErrNotFound
	}
	copied := *channel
	r.channels[channel.ID] = &copied
	return nil
}

// FindByID retrieves a channel by its ID
func (r *InMemoryChannelRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channel, exists := r.channels[id]
	if !exists {
		return nil, shared.ErrNotFound
	}
	copied := *channel
	return &copied, nil
}

// FindByName retrieves a channel by its unique name
func (r *InMemoryChannelRepository) FindByName(ctx context.Context, name string) (*syncdomain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, channel := range r.channels {
		if channel.Name == name {
			copied := *channel
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

// FindAll lists all registered channels
func (r *InMemoryChannelRepository) FindAll(ctx context.Context) ([]*syncdomain.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	channels := make([]*syncdomain.Channel, 0, len(r.channels))
	for _, channel := range r.channels {
		copied := *channel
		channels = append(channels, &copied)
	}
	sort.Slice(channels, func(i, j int) bool {
		return channels[i].CreatedAt.Before(channels[j].CreatedAt)
	})
	return channels, nil
}

// FindActive lists channels currently accepting operations
func (r *InMemoryChannelRepository) FindActive(ctx context.Context) ([]*syncdomain.Channel, error) {
	all, err := r.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	active := make([]*syncdomain.Channel, 0, len(all))
	for _, channel := range all {
		if channel.IsActive() {
			active = append(active, channel)
		}
	}
	return active, nil
}

// Ensure InMemoryChannelRepository implements ChannelRepository
var _ syncdomain.ChannelRepository = (*InMemoryChannelRepository)(nil)

// InMemoryOperationStore implements OperationStore with a creation-ordered slice
type InMemoryOperationStore struct {
	mu   sync.RWMutex
	ops  []*syncdomain.Operation
	byID map[uuid.UUID]*syncdomain.Operation
}

// NewInMemoryOperationStore creates an empty store
func NewInMemoryOperationStore() *InMemoryOperationStore {
	return &InMemoryOperationStore{
		byID: make(map[uuid.UUID]*syncdomain.Operation),
	}
}

// Save persists a new operation
func (s *InMemoryOperationStore) Save(ctx context.Context, op *syncdomain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[op.ID]; exists {
		return shared.ErrAlreadyExists
	}
	copied := *op
	s.ops = append(s.ops, &copied)
	s.byID[op.ID] = &copied
	return nil
}

// Update persists operation mutations
func (s *InMemoryOperationStore) Update(ctx context.Context, op *syncdomain.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.byID[op.ID]
	if !exists {
		return shared.ErrNotFound
	}
	*stored = *op
	return nil
}

// FindByID retrieves an operation by its ID
func (s *InMemoryOperationStore) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	op, exists := s.byID[id]
	if !exists {
		return nil, shared.ErrNotFound
	}
	copied := *op
	return &copied, nil
}

// NonTerminal returns all outstanding operations in creation order
func (s *InMemoryOperationStore) NonTerminal(ctx context.Context) ([]*syncdomain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*syncdomain.Operation
	for _, op := range s.ops {
		if op.Terminal() {
			continue
		}
		copied := *op
		result = append(result, &copied)
	}
	return result, nil
}

// NonTerminalByChannel returns a channel's outstanding operations in creation order
func (s *InMemoryOperationStore) NonTerminalByChannel(ctx context.Context, channelID uuid.UUID) ([]*syncdomain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*syncdomain.Operation
	for _, op := range s.ops {
		if op.Terminal() || op.ChannelID != channelID {
			continue
		}
		copied := *op
		result = append(result, &copied)
	}
	return result, nil
}

// FindByProduct returns a product's operations, newest first
func (s *InMemoryOperationStore) FindByProduct(ctx context.Context, productID uuid.UUID, limit int) ([]*syncdomain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*syncdomain.Operation
	for i := len(s.ops) - 1; i >= 0; i-- {
		op := s.ops[i]
		if op.ProductID != productID {
			continue
		}
		copied := *op
		result = append(result, &copied)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

// CountByStatus counts operations per lifecycle state
func (s *InMemoryOperationStore) CountByStatus(ctx context.Context) (map[syncdomain.OperationStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[syncdomain.OperationStatus]int64)
	for _, op := range s.ops {
		counts[op.Status]++
	}
	return counts, nil
}

// CountActiveByChannel counts non-terminal operations per channel
func (s *InMemoryOperationStore) CountActiveByChannel(ctx context.Context) (map[uuid.UUID]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]int64)
	for _, op := range s.ops {
		if op.Terminal() {
			continue
		}
		counts[op.ChannelID]++
	}
	return counts, nil
}

// CountByChannelAndStatus counts operations per channel per lifecycle state
func (s *InMemoryOperationStore) CountByChannelAndStatus(ctx context.Context) (map[uuid.UUID]map[syncdomain.OperationStatus]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[uuid.UUID]map[syncdomain.OperationStatus]int64)
	for _, op := range s.ops {
		byStatus, ok := counts[op.ChannelID]
		if !ok {
			byStatus = make(map[syncdomain.OperationStatus]int64)
			counts[op.ChannelID] = byStatus
		}
		byStatus[op.Status]++
	}
	return counts, nil
}

// CompletedSince returns operations completed at or after the given instant
func (s *InMemoryOperationStore) CompletedSince(ctx context.Context, since time.Time) ([]*syncdomain.Operation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*syncdomain.Operation
	for _, op := range s.ops {
		if op.Status != syncdomain.OpCompleted || op.CompletedAt == nil {
			continue
		}
		if op.CompletedAt.Before(since) {
			continue
		}
		copied := *op
		result = append(result, &copied)
	}
	return result, nil
}

// Ensure InMemoryOperationStore implements OperationStore
var _ syncdomain.OperationStore = (*InMemoryOperationStore)(nil)

// InMemoryConflictRepository implements ConflictRepository with a map
type InMemoryConflictRepository struct {
	mu      sync.RWMutex
	records map[uuid.UUID]*syncdomain.ConflictRecord
}

// NewInMemoryConflictRepository creates an empty repository
func NewInMemoryConflictRepository() *InMemoryConflictRepository {
	return &InMemoryConflictRepository{
		records: make(map[uuid.UUID]*syncdomain.ConflictRecord),
	}
}

// Save persists a new conflict record
func (r *InMemoryConflictRepository) Save(ctx context.Context, record *syncdomain.ConflictRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; exists {
		return shared.ErrAlreadyExists
	}
	r.records[record.ID] = copyConflict(record)
	return nil
}

// Update persists conflict record mutations
func (r *InMemoryConflictRepository) Update(ctx context.Context, record *syncdomain.ConflictRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[record.ID]; !exists {
		return shared.ErrNotFound
	}
	r.records[record.ID] = copyConflict(record)
	return nil
}

// FindByID retrieves a conflict record by its ID
func (r *InMemoryConflictRepository) FindByID(ctx context.Context, id uuid.UUID) (*syncdomain.ConflictRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, shared.ErrNotFound
	}
	return copyConflict(record), nil
}

// FindOpen retrieves the open record for a product attribute
func (r *InMemoryConflictRepository) FindOpen(ctx context.Context, productID uuid.UUID, attribute syncdomain.Attribute) (*syncdomain.ConflictRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, record := range r.records {
		if record.ProductID == productID && record.Attribute == attribute && record.Status == syncdomain.ConflictOpen {
			return copyConflict(record), nil
		}
	}
	return nil, shared.ErrNotFound
}

// List returns conflict records matching the filter, newest first
func (r *InMemoryConflictRepository) List(ctx context.Context, filter syncdomain.ConflictFilter) ([]*syncdomain.ConflictRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*syncdomain.ConflictRecord
	for _, record := range r.records {
		if filter.ProductID != nil && record.ProductID != *filter.ProductID {
			continue
		}
		if filter.Attribute != nil && record.Attribute != *filter.Attribute {
			continue
		}
		if filter.Status != nil && record.Status != *filter.Status {
			continue
		}
		result = append(result, copyConflict(record))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

// CountByStatus counts conflict records per status
func (r *InMemoryConflictRepository) CountByStatus(ctx context.Context) (map[syncdomain.ConflictStatus]int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[syncdomain.ConflictStatus]int64)
	for _, record := range r.records {
		counts[record.Status]++
	}
	return counts, nil
}

func copyConflict(record *syncdomain.ConflictRecord) *syncdomain.ConflictRecord {
	copied := *record
	copied.Observations = append([]syncdomain.Observation(nil), record.Observations...)
	if record.ResolvedValue != nil {
		value := *record.ResolvedValue
		copied.ResolvedValue = &value
	}
	return &copied
}

// Ensure InMemoryConflictRepository implements ConflictRepository
var _ syncdomain.ConflictRepository = (*InMemoryConflictRepository)(nil)

// InMemoryProductRepository implements ProductRepository with a map
type InMemoryProductRepository struct {
	mu       sync.RWMutex
	products map[uuid.UUID]*catalog.Product
}

// NewInMemoryProductRepository creates an empty repository
func NewInMemoryProductRepository() *InMemoryProductRepository {
	return &InMemoryProductRepository{
		products: make(map[uuid.UUID]*catalog.Product),
	}
}

// Save persists a new product
func (r *InMemoryProductRepository) Save(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; exists {
		return shared.ErrAlreadyExists
	}
	for _, existing := range r.products {
		if existing.SKU == product.SKU {
			return shared.ErrAlreadyExists
		}
	}
	copied := *product
	r.products[product.ID] = &copied
	return nil
}

// Update persists product mutations
func (r *InMemoryProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.products[product.ID]; !exists {
		return shared.ErrNotFound
	}
	copied := *product
	r.products[product.ID] = &copied
	return nil
}

// FindByID retrieves a product by its ID
func (r *InMemoryProductRepository) FindByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	product, exists := r.products[id]
	if !exists {
		return nil, shared.ErrNotFound
	}
	copied := *product
	return &copied, nil
}

// FindBySKU retrieves a product by its unique SKU
func (r *InMemoryProductRepository) FindBySKU(ctx context.Context, sku string) (*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, product := range r.products {
		if product.SKU == sku {
			copied := *product
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

// FindAll lists products, newest first
func (r *InMemoryProductRepository) FindAll(ctx context.Context, limit, offset int) ([]*catalog.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*catalog.Product, 0, len(r.products))
	for _, product := range r.products {
		copied := *product
		products = append(products, &copied)
	}
	sort.Slice(products, func(i, j int) bool {
		return products[i].CreatedAt.After(products[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(products) {
			return nil, nil
		}
		products = products[offset:]
	}
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

// Ensure InMemoryProductRepository implements ProductRepository
var _ catalog.ProductRepository = (*InMemoryProductRepository)(nil)
