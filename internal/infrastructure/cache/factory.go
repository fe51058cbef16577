package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/syncengine/backend/internal/domain/shared"
)

// DedupeStoreFactory creates the idempotency store the deployment calls for
type DedupeStoreFactory struct {
	redisConfig      RedisConfig
	logger           *zap.Logger
	allowMemFallback bool
}

// DedupeStoreFactoryOption is a functional option for the factory
type DedupeStoreFactoryOption func(*DedupeStoreFactory)

// WithLogger sets the factory logger
func WithLogger(logger *zap.Logger) DedupeStoreFactoryOption {
	return func(f *DedupeStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls falling back to the in-memory store when
// Redis is unavailable. Default is true.
func WithInMemoryFallback(allow bool) DedupeStoreFactoryOption {
	return func(f *DedupeStoreFactory) {
		f.allowMemFallback = allow
	}
}

// NewDedupeStoreFactory creates a factory for the given Redis settings
func NewDedupeStoreFactory(cfg RedisConfig, opts ...DedupeStoreFactoryOption) *DedupeStoreFactory {
	f := &DedupeStoreFactory{
		redisConfig:      cfg,
		logger:           zap.NewNop(),
		allowMemFallback: true,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateStore tries Redis first and falls back to the in-memory store when
// allowed. In-memory dedupe does not span processes, so the fallback is
// logged loudly.
func (f *DedupeStoreFactory) CreateStore() (shared.IdempotencyStore, error) {
	store, err := NewRedisDedupeStore(f.redisConfig)
	if err == nil {
		f.logger.Info("using Redis dedupe store")
		return store, nil
	}

	if !f.allowMemFallback {
		return nil, fmt.Errorf("Redis required for dedupe but unavailable: %w", err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory dedupe store",
		zap.Error(err),
	)
	return NewInMemoryDedupeStore(), nil
}
