package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/syncengine/backend/internal/domain/shared"
)

// defaultKeyPrefix namespaces dedupe keys in a shared Redis
const defaultKeyPrefix = "sync:dedupe:"

// RedisDedupeStore implements IdempotencyStore on Redis, for deployments
// where multiple instances must share dedupe state.
type RedisDedupeStore struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// NewRedisDedupeStore connects to Redis and verifies the connection
func NewRedisDedupeStore(cfg RedisConfig) (*RedisDedupeStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisDedupeStore{
		client:    client,
		keyPrefix: defaultKeyPrefix,
	}, nil
}

// NewRedisDedupeStoreWithClient wraps an existing client, useful for tests
// and for sharing one client across components.
func NewRedisDedupeStoreWithClient(client *redis.Client, keyPrefix string) *RedisDedupeStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisDedupeStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// MarkProcessed marks an event as processed with a TTL. SETNX makes the
// check-and-set atomic across instances.
func (s *RedisDedupeStore) MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	result, err := s.client.SetNX(ctx, s.keyPrefix+eventID, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark event as processed: %w", err)
	}
	return result, nil
}

// IsProcessed checks if an event has already been processed
func (s *RedisDedupeStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	exists, err := s.client.Exists(ctx, s.keyPrefix+eventID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check processed event: %w", err)
	}
	return exists > 0, nil
}

// Close closes the Redis client
func (s *RedisDedupeStore) Close() error {
	return s.client.Close()
}

// Ensure RedisDedupeStore implements IdempotencyStore
var _ shared.IdempotencyStore = (*RedisDedupeStore)(nil)
