package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed event IDs so that consumers can tolerate
// duplicate delivery. At-least-once dispatch makes duplicates a normal
// occurrence, not an error.
type IdempotencyStore interface {
	// MarkProcessed marks an event as processed with a TTL.
	// Returns true if the event was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks if an event has already been processed
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for consumer-side dedupe
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed event IDs. After this duration
	// the same event ID would be processed again.
	TTL time.Duration

	// Enabled determines whether dedupe checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
