package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed delivery keys to prevent duplicate processing.
// Delivery platforms retry webhooks on at-least-once semantics, and the polling
// fallback can observe the same order in overlapping windows, so both paths
// dedup through this store keyed on platform plus platform order ID.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed reports whether a key currently holds a live claim.
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close releases the store's resources.
	Close() error
}

// IdempotencyConfig controls webhook deduplication.
type IdempotencyConfig struct {
	// TTL bounds how long a delivery key stays claimed. Platforms stop
	// retrying well within a day, so the default is 24 hours.
	TTL time.Duration

	// Enabled turns deduplication off entirely when false.
	Enabled bool
}

// DefaultIdempotencyConfig enables deduplication with a 24 hour TTL.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
