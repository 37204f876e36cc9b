package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers which events a handler has already seen
type IdempotencyStore interface {
	// MarkProcessed records eventID for ttl. It returns false when the id was
	// already recorded and has not expired.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	IsProcessed(ctx context.Context, eventID string) (bool, error)

	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL bounds how long an event id is remembered
	TTL     time.Duration
	Enabled bool
}

// DefaultIdempotencyConfig remembers events for 24 hours
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
