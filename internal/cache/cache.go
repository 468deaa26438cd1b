// Package cache provides the short-lived page cache shared by all
// fetch workers.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is the entry lifetime used when Set is called with ttl <= 0.
const DefaultTTL = 600 * time.Second

// Store is the page-cache contract. Get reports absence with ok=false;
// an expired entry counts as absent. Implementations must be safe for
// concurrent use by orchestrator workers.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
	Delete(ctx context.Context, key string) bool
	Clear(ctx context.Context)
	Size(ctx context.Context) int
}
