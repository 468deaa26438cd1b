// Package history records deduplicated price snapshots and serves them
// back ordered by collection time.
package history

import (
	"context"
	"time"

	"github.com/user/pricewatch/internal/domain"
)

// DedupWindow is the minimum spacing between two stored snapshots of the
// same URL. A snapshot collected within this window of an existing one is
// dropped, not merged.
const DedupWindow = 2 * time.Minute

// LimitCap bounds GetHistory regardless of what the caller asks for.
const LimitCap = 100

// Store is the snapshot log. SaveSnapshot reports accepted=false for
// invalid input (empty URL, price <= 0) and for duplicates inside the
// dedup window; the duplicate-check-then-insert is atomic per store.
type Store interface {
	SaveSnapshot(ctx context.Context, snap domain.PriceSnapshot) (bool, error)
	GetHistory(ctx context.Context, url string, limit int) ([]domain.PriceSnapshot, error)
	Ping(ctx context.Context) error
}

// clampLimit applies the hard cap and a sane default.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 30
	}
	if limit > LimitCap {
		return LimitCap
	}
	return limit
}

// valid reports whether a snapshot may be stored at all.
func valid(snap domain.PriceSnapshot) bool {
	return snap.URL != "" && snap.Price > 0
}
