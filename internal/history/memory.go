package history

import (
	"context"
	"sort"
	"sync"

	"github.com/user/pricewatch/internal/domain"
)

// Memory is an in-process Store for tests and for running without a
// database. Not durable; production uses Postgres.
type Memory struct {
	mu    sync.Mutex
	byURL map[string][]domain.PriceSnapshot
}

func NewMemory() *Memory {
	return &Memory{byURL: make(map[string][]domain.PriceSnapshot)}
}

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) SaveSnapshot(_ context.Context, snap domain.PriceSnapshot) (bool, error) {
	if !valid(snap) {
		return false, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.byURL[snap.URL] {
		diff := snap.CollectedAt.Sub(existing.CollectedAt)
		if diff < 0 {
			diff = -diff
		}
		if diff < DedupWindow {
			return false, nil
		}
	}
	m.byURL[snap.URL] = append(m.byURL[snap.URL], snap)
	return true, nil
}

func (m *Memory) GetHistory(_ context.Context, url string, limit int) ([]domain.PriceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := m.byURL[url]
	out := make([]domain.PriceSnapshot, len(snaps))
	copy(out, snaps)
	sort.Slice(out, func(i, j int) bool {
		return out[i].CollectedAt.After(out[j].CollectedAt)
	})

	if limit = clampLimit(limit); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

var _ Store = (*Memory)(nil)
var _ Store = (*Postgres)(nil)
