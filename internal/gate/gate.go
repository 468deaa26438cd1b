// Package gate enforces per-domain politeness: a concurrency ceiling and
// a jittered minimum interval between requests to the same host.
package gate

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/user/pricewatch/internal/urlkey"
)

// Gate limits concurrent requests per domain and paces consecutive ones.
// Domain state is created lazily on first use and lives for the process
// lifetime.
type Gate struct {
	maxConcurrent int64
	minDelay      time.Duration
	maxDelay      time.Duration

	mu      sync.Mutex
	domains map[string]*domainState

	rngMu sync.Mutex
	rng   *rand.Rand

	// sleep is overridable in tests.
	sleep func(time.Duration)
}

type domainState struct {
	slots *semaphore.Weighted

	// mu serializes the read-last-timestamp / sleep / write-new-timestamp
	// sequence so two workers can never both observe a stale timestamp and
	// under-wait.
	mu          sync.Mutex
	lastRequest time.Time
}

// New builds a Gate. maxConcurrent <= 0 defaults to 2; delay bounds <= 0
// default to 600ms-1.2s.
func New(maxConcurrent int, minDelay, maxDelay time.Duration) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 2
	}
	if minDelay <= 0 {
		minDelay = 600 * time.Millisecond
	}
	if maxDelay < minDelay {
		maxDelay = 2 * minDelay
	}
	return &Gate{
		maxConcurrent: int64(maxConcurrent),
		minDelay:      minDelay,
		maxDelay:      maxDelay,
		domains:       make(map[string]*domainState),
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:         time.Sleep,
	}
}

// Acquire blocks until the URL's domain has a free admission slot and the
// jittered minimum interval since the domain's last request has elapsed,
// then stamps "now" as the new last-request time. The slot wait honors ctx;
// without a deadline on ctx the wait is unbounded.
func (g *Gate) Acquire(ctx context.Context, url string) error {
	st := g.state(urlkey.Domain(url))

	if err := st.slots.Acquire(ctx, 1); err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	delay := g.jitteredDelay()
	if elapsed := time.Since(st.lastRequest); elapsed < delay {
		g.sleep(delay - elapsed)
	}
	st.lastRequest = time.Now()
	return nil
}

// Release returns the URL's admission slot. Callers must pair every
// successful Acquire with exactly one Release.
func (g *Gate) Release(url string) {
	st := g.state(urlkey.Domain(url))
	st.slots.Release(1)
}

func (g *Gate) state(domain string) *domainState {
	g.mu.Lock()
	defer g.mu.Unlock()

	st, ok := g.domains[domain]
	if !ok {
		st = &domainState{slots: semaphore.NewWeighted(g.maxConcurrent)}
		g.domains[domain] = st
	}
	return st
}

// jitteredDelay draws a fresh uniform delay per acquisition so workers
// hitting the same domain do not fall into lockstep.
func (g *Gate) jitteredDelay() time.Duration {
	if g.maxDelay == g.minDelay {
		return g.minDelay
	}
	g.rngMu.Lock()
	defer g.rngMu.Unlock()
	return g.minDelay + time.Duration(g.rng.Int63n(int64(g.maxDelay-g.minDelay)))
}
