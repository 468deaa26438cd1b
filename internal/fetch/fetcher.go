// Package fetch performs single logical page fetches: cache lookup,
// domain-gated network call, outcome classification and bounded retry.
package fetch

import (
	"context"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/cache"
	"github.com/user/pricewatch/internal/gate"
	"github.com/user/pricewatch/internal/monitoring"
	"github.com/user/pricewatch/internal/urlkey"
)

// Fetcher resolves a URL to a page body, consulting the cache first and
// pacing network calls through the domain gate.
type Fetcher struct {
	transport   Transport
	cache       cache.Store
	gate        *gate.Gate
	metrics     *monitoring.Metrics
	logger      *zap.Logger
	maxAttempts int

	rngMu sync.Mutex
	rng   *rand.Rand

	// sleep is overridable in tests.
	sleep func(time.Duration)
}

// New builds a Fetcher. maxAttempts <= 0 defaults to 2 total attempts.
func New(t Transport, c cache.Store, g *gate.Gate, m *monitoring.Metrics, l *zap.Logger, maxAttempts int) *Fetcher {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	return &Fetcher{
		transport:   t,
		cache:       c,
		gate:        g,
		metrics:     m,
		logger:      l,
		maxAttempts: maxAttempts,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		sleep:       time.Sleep,
	}
}

// Fetch returns the page body for url. Cache hits return immediately and
// never touch the gate or the network. Each network attempt holds the
// domain gate for exactly the duration of the request. Retryable outcomes
// are retried on a fixed schedule up to the attempt cap; the last error is
// returned once the cap is exhausted.
func (f *Fetcher) Fetch(ctx context.Context, url string, useCache, forceRefresh bool) (string, error) {
	key := urlkey.Canonicalize(url)

	if useCache && !forceRefresh {
		if body, ok := f.cache.Get(ctx, key); ok {
			f.metrics.IncCacheHits()
			return body, nil
		}
		f.metrics.IncCacheMisses()
	}

	var lastErr error
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			f.metrics.IncRetries()
			f.sleep(f.backoffDelay(attempt))
		}

		body, err := f.attempt(ctx, url)
		if err == nil {
			if useCache {
				f.cache.Set(ctx, key, body, 0)
			}
			return body, nil
		}
		lastErr = err

		kind := KindOf(err)
		if kind == KindBlocked {
			f.metrics.IncBlocked()
			return "", err
		}
		if kind != KindRetryable {
			return "", err
		}
		f.logger.Warn("retryable fetch failure",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", f.maxAttempts),
			zap.Error(err))
	}
	return "", lastErr
}

// attempt performs one gated network request. The gate is released on
// every exit path.
func (f *Fetcher) attempt(ctx context.Context, url string) (string, error) {
	if err := f.gate.Acquire(ctx, url); err != nil {
		return "", &Error{Kind: KindFatal, URL: url, Err: err}
	}
	defer f.gate.Release(url)

	resp, err := f.transport.Do(ctx, url)
	f.metrics.IncFetches()
	if err != nil {
		if isTimeout(err) {
			return "", &Error{Kind: KindRetryable, URL: url, Err: err}
		}
		return "", &Error{Kind: KindFatal, URL: url, Err: err}
	}
	return f.classify(url, resp)
}

// classify maps a transport response onto the closed error taxonomy.
func (f *Fetcher) classify(url string, resp *Response) (string, error) {
	switch {
	case resp.StatusCode == http.StatusForbidden:
		return "", &Error{Kind: KindBlocked, StatusCode: resp.StatusCode, URL: url}
	case resp.StatusCode == http.StatusTooManyRequests,
		resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable:
		return "", &Error{Kind: KindRetryable, StatusCode: resp.StatusCode, URL: url}
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", &Error{Kind: KindFatal, StatusCode: resp.StatusCode, URL: url}
	case LooksBlocked(resp.Body):
		return "", &Error{Kind: KindBlocked, StatusCode: resp.StatusCode, URL: url}
	}
	return resp.Body, nil
}

// backoffDelay returns the wait before the given attempt: a fixed 1s
// before the second attempt, then 2.5s plus up to 500ms of jitter. Only
// the second attempt is reachable at the default cap; the schedule
// generalizes to higher caps.
func (f *Fetcher) backoffDelay(attempt int) time.Duration {
	if attempt == 1 {
		return time.Second
	}
	f.rngMu.Lock()
	jitter := time.Duration(f.rng.Int63n(int64(500 * time.Millisecond)))
	f.rngMu.Unlock()
	return 2500*time.Millisecond + jitter
}
