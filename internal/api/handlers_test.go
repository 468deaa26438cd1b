package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/cache"
	"github.com/user/pricewatch/internal/config"
	"github.com/user/pricewatch/internal/domain"
	"github.com/user/pricewatch/internal/extract"
	"github.com/user/pricewatch/internal/history"
	"github.com/user/pricewatch/internal/listing"
	"github.com/user/pricewatch/internal/monitoring"
	"github.com/user/pricewatch/internal/orchestrator"
	"github.com/user/pricewatch/internal/urlkey"
)

type stubFetcher struct {
	body string
}

func (f *stubFetcher) Fetch(context.Context, string, bool, bool) (string, error) {
	return f.body, nil
}

type testEnv struct {
	server  *Server
	cache   *cache.Memory
	history *history.Memory
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()

	cfg := &config.Config{ServerPort: "0", MaxBatchSize: 50}
	mem := cache.NewMemory(time.Minute)
	hist := history.NewMemory()
	m := monitoring.NewMetrics(prometheus.NewRegistry())
	logger := zap.NewNop()

	f := &stubFetcher{body: `<html><h1>Produto</h1><meta itemprop="price" content="99,90"></html>`}
	o := orchestrator.New(f, extract.NewExtractor(), extract.NewNormalizer(), hist, m, logger, 6, 5)
	sc := listing.NewScraper(f, logger)

	return &testEnv{
		server:  NewServer(cfg, o, sc, hist, mem, m, logger),
		cache:   mem,
		history: hist,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.server.router.ServeHTTP(rec, req)
	return rec
}

func TestCompareRejectsEmptyList(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/compare", `{"urls": []}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "empty")
}

func TestCompareRejectsOversizedBatch(t *testing.T) {
	env := newTestServer(t)

	urls := make([]string, 51)
	for i := range urls {
		urls[i] = "https://shop.example/p/1"
	}
	body, _ := json.Marshal(domain.CompareRequest{URLs: urls})

	rec := env.do(http.MethodPost, "/api/compare", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "50")
}

func TestCompareRejectsMalformedURL(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/compare", `{"urls": ["not a url"]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid URL")
}

func TestCompareRejectsBadJSON(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/compare", `{"urls": [`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCompareHappyPath(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/compare",
		`{"urls": ["https://shop.example/p/1", "https://shop.example/p/2"]}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.CompareResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.TotalURLs)
	assert.Equal(t, 2, resp.Successful)
	assert.Zero(t, resp.Failed)
	require.Len(t, resp.Products, 2)
	assert.Equal(t, "https://shop.example/p/1", resp.Products[0].URL)
	assert.Equal(t, "https://shop.example/p/2", resp.Products[1].URL)
}

func TestSearchRejectsEmptyQuery(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/search", `{"query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchRejectsLongQuery(t *testing.T) {
	env := newTestServer(t)
	body, _ := json.Marshal(domain.SearchRequest{Query: strings.Repeat("a", 101)})
	rec := env.do(http.MethodPost, "/api/search", string(body))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "too long")
}

func TestSearchRejectsOversizedProductCap(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodPost, "/api/search", `{"query": "echo", "max_products": 51}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRequiresURL(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodGet, "/api/history", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodGet, "/api/history?url=https://shop.example/p/1&limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(http.MethodGet, "/api/history?url=https://shop.example/p/1&limit=-1", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHistoryReturnsSnapshots(t *testing.T) {
	env := newTestServer(t)
	url := "https://shop.example/p/1"

	_, err := env.history.SaveSnapshot(context.Background(), domain.PriceSnapshot{
		URL: url, Platform: "shop.example", Title: "Produto", Price: 99.90,
		Currency: "BRL", CollectedAt: time.Now(), ParseStatus: domain.StatusOK,
	})
	require.NoError(t, err)

	rec := env.do(http.MethodGet, "/api/history?url="+url, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp domain.HistoryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, url, resp.URL)
	assert.Equal(t, 1, resp.Total)
	require.Len(t, resp.History, 1)
	assert.InDelta(t, 99.90, resp.History[0].Price, 0.001)
}

func TestClearCacheSingleURL(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	// Two query forms of the same product must fall into one cache slot.
	env.cache.Set(ctx, urlkey.Canonicalize("https://shop.example/p/1?utm_source=x"), "page", 0)
	env.cache.Set(ctx, urlkey.Canonicalize("https://other.example/p/2"), "page", 0)
	require.Equal(t, 2, env.cache.Size(ctx))

	rec := env.do(http.MethodDelete, "/api/cache?url=https://shop.example/p/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.cache.Size(ctx))
}

func TestClearCacheSweepsQueryVariants(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	env.cache.Set(ctx, urlkey.Canonicalize("https://shop.example/s"), "page", 0)
	env.cache.Set(ctx, urlkey.Canonicalize("https://shop.example/s?page=2"), "page", 0)
	env.cache.Set(ctx, urlkey.Canonicalize("https://shop.example/s?page=3&sort=price"), "page", 0)
	// Sibling path sharing the prefix must survive the sweep.
	env.cache.Set(ctx, urlkey.Canonicalize("https://shop.example/s2"), "page", 0)
	require.Equal(t, 4, env.cache.Size(ctx))

	rec := env.do(http.MethodDelete, "/api/cache?url=https://shop.example/s", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 3, resp["removed"])
	assert.Equal(t, 1, env.cache.Size(ctx))

	_, ok := env.cache.Get(ctx, urlkey.Canonicalize("https://shop.example/s2"))
	assert.True(t, ok)
}

func TestClearCacheAll(t *testing.T) {
	env := newTestServer(t)
	ctx := context.Background()

	env.cache.Set(ctx, "page:a", "1", 0)
	env.cache.Set(ctx, "page:b", "2", 0)

	rec := env.do(http.MethodDelete, "/api/cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, env.cache.Size(ctx))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.EqualValues(t, 0, resp["cache_size"])
}

func TestHealthCheck(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(http.MethodGet, "/api/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "healthy", resp["history"])
}
