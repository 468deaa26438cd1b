// Package orchestrator fans batches of fetch jobs out across a bounded
// worker pool and fans results back in caller order.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/domain"
	"github.com/user/pricewatch/internal/fetch"
	"github.com/user/pricewatch/internal/history"
	"github.com/user/pricewatch/internal/monitoring"
)

// advisoryElapsed and advisoryBatchSize bound the "this took long" warning:
// batches above the size whose wall-clock time exceeds the threshold get a
// warning appended, never an abort.
const (
	advisoryElapsed   = 30 * time.Second
	advisoryBatchSize = 10
)

// Fetcher is the page-fetch dependency, satisfied by *fetch.Fetcher.
type Fetcher interface {
	Fetch(ctx context.Context, url string, useCache, forceRefresh bool) (string, error)
}

// Extractor and Normalizer are the external page-interpretation
// collaborators.
type Extractor interface {
	Extract(url, body string) domain.RawRecord
}

type Normalizer interface {
	Normalize(raw domain.RawRecord) domain.ProductRecord
}

// Orchestrator runs batches: fetch, extract, normalize, record.
type Orchestrator struct {
	fetcher    Fetcher
	extractor  Extractor
	normalizer Normalizer
	history    history.Store
	metrics    *monitoring.Metrics
	logger     *zap.Logger

	batchWorkers  int
	detailWorkers int
}

// New builds an Orchestrator. Worker counts <= 0 default to 6 for batches
// and 5 for the detail pass.
func New(f Fetcher, e Extractor, n Normalizer, h history.Store, m *monitoring.Metrics, l *zap.Logger, batchWorkers, detailWorkers int) *Orchestrator {
	if batchWorkers <= 0 {
		batchWorkers = 6
	}
	if detailWorkers <= 0 {
		detailWorkers = 5
	}
	return &Orchestrator{
		fetcher:       f,
		extractor:     e,
		normalizer:    n,
		history:       h,
		metrics:       m,
		logger:        l,
		batchWorkers:  batchWorkers,
		detailWorkers: detailWorkers,
	}
}

// RunBatch processes every job and returns one result per job, in job
// order. A failing job only fails its own slot; the batch always runs to
// completion. The warnings list is advisory.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []domain.FetchJob) ([]domain.FetchResult, []string) {
	start := time.Now()

	results := make([]domain.FetchResult, len(jobs))
	tasks := make(chan domain.FetchJob)

	workers := o.batchWorkers
	if len(jobs) < workers {
		workers = len(jobs)
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range tasks {
				// Each index is written exactly once, so the slice
				// needs no lock.
				results[job.Index] = o.processJob(ctx, job)
			}
		}()
	}
	for _, job := range jobs {
		tasks <- job
	}
	close(tasks)
	wg.Wait()

	elapsed := time.Since(start)
	o.metrics.ObserveBatchSeconds(elapsed.Seconds())

	var warnings []string
	if elapsed > advisoryElapsed && len(jobs) > advisoryBatchSize {
		warnings = append(warnings, fmt.Sprintf("batch took %.1fs for %d URLs", elapsed.Seconds(), len(jobs)))
	}

	ok, partial, blocked, errored := countStatuses(results)
	o.logger.Info("batch complete",
		zap.Int("urls", len(jobs)),
		zap.Duration("elapsed", elapsed),
		zap.Int("ok", ok),
		zap.Int("partial", partial),
		zap.Int("blocked", blocked),
		zap.Int("error", errored))

	return results, warnings
}

// processJob runs one job end to end. Panics inside extraction or
// normalization become an error result for this slot only.
func (o *Orchestrator) processJob(ctx context.Context, job domain.FetchJob) (result domain.FetchResult) {
	result = domain.FetchResult{Index: job.Index, URL: job.URL}

	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("job panicked", zap.String("url", job.URL), zap.Any("panic", r))
			o.metrics.IncErrorsTotal("job_panic")
			result = domain.FetchResult{
				Index:  job.Index,
				URL:    job.URL,
				Status: domain.StatusError,
				Error:  fmt.Sprintf("internal failure: %v", r),
			}
		}
	}()

	body, err := o.fetcher.Fetch(ctx, job.URL, job.UseCache, job.ForceRefresh)
	if err != nil {
		result.Status = statusForFetchError(err)
		result.Error = err.Error()
		o.metrics.IncErrorsTotal("fetch_failed")
		return result
	}

	raw := o.extractor.Extract(job.URL, body)
	rec := o.normalizer.Normalize(raw)
	o.recordSnapshot(ctx, rec)

	result.Success = true
	result.Status = rec.ParseStatus
	result.Data = &rec
	return result
}

// statusForFetchError maps the fetch taxonomy onto caller-visible status.
// Rate limiting that survived the retry cap reads as blocked to the
// caller, matching a 403.
func statusForFetchError(err error) domain.ParseStatus {
	switch fetch.KindOf(err) {
	case fetch.KindBlocked:
		return domain.StatusBlocked
	case fetch.KindRetryable:
		var fe *fetch.Error
		if errors.As(err, &fe) && fe.StatusCode == http.StatusTooManyRequests {
			return domain.StatusBlocked
		}
		return domain.StatusError
	default:
		return domain.StatusError
	}
}

// recordSnapshot appends a price observation for complete-enough records.
func (o *Orchestrator) recordSnapshot(ctx context.Context, rec domain.ProductRecord) {
	if rec.Price <= 0 || rec.ProductURL == "" {
		return
	}
	if rec.ParseStatus != domain.StatusOK && rec.ParseStatus != domain.StatusPartial {
		return
	}

	accepted, err := o.history.SaveSnapshot(ctx, domain.PriceSnapshot{
		URL:         rec.ProductURL,
		Platform:    rec.Platform,
		Title:       rec.Title,
		Price:       rec.Price,
		Currency:    rec.Currency,
		CollectedAt: rec.CollectedAt,
		ParseStatus: rec.ParseStatus,
	})
	if err != nil {
		o.logger.Warn("snapshot save failed", zap.String("url", rec.ProductURL), zap.Error(err))
		o.metrics.IncErrorsTotal("snapshot_save_failed")
		return
	}
	if accepted {
		o.metrics.IncSnapshots("accepted")
	} else {
		o.metrics.IncSnapshots("rejected")
	}
}

func countStatuses(results []domain.FetchResult) (ok, partial, blocked, errored int) {
	for _, r := range results {
		switch r.Status {
		case domain.StatusOK:
			ok++
		case domain.StatusPartial:
			partial++
		case domain.StatusBlocked:
			blocked++
		default:
			errored++
		}
	}
	return
}

// ProcessListing normalizes search-listing records, runs the detail
// enrichment pass on platforms that need it, records snapshots and
// returns per-product results in listing order.
func (o *Orchestrator) ProcessListing(ctx context.Context, raws []domain.RawRecord) []domain.FetchResult {
	records := make([]domain.ProductRecord, len(raws))
	for i, raw := range raws {
		records[i] = o.normalizer.Normalize(raw)
	}

	var enrichIdx []int
	var enrichable []domain.ProductRecord
	for i, rec := range records {
		if IsEnrichable(rec) {
			enrichIdx = append(enrichIdx, i)
			enrichable = append(enrichable, rec)
		}
	}
	if len(enrichable) > 0 {
		enriched := o.EnrichDetails(ctx, enrichable)
		for n, i := range enrichIdx {
			records[i] = enriched[n]
		}
	}

	results := make([]domain.FetchResult, len(records))
	for i := range records {
		rec := records[i]
		o.recordSnapshot(ctx, rec)
		results[i] = domain.FetchResult{
			Index:   i,
			Success: rec.ParseStatus == domain.StatusOK || rec.ParseStatus == domain.StatusPartial,
			URL:     rec.ProductURL,
			Status:  rec.ParseStatus,
			Data:    &rec,
		}
	}
	return results
}

// EnrichDetails refines listing-derived records by refetching each
// product's own page. The pass reuses the same fetcher, so per-domain
// pacing still applies. Listing values stay in place when the detail
// fetch fails.
func (o *Orchestrator) EnrichDetails(ctx context.Context, records []domain.ProductRecord) []domain.ProductRecord {
	if len(records) == 0 {
		return records
	}

	workers := o.detailWorkers
	if len(records) < workers {
		workers = len(records)
	}

	tasks := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range tasks {
				records[idx] = o.enrichOne(ctx, records[idx])
			}
		}()
	}
	for i := range records {
		tasks <- i
	}
	close(tasks)
	wg.Wait()
	return records
}

func (o *Orchestrator) enrichOne(ctx context.Context, rec domain.ProductRecord) (out domain.ProductRecord) {
	if rec.ProductURL == "" {
		return rec
	}
	orig := rec
	defer func() {
		if r := recover(); r != nil {
			o.logger.Warn("detail enrichment panicked, keeping listing values",
				zap.String("url", orig.ProductURL), zap.Any("panic", r))
			out = orig
		}
	}()

	body, err := o.fetcher.Fetch(ctx, rec.ProductURL, true, false)
	if err != nil {
		o.logger.Warn("detail fetch failed, keeping listing values",
			zap.String("url", rec.ProductURL), zap.Error(err))
		return rec
	}

	raw := o.extractor.Extract(rec.ProductURL, body)
	detail := o.normalizer.Normalize(raw)
	if detail.ParseStatus == domain.StatusBlocked {
		return rec
	}

	rec.InstallmentAccuracy = accuracyScore(detail.InstallmentValue, rec.InstallmentValue)

	// Detail-page values replace listing estimates where present.
	if detail.InstallmentValue > 0 {
		rec.InstallmentValue = detail.InstallmentValue
	}
	if detail.InstallmentCount > 0 {
		rec.InstallmentCount = detail.InstallmentCount
	}
	if detail.InstallmentTotal > 0 {
		rec.InstallmentTotal = detail.InstallmentTotal
	}
	if detail.Price > 0 {
		rec.Price = detail.Price
	}
	if detail.PreviousPrice > 0 {
		rec.PreviousPrice = detail.PreviousPrice
	}
	if detail.DiscountPercent > 0 {
		rec.DiscountPercent = detail.DiscountPercent
	}
	return rec
}

// accuracyScore compares the detail-page value against the listing
// estimate on a 0-100 scale. The 0.01 floor keeps the division defined
// when both values are tiny.
func accuracyScore(detail, listing float64) float64 {
	if detail <= 0 {
		return 0
	}
	if listing <= 0 {
		return 100
	}
	diff := detail - listing
	if diff < 0 {
		diff = -diff
	}
	ref := detail
	if listing > ref {
		ref = listing
	}
	if ref < 0.01 {
		ref = 0.01
	}
	score := 100 - (diff/ref)*100
	if score < 0 {
		score = 0
	}
	return score
}

// IsEnrichable reports whether a record belongs to a platform whose
// listing data benefits from a detail-page pass.
func IsEnrichable(rec domain.ProductRecord) bool {
	return strings.HasPrefix(rec.Platform, "amazon") && rec.ProductURL != ""
}
