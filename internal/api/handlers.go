package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/domain"
	"github.com/user/pricewatch/internal/history"
	"github.com/user/pricewatch/internal/urlkey"
)

const maxQueryLength = 100

// handleCompare runs a batch of product URLs through the orchestrator.
// Validation failures reject the whole request before any fetch work;
// individual URL failures only mark their own result slot.
func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req domain.CompareRequest
	req.UseCache = true
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if len(req.URLs) == 0 {
		s.respondWithError(w, http.StatusBadRequest, "URLs list cannot be empty")
		return
	}
	if len(req.URLs) > s.config.MaxBatchSize {
		s.respondWithError(w, http.StatusBadRequest,
			"Too many URLs: limit is "+strconv.Itoa(s.config.MaxBatchSize))
		return
	}

	jobs := make([]domain.FetchJob, len(req.URLs))
	for i, u := range req.URLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			s.respondWithError(w, http.StatusBadRequest, "Invalid URL in list: "+u)
			return
		}
		jobs[i] = domain.FetchJob{
			Index:        i,
			URL:          u,
			UseCache:     req.UseCache,
			ForceRefresh: req.ForceRefresh,
		}
	}

	results, warnings := s.orchestrator.RunBatch(r.Context(), jobs)
	s.respondWithJSON(w, http.StatusOK, buildCompareResponse(results, warnings))
}

// handleSearch queries the supported marketplaces for a search term.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req domain.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		s.respondWithError(w, http.StatusBadRequest, "Search term cannot be empty")
		return
	}
	if len(req.Query) > maxQueryLength {
		s.respondWithError(w, http.StatusBadRequest, "Search term too long (max 100 characters)")
		return
	}
	if req.MaxProducts > s.config.MaxBatchSize {
		s.respondWithError(w, http.StatusBadRequest,
			"Too many products: limit is "+strconv.Itoa(s.config.MaxBatchSize))
		return
	}

	start := time.Now()
	raws, warnings := s.scraper.Search(r.Context(), req.Query, req.MaxPages, req.MaxProducts)
	results := s.orchestrator.ProcessListing(r.Context(), raws)

	if elapsed := time.Since(start); elapsed > 20*time.Second {
		warnings = append(warnings, "search took "+elapsed.Truncate(100*time.Millisecond).String())
	}

	s.respondWithJSON(w, http.StatusOK, buildCompareResponse(results, warnings))
}

// handleHistory returns the stored price snapshots for one URL.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	u := strings.TrimSpace(r.URL.Query().Get("url"))
	if u == "" {
		s.respondWithError(w, http.StatusBadRequest, "URL query parameter is required")
		return
	}

	limit := 30
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			s.respondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	if limit > history.LimitCap {
		limit = history.LimitCap
	}

	snaps, err := s.history.GetHistory(r.Context(), u, limit)
	if err != nil {
		s.logger.Error("failed to load price history", zap.String("url", u), zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "Could not retrieve history")
		return
	}

	s.respondWithJSON(w, http.StatusOK, domain.HistoryResponse{
		URL:     u,
		Total:   len(snaps),
		History: snaps,
	})
}

// patternDeleter is the optional bulk-invalidation capability of the
// in-memory cache backend.
type patternDeleter interface {
	DeleteByPattern(pattern string) int
}

// handleClearCache drops one page from the cache, or the whole cache when
// no URL is given. Invalidating a URL also sweeps its query variants
// (pagination, sorting) on backends that support pattern deletion.
func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if u := r.URL.Query().Get("url"); u != "" {
		key := urlkey.Canonicalize(u)
		base := strings.SplitN(key, "?", 2)[0]

		removed := 0
		if s.cache.Delete(ctx, key) {
			removed++
		}
		if base != key && s.cache.Delete(ctx, base) {
			removed++
		}
		if pd, ok := s.cache.(patternDeleter); ok {
			// base+"?" matches only query variants of this exact page,
			// never sibling paths sharing a prefix.
			removed += pd.DeleteByPattern(base + "?")
		}

		s.respondWithJSON(w, http.StatusOK, map[string]any{
			"deleted":    removed > 0,
			"removed":    removed,
			"key":        key,
			"cache_size": s.cache.Size(ctx),
		})
		return
	}

	s.cache.Clear(ctx)
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"message":    "cache cleared",
		"cache_size": s.cache.Size(ctx),
	})
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]any{
		"status":     "ok",
		"cache_size": s.cache.Size(ctx),
	}
	if err := s.history.Ping(ctx); err != nil {
		s.logger.Error("health check failed for history store", zap.Error(err))
		status["status"] = "degraded"
		status["history"] = "unhealthy"
		s.respondWithJSON(w, http.StatusServiceUnavailable, status)
		return
	}
	status["history"] = "healthy"
	s.respondWithJSON(w, http.StatusOK, status)
}

func buildCompareResponse(results []domain.FetchResult, warnings []string) domain.CompareResponse {
	successful := 0
	for _, r := range results {
		if r.Success {
			successful++
		}
	}
	if warnings == nil {
		warnings = []string{}
	}
	return domain.CompareResponse{
		TotalURLs:  len(results),
		Successful: successful,
		Failed:     len(results) - successful,
		Products:   results,
		Warnings:   warnings,
	}
}

// --- Helper Functions ---

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}
