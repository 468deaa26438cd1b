package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/api"
	"github.com/user/pricewatch/internal/cache"
	"github.com/user/pricewatch/internal/config"
	"github.com/user/pricewatch/internal/extract"
	"github.com/user/pricewatch/internal/fetch"
	"github.com/user/pricewatch/internal/gate"
	"github.com/user/pricewatch/internal/history"
	"github.com/user/pricewatch/internal/listing"
	"github.com/user/pricewatch/internal/monitoring"
	"github.com/user/pricewatch/internal/orchestrator"
)

func main() {
	// Initialize structured logger
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("could not load config", zap.Error(err))
	}

	// Page cache: in-process by default, Redis when replicas share state
	var pageCache cache.Store
	switch cfg.CacheBackend {
	case "redis":
		pageCache = cache.NewRedis(cfg.RedisAddr, cfg.CacheTTL())
		logger.Info("using redis page cache", zap.String("addr", cfg.RedisAddr))
	default:
		pageCache = cache.NewMemory(cfg.CacheTTL())
	}

	// Price history: Postgres when configured, in-memory otherwise
	var snapshots history.Store
	if cfg.PostgresURL != "" {
		pg, err := history.NewPostgres(context.Background(), cfg.PostgresURL)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pg.Close()
		snapshots = pg
	} else {
		logger.Warn("POSTGRES_URL not set, price history will not survive restarts")
		snapshots = history.NewMemory()
	}

	metrics := monitoring.NewMetrics(prometheus.DefaultRegisterer)

	domainGate := gate.New(cfg.DomainMaxConcurrent, cfg.DomainMinDelay(), cfg.DomainMaxDelay())
	transport := fetch.NewHTTPTransport(cfg.FetchTimeout())
	fetcher := fetch.New(transport, pageCache, domainGate, metrics, logger, cfg.MaxAttempts)

	core := orchestrator.New(
		fetcher,
		extract.NewExtractor(),
		extract.NewNormalizer(),
		snapshots,
		metrics,
		logger,
		cfg.BatchWorkers,
		cfg.DetailWorkers,
	)
	scraper := listing.NewScraper(fetcher, logger)

	server := api.NewServer(cfg, core, scraper, snapshots, pageCache, metrics, logger)

	// Graceful Shutdown
	go func() {
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("could not start server", zap.Error(err))
		}
	}()

	logger.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")
}
