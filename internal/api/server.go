package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/pricewatch/internal/cache"
	"github.com/user/pricewatch/internal/config"
	"github.com/user/pricewatch/internal/history"
	"github.com/user/pricewatch/internal/listing"
	"github.com/user/pricewatch/internal/monitoring"
	"github.com/user/pricewatch/internal/orchestrator"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config       *config.Config
	router       http.Handler
	httpServer   *http.Server
	orchestrator *orchestrator.Orchestrator
	scraper      *listing.Scraper
	history      history.Store
	cache        cache.Store
	metrics      *monitoring.Metrics
	logger       *zap.Logger
}

func NewServer(cfg *config.Config, o *orchestrator.Orchestrator, sc *listing.Scraper, h history.Store, c cache.Store, m *monitoring.Metrics, l *zap.Logger) *Server {
	s := &Server{
		config:       cfg,
		orchestrator: o,
		scraper:      sc,
		history:      h,
		cache:        c,
		metrics:      m,
		logger:       l,
	}
	s.router = s.setupRouter()
	return s
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%s", s.config.ServerPort),
		Handler: s.router,
		// Batches can legitimately take minutes behind domain pacing.
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute,
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
