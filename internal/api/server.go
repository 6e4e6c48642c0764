// Package api exposes the pipeline over HTTP: source administration,
// dispatch, capture browsing, the job audit trail, and introspection of the
// registered modules.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"pipehub/internal/config"
	"pipehub/internal/monitoring"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	config     *config.Config
	router     http.Handler
	httpServer *http.Server
	store      *store.Store
	scraping   *pipeline.ScrapingOrchestrator
	analysis   *pipeline.AnalysisOrchestrator
	metrics    *monitoring.Metrics
	logger     *zap.Logger
}

func NewServer(cfg *config.Config, st *store.Store, scraping *pipeline.ScrapingOrchestrator, analysis *pipeline.AnalysisOrchestrator, m *monitoring.Metrics, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		config:   cfg,
		store:    st,
		scraping: scraping,
		analysis: analysis,
		metrics:  m,
		logger:   logger,
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the assembled router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%s", s.config.ServerPort),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 120 * time.Second, // scrape dispatch waits on upstream I/O
	}
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
