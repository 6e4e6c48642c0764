package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))
	r.Use(s.instrument)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Post("/", s.handleCreateSource)
			r.Get("/", s.handleListSources)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Put("/", s.handleUpdateSource)
				r.Delete("/", s.handleDeleteSource)
				r.Post("/scrape", s.handleScrapeSource)
				r.Post("/analyze", s.handleBulkAnalyze)
				r.Get("/scraped", s.handleListScraped)
			})
		})
		r.Route("/scraped/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetScraped)
			r.Get("/processed", s.handleListProcessed)
		})
		r.Route("/processed/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetProcessed)
			r.Post("/analyze", s.handleAnalyzeProcessed)
		})
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
		r.Get("/modules", s.handleListModules)
	})

	return r
}
