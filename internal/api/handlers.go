package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"pipehub/internal/entity"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		s.logger.Error("health check failed for store", zap.Error(err))
		s.respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "store": err.Error()})
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// --- Sources ---

type sourceRequest struct {
	Name       *string        `json:"name"`
	URL        *string        `json:"url"`
	SourceType *string        `json:"source_type"`
	ModuleName *string        `json:"module_name"`
	Config     map[string]any `json:"config"`
	IsActive   *bool          `json:"is_active"`
}

func (s *Server) handleCreateSource(w http.ResponseWriter, r *http.Request) {
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == nil || req.URL == nil || req.ModuleName == nil {
		s.respondWithError(w, http.StatusBadRequest, "name, url and module_name are required")
		return
	}
	src := &entity.Source{
		Name:       *req.Name,
		URL:        *req.URL,
		ModuleName: *req.ModuleName,
		Config:     req.Config,
		IsActive:   true,
	}
	if req.SourceType != nil {
		src.SourceType = *req.SourceType
	}
	if req.IsActive != nil {
		src.IsActive = *req.IsActive
	}
	if err := s.store.CreateSource(r.Context(), src); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusCreated, src)
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	filter := store.SourceFilter{
		SourceType: r.URL.Query().Get("source_type"),
		Limit:      queryInt(r, "limit", 0),
		Offset:     queryInt(r, "offset", 0),
	}
	if raw := r.URL.Query().Get("is_active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			s.respondWithError(w, http.StatusBadRequest, "is_active must be a boolean")
			return
		}
		filter.IsActive = &active
	}

	sources, total, err := s.store.ListSources(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"items": emptyIfNil(sources),
		"total": total,
	})
}

func (s *Server) handleGetSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	src, err := s.store.GetSource(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, src)
}

func (s *Server) handleUpdateSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	var req sourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	src, err := s.store.UpdateSource(r.Context(), id, store.SourceUpdate{
		Name:       req.Name,
		URL:        req.URL,
		SourceType: req.SourceType,
		ModuleName: req.ModuleName,
		Config:     req.Config,
		IsActive:   req.IsActive,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, src)
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if err := s.store.DeleteSource(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Dispatch ---

func (s *Server) handleScrapeSource(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	result, err := s.scraping.ScrapeSource(r.Context(), s.store, id)
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, result)
}

func (s *Server) handleBulkAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	summary, err := s.analysis.BulkAnalyze(r.Context(), s.store, id, r.URL.Query().Get("module"))
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, summary)
}

func (s *Server) handleAnalyzeProcessed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	result, err := s.analysis.AnalyzeData(r.Context(), s.store, id, r.URL.Query().Get("module"))
	if err != nil {
		s.writeDispatchError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, result)
}

// --- Captures and processed items ---

// scrapedSummary is the capture listing shape: payload presence and sizes
// instead of the payloads themselves, which can be megabytes of HTML.
type scrapedSummary struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source_id"`
	JobID       *int64    `json:"job_id,omitempty"`
	URL         string    `json:"url"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	ScrapedAt   time.Time `json:"scraped_at"`
	HasHTML     bool      `json:"has_html"`
	HasJSON     bool      `json:"has_json"`
	HasText     bool      `json:"has_text"`
	HTMLSize    int       `json:"html_size"`
	JSONSize    int       `json:"json_size"`
	TextSize    int       `json:"text_size"`
}

func summarizeScraped(d entity.ScrapedData) scrapedSummary {
	return scrapedSummary{
		ID:          d.ID,
		SourceID:    d.SourceID,
		JobID:       d.JobID,
		URL:         d.URL,
		StatusCode:  d.StatusCode,
		ContentType: d.ContentType,
		ScrapedAt:   d.ScrapedAt,
		HasHTML:     d.RawHTML != "",
		HasJSON:     d.RawJSON != "",
		HasText:     d.RawText != "",
		HTMLSize:    len(d.RawHTML),
		JSONSize:    len(d.RawJSON),
		TextSize:    len(d.RawText),
	}
}

func (s *Server) handleListScraped(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	// Listing an unknown source is a 404, not an empty list.
	if _, err := s.store.GetSource(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	captures, total, err := s.store.ListScrapedData(r.Context(), id, queryInt(r, "limit", 20), queryInt(r, "offset", 0))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	summaries := make([]scrapedSummary, 0, len(captures))
	for _, d := range captures {
		summaries = append(summaries, summarizeScraped(d))
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"items": summaries,
		"total": total,
	})
}

func (s *Server) handleGetScraped(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	capture, err := s.store.GetScrapedData(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, capture)
}

func (s *Server) handleListProcessed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	if _, err := s.store.GetScrapedData(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}
	items, err := s.store.ListProcessedData(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"items": emptyIfNil(items)})
}

func (s *Server) handleGetProcessed(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	item, err := s.store.GetProcessedData(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, item)
}

// --- Jobs and modules ---

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context(), queryInt(r, "limit", 50))
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, map[string]any{"items": emptyIfNil(jobs)})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id, ok := s.idParam(w, r)
	if !ok {
		return
	}
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.respondWithJSON(w, http.StatusOK, job)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, map[string]any{
		"scrapers":  s.scraping.ListScrapers(),
		"analyzers": s.analysis.ListAnalyzers(),
	})
}

// --- Helper functions ---

func (s *Server) idParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

// emptyIfNil keeps empty listings as [] instead of null in the JSON body.
func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// writeStoreError maps storage errors onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, store.ErrAlreadyExists):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("store operation failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

// writeDispatchError maps orchestrator errors onto status codes. A module
// failure is the upstream's fault, so it maps to 502 with the module error
// text intact; the job audit trail has the rest.
func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	var unsupported *pipeline.UnsupportedModuleError
	var modErr *pipeline.ModuleError
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, pipeline.ErrSourceInactive):
		s.respondWithError(w, http.StatusConflict, err.Error())
	case errors.As(err, &unsupported):
		s.respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &modErr):
		s.respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("dispatch failed", zap.Error(err))
		s.respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message string) {
	s.respondWithJSON(w, code, map[string]string{"error": message})
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload any) {
	response, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}
