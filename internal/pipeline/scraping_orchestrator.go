package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"pipehub/internal/entity"
	"pipehub/internal/monitoring"
	"pipehub/internal/store"
)

// ScrapingOrchestrator routes scrape dispatches to registered scraper modules
// and writes the job audit trail around each one. Construct it once at wiring
// time and inject it wherever dispatch happens.
type ScrapingOrchestrator struct {
	mu       sync.RWMutex
	scrapers map[string]Scraper
	locker   SourceLocker
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// NewScrapingOrchestrator builds an orchestrator. A nil locker falls back to
// the in-process locker; metrics may be nil; a nil logger is replaced with a
// no-op logger.
func NewScrapingOrchestrator(locker SourceLocker, m *monitoring.Metrics, logger *zap.Logger) *ScrapingOrchestrator {
	if locker == nil {
		locker = NewMemoryLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScrapingOrchestrator{
		scrapers: make(map[string]Scraper),
		locker:   locker,
		metrics:  m,
		logger:   logger,
	}
}

// RegisterScraper binds a module name to a scraper. The last registration for
// a name wins. Registration normally happens single-threaded at startup, but
// the registry is guarded regardless.
func (o *ScrapingOrchestrator) RegisterScraper(name string, s Scraper) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.scrapers[name] = s
}

// GetScraper resolves a module name.
func (o *ScrapingOrchestrator) GetScraper(name string) (Scraper, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	s, ok := o.scrapers[name]
	return s, ok
}

// ListScrapers returns the registered module names, sorted.
func (o *ScrapingOrchestrator) ListScrapers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.scrapers))
	for name := range o.scrapers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ScrapeSource runs one scrape dispatch end to end: validate the source,
// resolve its module, open a job, run the module inside one transaction, and
// finalize the job as completed or failed. The job row is the durable
// failure trail; module errors still propagate to the caller wrapped in
// ModuleError.
func (o *ScrapingOrchestrator) ScrapeSource(ctx context.Context, st *store.Store, sourceID int64) (*ScrapeResult, error) {
	src, err := st.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	if !src.IsActive {
		return nil, fmt.Errorf("source %q (id %d): %w", src.Name, src.ID, ErrSourceInactive)
	}
	scraper, ok := o.GetScraper(src.ModuleName)
	if !ok {
		return nil, &UnsupportedModuleError{Kind: "scraper", Module: src.ModuleName, Available: o.ListScrapers()}
	}

	// Serialize dispatches per source for the whole job window.
	release, err := o.locker.Acquire(ctx, src.ID)
	if err != nil {
		return nil, fmt.Errorf("lock source %d: %w", src.ID, err)
	}
	defer release()

	job := &entity.ScrapingJob{
		JobType:  src.ModuleName,
		Metadata: map[string]any{"source_id": src.ID},
	}
	if err := st.CreateJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create job for source %d: %w", src.ID, err)
	}
	if err := st.StartJob(ctx, job.ID); err != nil {
		return nil, fmt.Errorf("start job %d: %w", job.ID, err)
	}

	o.logger.Info("dispatching scrape",
		zap.String("module", src.ModuleName),
		zap.Int64("source_id", src.ID),
		zap.Int64("job_id", job.ID))

	start := time.Now()
	var result *ScrapeResult
	txErr := st.WithTx(ctx, func(tx *store.Store) error {
		r, execErr := scraper.Execute(ctx, tx, ScrapeRequest{SourceID: src.ID, JobID: job.ID})
		if execErr != nil {
			return execErr
		}
		if r == nil {
			return errors.New("scraper returned no result")
		}
		result = r
		return nil
	})
	elapsed := time.Since(start)

	if txErr != nil {
		if failErr := st.FailJob(ctx, job.ID, txErr.Error()); failErr != nil {
			o.logger.Error("failed to finalize job as failed",
				zap.Int64("job_id", job.ID), zap.Error(failErr))
		}
		o.observeScrape(src.ModuleName, "failure", elapsed)
		o.logger.Warn("scrape failed",
			zap.String("module", src.ModuleName),
			zap.Int64("source_id", src.ID),
			zap.Int64("job_id", job.ID),
			zap.Error(txErr))
		return nil, &ModuleError{Module: src.ModuleName, Err: txErr}
	}

	if err := st.CompleteJob(ctx, job.ID, result.RecordsProcessed); err != nil {
		return nil, fmt.Errorf("complete job %d: %w", job.ID, err)
	}
	result.JobID = job.ID
	o.observeScrape(src.ModuleName, "success", elapsed)
	o.logger.Info("scrape completed",
		zap.String("module", src.ModuleName),
		zap.Int64("source_id", src.ID),
		zap.Int64("job_id", job.ID),
		zap.Int("records", result.RecordsProcessed),
		zap.Duration("took", elapsed))
	return result, nil
}

func (o *ScrapingOrchestrator) observeScrape(module, status string, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveScrape(module, status, d)
}
