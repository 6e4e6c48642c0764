package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"pipehub/internal/monitoring"
	"pipehub/internal/store"
)

// BulkItemError records one failed item inside a bulk analysis fan-out.
type BulkItemError struct {
	ProcessedDataID int64  `json:"processed_data_id"`
	Error           string `json:"error"`
}

// BulkAnalyzeResult summarizes a bulk analysis run over one source. A bulk
// run never aborts on a bad item: failures land in Errors and the rest of
// the batch proceeds.
type BulkAnalyzeResult struct {
	SourceID      int64            `json:"source_id"`
	SourceName    string           `json:"source_name"`
	TotalItems    int              `json:"total_items"`
	AnalyzedCount int              `json:"analyzed_count"`
	ErrorCount    int              `json:"error_count"`
	Results       []*AnalyzeResult `json:"results,omitempty"`
	Errors        []BulkItemError  `json:"errors,omitempty"`
}

// AnalysisOrchestrator routes analysis dispatches to registered analyzer
// modules. Unlike scraping there is no job audit trail: analysis is cheap to
// re-run and its outcome is visible on the rows themselves.
type AnalysisOrchestrator struct {
	mu        sync.RWMutex
	analyzers map[string]Analyzer
	metrics   *monitoring.Metrics
	logger    *zap.Logger
}

// NewAnalysisOrchestrator builds an orchestrator. Metrics may be nil; a nil
// logger is replaced with a no-op logger.
func NewAnalysisOrchestrator(m *monitoring.Metrics, logger *zap.Logger) *AnalysisOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalysisOrchestrator{
		analyzers: make(map[string]Analyzer),
		metrics:   m,
		logger:    logger,
	}
}

// RegisterAnalyzer binds a module name to an analyzer. The last registration
// for a name wins.
func (o *AnalysisOrchestrator) RegisterAnalyzer(name string, a Analyzer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.analyzers[name] = a
}

// GetAnalyzer resolves a module name.
func (o *AnalysisOrchestrator) GetAnalyzer(name string) (Analyzer, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	a, ok := o.analyzers[name]
	return a, ok
}

// ListAnalyzers returns the registered module names, sorted.
func (o *AnalysisOrchestrator) ListAnalyzers() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	names := make([]string, 0, len(o.analyzers))
	for name := range o.analyzers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AnalyzeData runs one analysis dispatch. The module is the override when
// non-empty, otherwise the processor_module stamped on the row by the scraper
// that created it. Analyzer failures come back wrapped in ModuleError.
func (o *AnalysisOrchestrator) AnalyzeData(ctx context.Context, st *store.Store, processedDataID int64, module string) (*AnalyzeResult, error) {
	item, err := st.GetProcessedData(ctx, processedDataID)
	if err != nil {
		return nil, err
	}
	name := module
	if name == "" {
		name = item.ProcessorModule
	}
	analyzer, ok := o.GetAnalyzer(name)
	if !ok {
		return nil, &UnsupportedModuleError{Kind: "analyzer", Module: name, Available: o.ListAnalyzers()}
	}

	o.logger.Debug("dispatching analysis",
		zap.String("module", name),
		zap.Int64("processed_data_id", processedDataID))

	start := time.Now()
	result, err := analyzer.Execute(ctx, st, AnalyzeRequest{ProcessedDataID: processedDataID})
	elapsed := time.Since(start)

	if err != nil {
		o.observeAnalysis(name, "failure", elapsed)
		o.logger.Warn("analysis failed",
			zap.String("module", name),
			zap.Int64("processed_data_id", processedDataID),
			zap.Error(err))
		return nil, &ModuleError{Module: name, Err: err}
	}
	if result == nil {
		result = &AnalyzeResult{AnalyzedCount: 1}
	}
	result.ProcessedDataID = processedDataID
	result.Module = name
	o.observeAnalysis(name, "success", elapsed)
	return result, nil
}

// BulkAnalyze runs AnalyzeData over every processed item a source owns
// through its captures. Per-item failures are collected, not propagated: one
// bad item never blocks the rest of the batch. A source with no processed
// items yields a zero-count summary, not an error.
func (o *AnalysisOrchestrator) BulkAnalyze(ctx context.Context, st *store.Store, sourceID int64, module string) (*BulkAnalyzeResult, error) {
	src, err := st.GetSource(ctx, sourceID)
	if err != nil {
		return nil, err
	}
	items, err := st.ListProcessedBySource(ctx, sourceID)
	if err != nil {
		return nil, err
	}

	summary := &BulkAnalyzeResult{
		SourceID:   src.ID,
		SourceName: src.Name,
		TotalItems: len(items),
	}
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := o.AnalyzeData(ctx, st, item.ID, module)
		if err != nil {
			summary.Errors = append(summary.Errors, BulkItemError{
				ProcessedDataID: item.ID,
				Error:           err.Error(),
			})
			continue
		}
		summary.Results = append(summary.Results, result)
	}
	summary.AnalyzedCount = len(summary.Results)
	summary.ErrorCount = len(summary.Errors)

	o.logger.Info("bulk analysis finished",
		zap.Int64("source_id", src.ID),
		zap.Int("total", summary.TotalItems),
		zap.Int("analyzed", summary.AnalyzedCount),
		zap.Int("errors", summary.ErrorCount))
	return summary, nil
}

func (o *AnalysisOrchestrator) observeAnalysis(module, status string, d time.Duration) {
	if o.metrics == nil {
		return
	}
	o.metrics.ObserveAnalysis(module, status, d)
}
