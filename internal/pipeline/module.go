// Package pipeline is the plugin-registry runtime at the heart of pipehub:
// the Scraper/Analyzer module contract, the two orchestrators that dispatch
// by module name, and the per-source locking that serializes dispatch.
package pipeline

import (
	"context"

	"pipehub/internal/store"
)

// ScrapeRequest identifies one scrape dispatch for a module. JobID is the
// audit job opened for this dispatch; modules stamp it onto the ScrapedData
// they write.
type ScrapeRequest struct {
	SourceID int64
	JobID    int64
}

// ScrapeResult is what a scraper module reports back.
type ScrapeResult struct {
	ScrapedDataID    int64 `json:"scraped_data_id"`
	RecordsProcessed int   `json:"records_processed"`
	RawItemsFound    int   `json:"raw_items_found"`
	JobID            int64 `json:"job_id"`
}

// Scraper is the acquisition half of the module contract. An implementation
// must write exactly one ScrapedData row per physical fetch plus zero or more
// ProcessedData rows for the logical items found in it, bump the source's
// last-scraped timestamp, and report failure only by returning an error.
// The store handle passed in is transaction-scoped: everything the module
// writes commits or rolls back as one unit.
type Scraper interface {
	Execute(ctx context.Context, st *store.Store, req ScrapeRequest) (*ScrapeResult, error)
}

// ScraperFunc adapts a plain function to the Scraper interface.
type ScraperFunc func(ctx context.Context, st *store.Store, req ScrapeRequest) (*ScrapeResult, error)

func (f ScraperFunc) Execute(ctx context.Context, st *store.Store, req ScrapeRequest) (*ScrapeResult, error) {
	return f(ctx, st, req)
}

// AnalyzeRequest identifies one analysis dispatch for a module.
type AnalyzeRequest struct {
	ProcessedDataID int64
}

// AnalyzeResult is what an analyzer module reports back.
type AnalyzeResult struct {
	ProcessedDataID int64  `json:"processed_data_id"`
	Module          string `json:"module"`
	AnalyzedCount   int    `json:"analyzed_count"`
}

// Analyzer is the insight half of the module contract. An implementation
// reads one ProcessedData row and mutates it in place. Re-analysis must be
// idempotent: an analyzer overwrites the fields and metadata keys it owns,
// it never accumulates.
type Analyzer interface {
	Execute(ctx context.Context, st *store.Store, req AnalyzeRequest) (*AnalyzeResult, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, st *store.Store, req AnalyzeRequest) (*AnalyzeResult, error)

func (f AnalyzerFunc) Execute(ctx context.Context, st *store.Store, req AnalyzeRequest) (*AnalyzeResult, error) {
	return f(ctx, st, req)
}
