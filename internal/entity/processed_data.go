package entity

import "time"

// ProcessedData mirrors the `processed_data` table: one structured item
// extracted from a ScrapedData capture. A single capture commonly yields many
// rows, one per logical item (feed entry, listing card, page).
//
// ProcessorModule records which scraper module produced the row; the analysis
// orchestrator reads it to pick an analyzer unless the caller overrides.
// Analyzers mutate rows in place and own the fields they write: re-analysis
// overwrites, never accumulates.
type ProcessedData struct {
	ID              int64          `json:"id"`
	ScrapedDataID   int64          `json:"scraped_data_id"`
	Title           string         `json:"title,omitempty"`
	ContentText     string         `json:"content_text,omitempty"`
	Summary         string         `json:"summary,omitempty"`
	SentimentScore  *float64       `json:"sentiment_score,omitempty"`
	KeyConcepts     []string       `json:"key_concepts,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"` // module-shaped, schemaless
	ProcessorModule string         `json:"processor_module"`
	ProcessedAt     time.Time      `json:"processed_at"`
}
