package entity

import "time"

// Source mirrors the `sources` table: one configured acquisition target bound
// to a scraper module by name.
type Source struct {
	ID            int64          `json:"id"`
	Name          string         `json:"name"`
	URL           string         `json:"url"`
	SourceType    string         `json:"source_type"`
	ModuleName    string         `json:"module_name"`
	Config        map[string]any `json:"config,omitempty"` // module-specific, opaque to the pipeline
	IsActive      bool           `json:"is_active"`
	LastScrapedAt *time.Time     `json:"last_scraped_at,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
