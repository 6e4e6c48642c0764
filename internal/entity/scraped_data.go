package entity

import "time"

// ScrapedData mirrors the `scraped_data` table: one raw capture of a Source at
// a point in time. Rows are immutable once written; corrections are expressed
// by scraping again, never by updating in place.
type ScrapedData struct {
	ID          int64     `json:"id"`
	SourceID    int64     `json:"source_id"`
	JobID       *int64    `json:"job_id,omitempty"`
	URL         string    `json:"url"`
	RawHTML     string    `json:"raw_html,omitempty"`
	RawJSON     string    `json:"raw_json,omitempty"`
	RawText     string    `json:"raw_text,omitempty"`
	StatusCode  int       `json:"status_code"`
	ContentType string    `json:"content_type"`
	ScrapedAt   time.Time `json:"scraped_at"`
}

// HasPayload reports whether at least one raw payload is populated.
func (d *ScrapedData) HasPayload() bool {
	return d.RawHTML != "" || d.RawJSON != "" || d.RawText != ""
}
