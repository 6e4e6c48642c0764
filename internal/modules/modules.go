// Package modules wires the built-in scraper and analyzer implementations
// into orchestrators at process startup. External plugins register the same
// way: construct the module, call Register*, ship.
package modules

import (
	"net/http"
	"time"

	"pipehub/internal/modules/browser"
	"pipehub/internal/modules/feed"
	"pipehub/internal/modules/listing"
	"pipehub/internal/modules/textstats"
	"pipehub/internal/modules/webpage"
	"pipehub/internal/pipeline"
)

// Options tunes the built-in modules.
type Options struct {
	UserAgent      string
	ScrapeTimeout  time.Duration
	BrowserEnabled bool
	BrowserTimeout time.Duration
}

// Register binds every built-in module into the two registries. The
// HTTP-fetching scrapers share one timeout-bounded client; the browser
// scraper only registers when enabled. The textstats analyzer registers
// under its own name and as the default analyzer behind each scraper's
// module name, so freshly scraped items are analyzable without an override.
func Register(scraping *pipeline.ScrapingOrchestrator, analysis *pipeline.AnalysisOrchestrator, opts Options) {
	timeout := opts.ScrapeTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	client := &http.Client{Timeout: timeout}

	scraping.RegisterScraper(feed.ModuleName, feed.New(client, opts.UserAgent))
	scraping.RegisterScraper(webpage.ModuleName, webpage.New(client, opts.UserAgent))
	scraping.RegisterScraper(listing.ModuleName, listing.New(client, opts.UserAgent))

	stats := textstats.New()
	analysis.RegisterAnalyzer(textstats.ModuleName, stats)
	analysis.RegisterAnalyzer(feed.ModuleName, stats)
	analysis.RegisterAnalyzer(webpage.ModuleName, stats)
	analysis.RegisterAnalyzer(listing.ModuleName, stats)

	if opts.BrowserEnabled {
		scraping.RegisterScraper(browser.ModuleName, browser.New(opts.UserAgent, opts.BrowserTimeout))
		analysis.RegisterAnalyzer(browser.ModuleName, stats)
	}
}
