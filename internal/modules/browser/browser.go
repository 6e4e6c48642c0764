// Package browser is the built-in scraper for script-heavy pages that need a
// real rendering engine. It drives headless Chrome through chromedp, waits
// for the page to settle, and then runs the same extraction the webpage
// module applies to static HTML.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chromedp/chromedp"

	"pipehub/internal/entity"
	"pipehub/internal/modules/modutil"
	"pipehub/internal/modules/webpage"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

// ModuleName is the registry key for this scraper.
const ModuleName = "browser"

const defaultWaitSelector = "body"

// Scraper renders one page in headless Chrome and writes one capture plus
// one processed item. Config keys: wait_selector (default "body"),
// content_selector (forwarded to the webpage extraction).
type Scraper struct {
	userAgent string
	timeout   time.Duration
}

var _ pipeline.Scraper = (*Scraper)(nil)

// New builds the browser scraper. A non-positive timeout defaults to one
// minute per rendered page.
func New(userAgent string, timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Scraper{userAgent: userAgent, timeout: timeout}
}

func (s *Scraper) Execute(ctx context.Context, st *store.Store, req pipeline.ScrapeRequest) (*pipeline.ScrapeResult, error) {
	src, err := st.GetSource(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	html, err := s.render(ctx, src.URL, modutil.Str(src.Config, "wait_selector", defaultWaitSelector))
	if err != nil {
		return nil, err
	}

	page, err := webpage.Extract(html, modutil.Str(src.Config, "content_selector", ""))
	if err != nil {
		return nil, err
	}

	capture := &entity.ScrapedData{
		SourceID:    src.ID,
		JobID:       &req.JobID,
		URL:         src.URL,
		RawHTML:     html,
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
	}
	if err := st.CreateScrapedData(ctx, capture); err != nil {
		return nil, err
	}

	item := page.ToProcessedData(capture.ID, ModuleName)
	item.Metadata["rendered"] = true
	if err := st.CreateProcessedData(ctx, item); err != nil {
		return nil, err
	}

	if err := st.TouchSourceScraped(ctx, src.ID, time.Now()); err != nil {
		return nil, err
	}
	return &pipeline.ScrapeResult{
		ScrapedDataID:    capture.ID,
		RecordsProcessed: 1,
		RawItemsFound:    1,
	}, nil
}

// render navigates to url in a fresh headless browser context and returns
// the outer HTML of the settled document.
func (s *Scraper) render(ctx context.Context, url, waitSelector string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if s.userAgent != "" {
		opts = append(opts, chromedp.UserAgent(s.userAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()

	taskCtx, cancelTask := chromedp.NewContext(allocCtx)
	defer cancelTask()

	taskCtx, cancelTimeout := context.WithTimeout(taskCtx, s.timeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitVisible(waitSelector, chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", url, err)
	}
	return html, nil
}
