// Package webpage is the built-in scraper for single HTML pages. It captures
// the raw document and extracts one processed item: title, meta tags,
// headings, and the script/style-stripped body text.
package webpage

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"pipehub/internal/entity"
	"pipehub/internal/modules/modutil"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

// ModuleName is the registry key for this scraper.
const ModuleName = "webpage"

// Scraper fetches one page and writes one capture plus one processed item.
// Config keys: content_selector narrows the text extraction to a fragment of
// the page (default: the whole body).
type Scraper struct {
	client    *http.Client
	userAgent string
}

var _ pipeline.Scraper = (*Scraper)(nil)

func New(client *http.Client, userAgent string) *Scraper {
	return &Scraper{client: client, userAgent: userAgent}
}

func (s *Scraper) Execute(ctx context.Context, st *store.Store, req pipeline.ScrapeRequest) (*pipeline.ScrapeResult, error) {
	src, err := st.GetSource(ctx, req.SourceID)
	if err != nil {
		return nil, err
	}

	fetched, err := modutil.Fetch(ctx, s.client, src.URL, s.userAgent)
	if err != nil {
		return nil, err
	}

	page, err := Extract(string(fetched.Body), modutil.Str(src.Config, "content_selector", ""))
	if err != nil {
		return nil, err
	}

	capture := &entity.ScrapedData{
		SourceID:    src.ID,
		JobID:       &req.JobID,
		URL:         src.URL,
		RawHTML:     string(fetched.Body),
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
	}
	if err := st.CreateScrapedData(ctx, capture); err != nil {
		return nil, err
	}

	item := page.ToProcessedData(capture.ID, ModuleName)
	item.Metadata["status_code"] = fetched.StatusCode
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

// Page is the structured extraction of one HTML document.
type Page struct {
	Title       string
	Text        string
	Description string
	Keywords    []string
	MetaTags    map[string]string
	Headings    []string
	ImageCount  int
}

// Extract parses html and pulls the page structure out of it. A non-empty
// contentSelector narrows the text extraction to matching elements; the
// browser module reuses this over its rendered DOM.
func Extract(html, contentSelector string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	page := &Page{
		Title:    strings.TrimSpace(doc.Find("title").First().Text()),
		MetaTags: make(map[string]string),
	}

	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		property, _ := sel.Attr("property")
		content, _ := sel.Attr("content")
		key := name
		if property != "" {
			key = property
		}
		if key != "" && content != "" {
			page.MetaTags[key] = content
		}
	})
	page.Description = page.MetaTags["description"]
	if page.Description == "" {
		page.Description = page.MetaTags["og:description"]
	}
	page.Keywords = splitKeywords(page.MetaTags["keywords"])

	doc.Find("h1, h2, h3").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			page.Headings = append(page.Headings, text)
		}
	})
	page.ImageCount = doc.Find("img").Length()

	doc.Find("script, style, noscript").Each(func(_ int, sel *goquery.Selection) {
		sel.Remove()
	})
	scope := doc.Find("body")
	if contentSelector != "" {
		scope = doc.Find(contentSelector)
	}
	page.Text = collapseWhitespace(scope.Text())

	return page, nil
}

// ToProcessedData shapes the page as one processed item for the capture.
func (p *Page) ToProcessedData(scrapedDataID int64, module string) *entity.ProcessedData {
	headings := make([]any, len(p.Headings))
	for i, h := range p.Headings {
		headings[i] = h
	}
	return &entity.ProcessedData{
		ScrapedDataID: scrapedDataID,
		Title:         p.Title,
		ContentText:   p.Text,
		Summary:       modutil.Truncate(p.Description, 200),
		KeyConcepts:   p.Keywords,
		Metadata: map[string]any{
			"headings":    headings,
			"image_count": p.ImageCount,
		},
		ProcessorModule: module,
	}
}

func splitKeywords(raw string) []string {
	if raw == "" {
		return nil
	}
	var keywords []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
