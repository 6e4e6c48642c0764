// Package listing is the built-in scraper for repeated-card pages: course
// catalogs, product grids, article indexes. The card shape comes entirely
// from the source's config selectors, so one module serves any site.
package listing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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
const ModuleName = "listing"

const defaultMaxItems = 100

// ErrNoItemSelector rejects a dispatch whose source config is missing the
// one required key.
var ErrNoItemSelector = errors.New("listing config requires item_selector")

// Card is one repeated element found on the page.
type Card struct {
	Title    string `json:"title"`
	URL      string `json:"url,omitempty"`
	Text     string `json:"text,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Position int    `json:"position"`
}

// Scraper fetches one page and writes one capture plus one processed item
// per card. Config keys: item_selector (required), title_selector,
// link_selector, text_selector, tag_selector, max_items (default 100).
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
	itemSelector := modutil.Str(src.Config, "item_selector", "")
	if itemSelector == "" {
		return nil, fmt.Errorf("source %q: %w", src.Name, ErrNoItemSelector)
	}

	fetched, err := modutil.Fetch(ctx, s.client, src.URL, s.userAgent)
	if err != nil {
		return nil, err
	}

	cards, err := extractCards(string(fetched.Body), src.Config, itemSelector)
	if err != nil {
		return nil, fmt.Errorf("extract cards from %s: %w", src.URL, err)
	}
	found := len(cards)
	if max := modutil.Int(src.Config, "max_items", defaultMaxItems); len(cards) > max {
		cards = cards[:max]
	}

	rawJSON, err := json.Marshal(cards)
	if err != nil {
		return nil, fmt.Errorf("encode cards: %w", err)
	}
	capture := &entity.ScrapedData{
		SourceID:    src.ID,
		JobID:       &req.JobID,
		URL:         src.URL,
		RawHTML:     string(fetched.Body),
		RawJSON:     string(rawJSON),
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
	}
	if err := st.CreateScrapedData(ctx, capture); err != nil {
		return nil, err
	}

	for _, card := range cards {
		meta := map[string]any{"position": card.Position}
		if card.URL != "" {
			meta["url"] = card.URL
		}
		if card.Tag != "" {
			meta["tag"] = card.Tag
		}
		item := &entity.ProcessedData{
			ScrapedDataID:   capture.ID,
			Title:           card.Title,
			ContentText:     card.Text,
			Summary:         modutil.Truncate(card.Text, 200),
			Metadata:        meta,
			ProcessorModule: ModuleName,
		}
		if err := st.CreateProcessedData(ctx, item); err != nil {
			return nil, err
		}
	}

	if err := st.TouchSourceScraped(ctx, src.ID, time.Now()); err != nil {
		return nil, err
	}
	return &pipeline.ScrapeResult{
		ScrapedDataID:    capture.ID,
		RecordsProcessed: len(cards),
		RawItemsFound:    found,
	}, nil
}

func extractCards(html string, cfg map[string]any, itemSelector string) ([]Card, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, err
	}

	titleSel := modutil.Str(cfg, "title_selector", "")
	linkSel := modutil.Str(cfg, "link_selector", "a")
	textSel := modutil.Str(cfg, "text_selector", "")
	tagSel := modutil.Str(cfg, "tag_selector", "")

	var cards []Card
	doc.Find(itemSelector).Each(func(i int, sel *goquery.Selection) {
		card := Card{Position: i}
		if titleSel != "" {
			card.Title = strings.TrimSpace(sel.Find(titleSel).First().Text())
		} else {
			// Without a title selector the first heading inside the card
			// is the best guess.
			card.Title = strings.TrimSpace(sel.Find("h1, h2, h3, h4").First().Text())
		}
		if href, ok := sel.Find(linkSel).First().Attr("href"); ok {
			card.URL = strings.TrimSpace(href)
		}
		if textSel != "" {
			card.Text = collapseWhitespace(sel.Find(textSel).Text())
		} else {
			card.Text = collapseWhitespace(sel.Text())
		}
		if tagSel != "" {
			card.Tag = strings.TrimSpace(sel.Find(tagSel).First().Text())
		}
		if card.Title == "" && card.Text == "" {
			return // skip empty shells, e.g. spacer elements
		}
		cards = append(cards, card)
	})
	return cards, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
