// Package feed is the built-in scraper for RSS 2.0 and Atom feeds. It is
// fully generic: everything source-specific comes from the source's URL and
// config, never from hard-coded feed rules.
package feed

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pipehub/internal/entity"
	"pipehub/internal/modules/modutil"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

// ModuleName is the registry key for this scraper.
const ModuleName = "feed"

const defaultMaxItems = 50

// Scraper fetches a feed and writes one capture plus one processed item per
// entry. Config keys: max_items (default 50).
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

	entries, err := parseFeed(fetched.Body)
	if err != nil {
		return nil, fmt.Errorf("parse feed %s: %w", src.URL, err)
	}
	found := len(entries)
	if max := modutil.Int(src.Config, "max_items", defaultMaxItems); len(entries) > max {
		entries = entries[:max]
	}

	capture := &entity.ScrapedData{
		SourceID:    src.ID,
		JobID:       &req.JobID,
		URL:         src.URL,
		RawText:     string(fetched.Body),
		StatusCode:  fetched.StatusCode,
		ContentType: fetched.ContentType,
	}
	if err := st.CreateScrapedData(ctx, capture); err != nil {
		return nil, err
	}

	for _, e := range entries {
		meta := map[string]any{"link": e.Link}
		if e.Published != "" {
			meta["published"] = e.Published
		}
		if e.GUID != "" {
			meta["guid"] = e.GUID
		}
		if e.Author != "" {
			meta["author"] = e.Author
		}
		item := &entity.ProcessedData{
			ScrapedDataID:   capture.ID,
			Title:           e.Title,
			ContentText:     e.Content,
			Summary:         modutil.Truncate(e.Content, 200),
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
		RecordsProcessed: len(entries),
		RawItemsFound:    found,
	}, nil
}

// Entry is one feed item normalized across RSS and Atom.
type Entry struct {
	Title     string
	Link      string
	Content   string
	Published string
	GUID      string
	Author    string
}

type rssDoc struct {
	Channel struct {
		Items []struct {
			Title       string `xml:"title"`
			Link        string `xml:"link"`
			Description string `xml:"description"`
			PubDate     string `xml:"pubDate"`
			GUID        string `xml:"guid"`
			Author      string `xml:"author"`
			Creator     string `xml:"creator"`
		} `xml:"item"`
	} `xml:"channel"`
}

type atomDoc struct {
	Entries []struct {
		Title     string     `xml:"title"`
		Links     []atomLink `xml:"link"`
		Summary   string     `xml:"summary"`
		Content   string     `xml:"content"`
		Published string     `xml:"published"`
		Updated   string     `xml:"updated"`
		ID        string     `xml:"id"`
		Author    struct {
			Name string `xml:"name"`
		} `xml:"author"`
	} `xml:"entry"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
}

// parseFeed dispatches on the document's root element: <rss> or <feed>.
func parseFeed(body []byte) ([]Entry, error) {
	root, err := rootElement(body)
	if err != nil {
		return nil, err
	}
	switch root {
	case "rss":
		return parseRSS(body)
	case "feed":
		return parseAtom(body)
	default:
		return nil, fmt.Errorf("unrecognized feed root element <%s>", root)
	}
}

func rootElement(body []byte) (string, error) {
	dec := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := dec.Token()
		if err != nil {
			return "", fmt.Errorf("read feed document: %w", err)
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start.Name.Local, nil
		}
	}
}

func parseRSS(body []byte) ([]Entry, error) {
	var doc rssDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		author := it.Author
		if author == "" {
			author = it.Creator
		}
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(it.Title),
			Link:      strings.TrimSpace(it.Link),
			Content:   strings.TrimSpace(it.Description),
			Published: strings.TrimSpace(it.PubDate),
			GUID:      strings.TrimSpace(it.GUID),
			Author:    strings.TrimSpace(author),
		})
	}
	return entries, nil
}

func parseAtom(body []byte) ([]Entry, error) {
	var doc atomDoc
	if err := xml.Unmarshal(body, &doc); err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		content := e.Content
		if content == "" {
			content = e.Summary
		}
		published := e.Published
		if published == "" {
			published = e.Updated
		}
		entries = append(entries, Entry{
			Title:     strings.TrimSpace(e.Title),
			Link:      atomHref(e.Links),
			Content:   strings.TrimSpace(content),
			Published: strings.TrimSpace(published),
			GUID:      strings.TrimSpace(e.ID),
			Author:    strings.TrimSpace(e.Author.Name),
		})
	}
	return entries, nil
}

// atomHref prefers the alternate link, falling back to the first one.
func atomHref(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "" || l.Rel == "alternate" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}
