package listing_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipehub/internal/entity"
	"pipehub/internal/modules/listing"
	"pipehub/internal/pipeline"
	"pipehub/internal/testutil"
)

const catalogFixture = `<!DOCTYPE html>
<html>
<body>
  <div class="course-card">
    <h3 class="course-title">Distributed Systems</h3>
    <a href="/courses/distsys">details</a>
    <p class="course-desc">Consensus, replication, and failure.</p>
    <span class="course-tag">graduate</span>
  </div>
  <div class="course-card">
    <h3 class="course-title">Operating Systems</h3>
    <a href="/courses/os">details</a>
    <p class="course-desc">Processes, memory, and files.</p>
    <span class="course-tag">undergraduate</span>
  </div>
  <div class="course-card"></div>
</body>
</html>`

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(catalogFixture))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScrapeListing(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	srv := catalogServer(t)

	src := &entity.Source{
		Name:       "catalog",
		URL:        srv.URL,
		SourceType: "courses",
		ModuleName: listing.ModuleName,
		IsActive:   true,
		Config: map[string]any{
			"item_selector":  ".course-card",
			"title_selector": ".course-title",
			"text_selector":  ".course-desc",
			"tag_selector":   ".course-tag",
		},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	orch := pipeline.NewScrapingOrchestrator(nil, nil, nil)
	orch.RegisterScraper(listing.ModuleName, listing.New(http.DefaultClient, "pipehub-test"))

	result, err := orch.ScrapeSource(ctx, st, src.ID)
	require.NoError(t, err)
	// The empty third card is skipped.
	require.Equal(t, 2, result.RecordsProcessed)
	require.Equal(t, 2, result.RawItemsFound)

	capture, err := st.GetScrapedData(ctx, result.ScrapedDataID)
	require.NoError(t, err)
	require.NotEmpty(t, capture.RawHTML)

	var cards []listing.Card
	require.NoError(t, json.Unmarshal([]byte(capture.RawJSON), &cards))
	require.Len(t, cards, 2)
	require.Equal(t, "Distributed Systems", cards[0].Title)
	require.Equal(t, "/courses/distsys", cards[0].URL)
	require.Equal(t, "graduate", cards[0].Tag)

	items, err := st.ListProcessedData(ctx, capture.ID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "Operating Systems", items[1].Title)
	require.Equal(t, "Processes, memory, and files.", items[1].ContentText)
	require.Equal(t, "/courses/os", items[1].Metadata["url"])
	require.Equal(t, "undergraduate", items[1].Metadata["tag"])
	require.EqualValues(t, 1, items[1].Metadata["position"])
}

func TestScrapeListingMaxItems(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	srv := catalogServer(t)

	src := &entity.Source{
		Name:       "capped-catalog",
		URL:        srv.URL,
		ModuleName: listing.ModuleName,
		IsActive:   true,
		Config: map[string]any{
			"item_selector": ".course-card",
			"max_items":     float64(1),
		},
	}
	require.NoError(t, st.CreateSource(ctx, src))

	orch := pipeline.NewScrapingOrchestrator(nil, nil, nil)
	orch.RegisterScraper(listing.ModuleName, listing.New(http.DefaultClient, "pipehub-test"))

	result, err := orch.ScrapeSource(ctx, st, src.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordsProcessed)
	require.Equal(t, 2, result.RawItemsFound)
}

func TestScrapeListingRequiresItemSelector(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	srv := catalogServer(t)

	src := &entity.Source{Name: "misconfigured", URL: srv.URL, ModuleName: listing.ModuleName, IsActive: true}
	require.NoError(t, st.CreateSource(ctx, src))

	orch := pipeline.NewScrapingOrchestrator(nil, nil, nil)
	orch.RegisterScraper(listing.ModuleName, listing.New(http.DefaultClient, "pipehub-test"))

	_, err := orch.ScrapeSource(ctx, st, src.ID)
	require.ErrorIs(t, err, listing.ErrNoItemSelector)
}
