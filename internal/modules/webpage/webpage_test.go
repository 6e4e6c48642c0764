package webpage_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipehub/internal/entity"
	"pipehub/internal/modules/webpage"
	"pipehub/internal/pipeline"
	"pipehub/internal/testutil"
)

const pageFixture = `<!DOCTYPE html>
<html>
<head>
  <title>Compilers 101</title>
  <meta name="description" content="An introductory course on compilers.">
  <meta name="keywords" content="compilers, parsing, lexing">
  <meta property="og:site_name" content="Example University">
</head>
<body>
  <h1>Compilers 101</h1>
  <h2>Syllabus</h2>
  <div id="content">
    <p>Lexing and parsing from first principles.</p>
    <img src="/diagram.png">
  </div>
  <script>console.log("noise")</script>
  <style>.hidden { display: none }</style>
</body>
</html>`

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestExtract(t *testing.T) {
	page, err := webpage.Extract(pageFixture, "")
	require.NoError(t, err)

	require.Equal(t, "Compilers 101", page.Title)
	require.Equal(t, "An introductory course on compilers.", page.Description)
	require.Equal(t, []string{"compilers", "parsing", "lexing"}, page.Keywords)
	require.Equal(t, "Example University", page.MetaTags["og:site_name"])
	require.Equal(t, []string{"Compilers 101", "Syllabus"}, page.Headings)
	require.Equal(t, 1, page.ImageCount)
	require.Contains(t, page.Text, "Lexing and parsing from first principles.")
	require.NotContains(t, page.Text, "console.log")
	require.NotContains(t, page.Text, "display: none")
}

func TestExtractContentSelector(t *testing.T) {
	page, err := webpage.Extract(pageFixture, "#content")
	require.NoError(t, err)
	require.Equal(t, "Lexing and parsing from first principles.", page.Text)
}

func TestScrapePage(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(pageFixture))
	}))
	t.Cleanup(srv.Close)

	src := &entity.Source{Name: "course-page", URL: srv.URL, ModuleName: webpage.ModuleName, IsActive: true}
	require.NoError(t, st.CreateSource(ctx, src))

	orch := pipeline.NewScrapingOrchestrator(nil, nil, nil)
	orch.RegisterScraper(webpage.ModuleName, webpage.New(http.DefaultClient, "pipehub-test"))

	result, err := orch.ScrapeSource(ctx, st, src.ID)
	require.NoError(t, err)
	require.Equal(t, 1, result.RecordsProcessed)

	capture, err := st.GetScrapedData(ctx, result.ScrapedDataID)
	require.NoError(t, err)
	require.Contains(t, capture.RawHTML, "<title>Compilers 101</title>")
	require.Empty(t, capture.RawText)

	items, err := st.ListProcessedData(ctx, capture.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	require.Equal(t, "Compilers 101", item.Title)
	require.Equal(t, "An introductory course on compilers.", item.Summary)
	require.Equal(t, []string{"compilers", "parsing", "lexing"}, item.KeyConcepts)
	require.Equal(t, webpage.ModuleName, item.ProcessorModule)
	require.EqualValues(t, 1, item.Metadata["image_count"])
	require.EqualValues(t, http.StatusOK, item.Metadata["status_code"])
	require.Len(t, item.Metadata["headings"], 2)
}

func TestScrapePageUpstreamError(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	t.Cleanup(srv.Close)

	src := &entity.Source{Name: "gone-page", URL: srv.URL, ModuleName: webpage.ModuleName, IsActive: true}
	require.NoError(t, st.CreateSource(ctx, src))

	orch := pipeline.NewScrapingOrchestrator(nil, nil, nil)
	orch.RegisterScraper(webpage.ModuleName, webpage.New(http.DefaultClient, "pipehub-test"))

	_, err := orch.ScrapeSource(ctx, st, src.ID)
	require.ErrorContains(t, err, "unexpected status 410")
}
