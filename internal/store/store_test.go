package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipehub/internal/entity"
	"pipehub/internal/store"
	"pipehub/internal/testutil"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func newSource(name, module string) *entity.Source {
	return &entity.Source{
		Name:       name,
		URL:        "https://example.com/" + name,
		SourceType: "test",
		ModuleName: module,
		IsActive:   true,
	}
}

func TestSourceCRUD(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("catalog", "listing")
	src.Config = map[string]any{"item_selector": ".card", "max_items": float64(10)}
	require.NoError(t, st.CreateSource(ctx, src))
	require.NotZero(t, src.ID)
	require.False(t, src.CreatedAt.IsZero())

	got, err := st.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.Equal(t, "catalog", got.Name)
	require.Equal(t, "listing", got.ModuleName)
	require.Equal(t, src.Config, got.Config)
	require.True(t, got.IsActive)
	require.Nil(t, got.LastScrapedAt)
	require.True(t, got.CreatedAt.Equal(src.CreatedAt))

	byName, err := st.GetSourceByName(ctx, "catalog")
	require.NoError(t, err)
	require.Equal(t, src.ID, byName.ID)

	dup := newSource("catalog", "feed")
	err = st.CreateSource(ctx, dup)
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = st.GetSource(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)

	inactive := false
	newName := "catalog-v2"
	updated, err := st.UpdateSource(ctx, src.ID, store.SourceUpdate{
		Name:     &newName,
		IsActive: &inactive,
		Config:   map[string]any{"item_selector": ".tile"},
	})
	require.NoError(t, err)
	require.Equal(t, "catalog-v2", updated.Name)
	require.False(t, updated.IsActive)
	require.Equal(t, map[string]any{"item_selector": ".tile"}, updated.Config)
	require.Equal(t, "listing", updated.ModuleName)

	_, err = st.UpdateSource(ctx, 9999, store.SourceUpdate{Name: &newName})
	require.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, st.DeleteSource(ctx, src.ID))
	_, err = st.GetSource(ctx, src.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.DeleteSource(ctx, src.ID), store.ErrNotFound)
}

func TestUpdateSourceRejectsTakenName(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	a := newSource("alpha", "feed")
	b := newSource("beta", "feed")
	require.NoError(t, st.CreateSource(ctx, a))
	require.NoError(t, st.CreateSource(ctx, b))

	taken := "alpha"
	_, err := st.UpdateSource(ctx, b.ID, store.SourceUpdate{Name: &taken})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	// Renaming to its own name is fine.
	same := "beta"
	_, err = st.UpdateSource(ctx, b.ID, store.SourceUpdate{Name: &same})
	require.NoError(t, err)

	// A nonexistent row is not-found, even when the target name is taken.
	_, err = st.UpdateSource(ctx, 9999, store.SourceUpdate{Name: &taken})
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestListSourcesFilters(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	feedSrc := newSource("news", "feed")
	feedSrc.SourceType = "news"
	pageSrc := newSource("docs", "webpage")
	pageSrc.SourceType = "docs"
	offSrc := newSource("archive", "feed")
	offSrc.SourceType = "news"
	offSrc.IsActive = false

	for _, src := range []*entity.Source{feedSrc, pageSrc, offSrc} {
		require.NoError(t, st.CreateSource(ctx, src))
	}

	all, total, err := st.ListSources(ctx, store.SourceFilter{})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, all, 3)

	news, total, err := st.ListSources(ctx, store.SourceFilter{SourceType: "news"})
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, news, 2)

	active := true
	activeNews, total, err := st.ListSources(ctx, store.SourceFilter{SourceType: "news", IsActive: &active})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, activeNews, 1)
	require.Equal(t, "news", activeNews[0].Name)

	paged, total, err := st.ListSources(ctx, store.SourceFilter{Limit: 2, Offset: 2})
	require.NoError(t, err)
	require.Equal(t, 3, total)
	require.Len(t, paged, 1)
	require.Equal(t, "archive", paged[0].Name)
}

func TestScrapedDataLifecycle(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("blog", "webpage")
	require.NoError(t, st.CreateSource(ctx, src))

	empty := &entity.ScrapedData{SourceID: src.ID, URL: src.URL}
	require.ErrorIs(t, st.CreateScrapedData(ctx, empty), store.ErrNoPayload)

	job := &entity.ScrapingJob{JobType: "webpage"}
	require.NoError(t, st.CreateJob(ctx, job))

	first := &entity.ScrapedData{
		SourceID:    src.ID,
		JobID:       &job.ID,
		URL:         src.URL,
		RawHTML:     "<html><body>one</body></html>",
		StatusCode:  200,
		ContentType: "text/html",
		ScrapedAt:   time.Now().UTC().Add(-time.Hour).Truncate(time.Second),
	}
	require.NoError(t, st.CreateScrapedData(ctx, first))

	second := &entity.ScrapedData{
		SourceID:   src.ID,
		URL:        src.URL,
		RawJSON:    `{"items":[]}`,
		StatusCode: 200,
	}
	require.NoError(t, st.CreateScrapedData(ctx, second))
	require.False(t, second.ScrapedAt.IsZero())

	got, err := st.GetScrapedData(ctx, first.ID)
	require.NoError(t, err)
	require.Equal(t, first.RawHTML, got.RawHTML)
	require.NotNil(t, got.JobID)
	require.Equal(t, job.ID, *got.JobID)
	require.True(t, got.ScrapedAt.Equal(first.ScrapedAt))

	_, err = st.GetScrapedData(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)

	captures, total, err := st.ListScrapedData(ctx, src.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, captures, 2)
	// Newest first.
	require.Equal(t, second.ID, captures[0].ID)
	require.Equal(t, first.ID, captures[1].ID)

	page, total, err := st.ListScrapedData(ctx, src.ID, 1, 1)
	require.NoError(t, err)
	require.Equal(t, 2, total)
	require.Len(t, page, 1)
	require.Equal(t, first.ID, page[0].ID)
}

func TestProcessedDataLifecycle(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("news", "feed")
	require.NoError(t, st.CreateSource(ctx, src))
	capture := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawText: "feed body"}
	require.NoError(t, st.CreateScrapedData(ctx, capture))

	missing := &entity.ProcessedData{ScrapedDataID: capture.ID}
	require.Error(t, st.CreateProcessedData(ctx, missing))

	item := &entity.ProcessedData{
		ScrapedDataID:   capture.ID,
		Title:           "headline",
		ContentText:     "body text",
		Summary:         "headline",
		KeyConcepts:     []string{"go", "pipelines"},
		Metadata:        map[string]any{"link": "https://example.com/a", "position": float64(0)},
		ProcessorModule: "feed",
	}
	require.NoError(t, st.CreateProcessedData(ctx, item))
	require.NotZero(t, item.ID)

	got, err := st.GetProcessedData(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, "headline", got.Title)
	require.Nil(t, got.SentimentScore)
	require.Equal(t, []string{"go", "pipelines"}, got.KeyConcepts)
	require.Equal(t, item.Metadata, got.Metadata)
	require.Equal(t, "feed", got.ProcessorModule)

	score := 0.5
	summary := "a better summary"
	require.NoError(t, st.UpdateProcessedAnalysis(ctx, item.ID, store.AnalysisUpdate{
		Summary:        &summary,
		SentimentScore: &score,
		KeyConcepts:    []string{"go"},
		Metadata:       map[string]any{"link": "https://example.com/a", "word_count": float64(2)},
	}))

	got, err = st.GetProcessedData(ctx, item.ID)
	require.NoError(t, err)
	require.Equal(t, summary, got.Summary)
	require.NotNil(t, got.SentimentScore)
	require.Equal(t, 0.5, *got.SentimentScore)
	require.Equal(t, []string{"go"}, got.KeyConcepts)
	require.Equal(t, map[string]any{"link": "https://example.com/a", "word_count": float64(2)}, got.Metadata)
	// Scraper-owned fields stay put.
	require.Equal(t, "headline", got.Title)
	require.Equal(t, "body text", got.ContentText)

	require.ErrorIs(t,
		st.UpdateProcessedAnalysis(ctx, 9999, store.AnalysisUpdate{Summary: &summary}),
		store.ErrNotFound)

	// No fields set is a no-op, not an error.
	require.NoError(t, st.UpdateProcessedAnalysis(ctx, item.ID, store.AnalysisUpdate{}))
}

func TestListProcessedBySource(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("multi", "feed")
	other := newSource("other", "feed")
	require.NoError(t, st.CreateSource(ctx, src))
	require.NoError(t, st.CreateSource(ctx, other))

	capA := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawText: "a"}
	capB := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawText: "b"}
	capOther := &entity.ScrapedData{SourceID: other.ID, URL: other.URL, RawText: "c"}
	for _, c := range []*entity.ScrapedData{capA, capB, capOther} {
		require.NoError(t, st.CreateScrapedData(ctx, c))
	}

	mk := func(captureID int64, title string) {
		require.NoError(t, st.CreateProcessedData(ctx, &entity.ProcessedData{
			ScrapedDataID:   captureID,
			Title:           title,
			ProcessorModule: "feed",
		}))
	}
	mk(capA.ID, "a1")
	mk(capA.ID, "a2")
	mk(capB.ID, "b1")
	mk(capOther.ID, "x1")

	items, err := st.ListProcessedBySource(ctx, src.ID)
	require.NoError(t, err)
	require.Len(t, items, 3)
	require.Equal(t, "a1", items[0].Title)
	require.Equal(t, "b1", items[2].Title)

	byCapture, err := st.ListProcessedData(ctx, capA.ID)
	require.NoError(t, err)
	require.Len(t, byCapture, 2)

	none, err := st.ListProcessedBySource(ctx, other.ID+100)
	require.NoError(t, err)
	require.Empty(t, none)
}

func TestJobLifecycle(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	job := &entity.ScrapingJob{
		JobType:  "feed",
		Metadata: map[string]any{"source_id": float64(7)},
	}
	require.NoError(t, st.CreateJob(ctx, job))
	require.NotZero(t, job.ID)
	require.Equal(t, entity.JobPending, job.Status)
	require.False(t, job.StartedAt.IsZero())

	require.NoError(t, st.StartJob(ctx, job.ID))
	got, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobRunning, got.Status)
	require.Nil(t, got.CompletedAt)
	require.Equal(t, job.Metadata, got.Metadata)

	require.NoError(t, st.CompleteJob(ctx, job.ID, 12))
	got, err = st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobCompleted, got.Status)
	require.True(t, got.Status.Terminal())
	require.NotNil(t, got.CompletedAt)
	require.Equal(t, 12, got.RecordsProcessed)

	failed := &entity.ScrapingJob{JobType: "webpage"}
	require.NoError(t, st.CreateJob(ctx, failed))
	require.NoError(t, st.FailJob(ctx, failed.ID, "fetch blew up"))
	got, err = st.GetJob(ctx, failed.ID)
	require.NoError(t, err)
	require.Equal(t, entity.JobFailed, got.Status)
	require.Equal(t, "fetch blew up", got.ErrorMessage)
	require.NotNil(t, got.CompletedAt)

	jobs, err := st.ListJobs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	require.Equal(t, failed.ID, jobs[0].ID)

	one, err := st.ListJobs(ctx, 1)
	require.NoError(t, err)
	require.Len(t, one, 1)

	n, err := st.CountJobs(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	_, err = st.GetJob(ctx, 9999)
	require.ErrorIs(t, err, store.ErrNotFound)
	require.ErrorIs(t, st.StartJob(ctx, 9999), store.ErrNotFound)
}

func TestDeleteSourceCascades(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("doomed", "feed")
	require.NoError(t, st.CreateSource(ctx, src))

	job := &entity.ScrapingJob{JobType: "feed"}
	require.NoError(t, st.CreateJob(ctx, job))

	capture := &entity.ScrapedData{SourceID: src.ID, JobID: &job.ID, URL: src.URL, RawText: "x"}
	require.NoError(t, st.CreateScrapedData(ctx, capture))
	item := &entity.ProcessedData{ScrapedDataID: capture.ID, Title: "t", ProcessorModule: "feed"}
	require.NoError(t, st.CreateProcessedData(ctx, item))

	require.NoError(t, st.DeleteSource(ctx, src.ID))

	_, err := st.GetScrapedData(ctx, capture.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
	_, err = st.GetProcessedData(ctx, item.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	// The audit trail outlives the source.
	kept, err := st.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, kept.ID)
}

func TestWithTx(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	src := newSource("txsrc", "feed")
	require.NoError(t, st.CreateSource(ctx, src))

	err := st.WithTx(ctx, func(tx *store.Store) error {
		capture := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawText: "kept"}
		if err := tx.CreateScrapedData(ctx, capture); err != nil {
			return err
		}
		// Nested calls join the same transaction.
		return tx.WithTx(ctx, func(inner *store.Store) error {
			return inner.TouchSourceScraped(ctx, src.ID, time.Now())
		})
	})
	require.NoError(t, err)

	_, total, err := st.ListScrapedData(ctx, src.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	refreshed, err := st.GetSource(ctx, src.ID)
	require.NoError(t, err)
	require.NotNil(t, refreshed.LastScrapedAt)

	boom := st.WithTx(ctx, func(tx *store.Store) error {
		capture := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawText: "discarded"}
		if err := tx.CreateScrapedData(ctx, capture); err != nil {
			return err
		}
		return context.Canceled
	})
	require.ErrorIs(t, boom, context.Canceled)

	_, total, err = st.ListScrapedData(ctx, src.ID, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
}
