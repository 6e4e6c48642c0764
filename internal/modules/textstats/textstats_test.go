package textstats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"pipehub/internal/entity"
	"pipehub/internal/modules/textstats"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
	"pipehub/internal/testutil"
)

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestCompute(t *testing.T) {
	stats := textstats.Compute("Compilers compile compilers. The lexer feeds the parser, and the parser feeds the lexer.")

	require.Equal(t, 14, stats.WordCount)
	require.Equal(t, 7, stats.UniqueWordCount)
	require.NotZero(t, stats.CharCount)
	require.Equal(t, 14*60/200, stats.ReadingTimeSeconds)
	// "compilers", "lexer", "parser", and "feeds" each occur twice; "the" and
	// "and" are stopwords, "compile" occurs once.
	require.Equal(t, []string{"compilers", "feeds", "lexer", "parser", "compile"}, stats.TopTerms)
}

func TestComputeEmptyText(t *testing.T) {
	stats := textstats.Compute("")
	require.Zero(t, stats.WordCount)
	require.Zero(t, stats.UniqueWordCount)
	require.Empty(t, stats.TopTerms)
}

func seedItem(t *testing.T, st *store.Store) *entity.ProcessedData {
	t.Helper()
	ctx := testCtx(t)

	src := &entity.Source{Name: "seed", URL: "https://example.com", ModuleName: "webpage", IsActive: true}
	require.NoError(t, st.CreateSource(ctx, src))
	capture := &entity.ScrapedData{SourceID: src.ID, URL: src.URL, RawHTML: "<html></html>"}
	require.NoError(t, st.CreateScrapedData(ctx, capture))

	item := &entity.ProcessedData{
		ScrapedDataID:   capture.ID,
		Title:           "Garbage collection",
		ContentText:     "Tracing collectors walk the heap. Reference counting collectors count references.",
		Metadata:        map[string]any{"link": "https://example.com/gc"},
		ProcessorModule: "webpage",
	}
	require.NoError(t, st.CreateProcessedData(ctx, item))
	return item
}

func TestAnalyzeFillsStats(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	item := seedItem(t, st)

	analyzer := textstats.New()
	result, err := analyzer.Execute(ctx, st, pipeline.AnalyzeRequest{ProcessedDataID: item.ID})
	require.NoError(t, err)
	require.Equal(t, 1, result.AnalyzedCount)

	got, err := st.GetProcessedData(ctx, item.ID)
	require.NoError(t, err)
	require.NotEmpty(t, got.KeyConcepts)
	require.Contains(t, got.KeyConcepts, "collectors")
	require.EqualValues(t, 12, got.Metadata["word_count"])
	require.NotZero(t, got.Metadata["char_count"])
	require.NotNil(t, got.Metadata["reading_time_seconds"])
	require.NotEmpty(t, got.Metadata["top_terms"])
	// The summary backfills from the content text.
	require.Equal(t, got.ContentText, got.Summary)
	// Scraper-written metadata survives analysis.
	require.Equal(t, "https://example.com/gc", got.Metadata["link"])
}

func TestAnalyzeIdempotent(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)
	item := seedItem(t, st)

	analyzer := textstats.New()
	_, err := analyzer.Execute(ctx, st, pipeline.AnalyzeRequest{ProcessedDataID: item.ID})
	require.NoError(t, err)
	first, err := st.GetProcessedData(ctx, item.ID)
	require.NoError(t, err)

	_, err = analyzer.Execute(ctx, st, pipeline.AnalyzeRequest{ProcessedDataID: item.ID})
	require.NoError(t, err)
	second, err := st.GetProcessedData(ctx, item.ID)
	require.NoError(t, err)

	require.Equal(t, first.KeyConcepts, second.KeyConcepts)
	require.Equal(t, first.Metadata, second.Metadata)
	require.Equal(t, first.Summary, second.Summary)
}

func TestAnalyzeNotFound(t *testing.T) {
	ctx := testCtx(t)
	st := testutil.OpenStore(t)

	_, err := textstats.New().Execute(ctx, st, pipeline.AnalyzeRequest{ProcessedDataID: 42})
	require.ErrorIs(t, err, store.ErrNotFound)
}
