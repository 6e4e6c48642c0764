// Package textstats is the built-in analyzer: mechanical statistics over one
// processed item's text. It needs no model or external service, so it is the
// default analyzer behind every built-in scraper.
package textstats

import (
	"context"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/words"

	"pipehub/internal/modules/modutil"
	"pipehub/internal/pipeline"
	"pipehub/internal/store"
)

// ModuleName is the registry key for this analyzer.
const ModuleName = "textstats"

// readingWordsPerMinute is the usual adult silent-reading rate.
const readingWordsPerMinute = 200

const topTermCount = 5

// Analyzer fills sentiment-free insight onto a processed item: word and
// character counts, estimated reading time, and the most frequent meaningful
// terms as key concepts.
//
// Metadata keys owned (written wholesale on every run): word_count,
// unique_word_count, char_count, reading_time_seconds, top_terms. All other
// keys are preserved.
type Analyzer struct{}

var _ pipeline.Analyzer = (*Analyzer)(nil)

func New() *Analyzer {
	return &Analyzer{}
}

func (a *Analyzer) Execute(ctx context.Context, st *store.Store, req pipeline.AnalyzeRequest) (*pipeline.AnalyzeResult, error) {
	item, err := st.GetProcessedData(ctx, req.ProcessedDataID)
	if err != nil {
		return nil, err
	}

	text := strings.TrimSpace(item.Title + " " + item.ContentText)
	stats := Compute(text)

	meta := item.Metadata
	if meta == nil {
		meta = make(map[string]any)
	}
	meta["word_count"] = stats.WordCount
	meta["unique_word_count"] = stats.UniqueWordCount
	meta["char_count"] = stats.CharCount
	meta["reading_time_seconds"] = stats.ReadingTimeSeconds
	topTerms := make([]any, len(stats.TopTerms))
	for i, term := range stats.TopTerms {
		topTerms[i] = term
	}
	meta["top_terms"] = topTerms

	update := store.AnalysisUpdate{
		KeyConcepts: stats.TopTerms,
		Metadata:    meta,
	}
	if item.Summary == "" && item.ContentText != "" {
		summary := modutil.Truncate(item.ContentText, 200)
		update.Summary = &summary
	}
	if err := st.UpdateProcessedAnalysis(ctx, item.ID, update); err != nil {
		return nil, err
	}
	return &pipeline.AnalyzeResult{AnalyzedCount: 1}, nil
}

// Stats is the mechanical profile of one text.
type Stats struct {
	WordCount          int
	UniqueWordCount    int
	CharCount          int
	ReadingTimeSeconds int
	TopTerms           []string
}

// Compute tokenizes text with Unicode word segmentation and derives counts
// plus the most frequent stopword-filtered terms.
func Compute(text string) Stats {
	stats := Stats{CharCount: utf8.RuneCountInString(text)}

	freq := make(map[string]int)
	seen := make(map[string]struct{})
	tokens := words.FromString(text)
	for tokens.Next() {
		token := tokens.Value()
		if !hasLetter(token) {
			continue
		}
		stats.WordCount++
		term := strings.ToLower(token)
		seen[term] = struct{}{}
		if len(term) > 2 && !stopwords[term] {
			freq[term]++
		}
	}
	stats.UniqueWordCount = len(seen)
	stats.ReadingTimeSeconds = stats.WordCount * 60 / readingWordsPerMinute
	stats.TopTerms = topTerms(freq, topTermCount)
	return stats
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// topTerms returns the n most frequent terms, ties broken alphabetically so
// the result is deterministic.
func topTerms(freq map[string]int, n int) []string {
	terms := make([]string, 0, len(freq))
	for term := range freq {
		terms = append(terms, term)
	}
	sort.Slice(terms, func(i, j int) bool {
		if freq[terms[i]] != freq[terms[j]] {
			return freq[terms[i]] > freq[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "have": true, "this": true, "that": true, "with": true,
	"from": true, "they": true, "will": true, "would": true, "there": true,
	"their": true, "what": true, "about": true, "which": true, "when": true,
	"were": true, "been": true, "more": true, "into": true, "than": true,
	"them": true, "then": true, "its": true, "also": true, "your": true,
	"who": true, "how": true, "each": true, "over": true, "such": true,
	"some": true, "these": true, "those": true, "after": true, "before": true,
}
