package services

import (
	"context"
	"strings"

	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Extractive fallback tuning.
const (
	// fallbackLeadingSentences is how many opening sentences are always
	// kept.
	fallbackLeadingSentences = 3

	// fallbackMaxSentences caps the fallback summary length.
	fallbackMaxSentences = 10
)

// fallbackKeywords select sentences likely to carry the core message.
var fallbackKeywords = []string{
	"god", "jesus", "christ", "gospel", "grace", "faith",
	"scripture", "prayer", "love", "salvation", "spirit",
	"remember", "today", "important",
}

// FallbackSummarizer builds a degraded, non-AI summary from transcript
// text: the leading sentences plus sentences containing domain
// keywords. It never fails, which is what lets the retry queue
// guarantee every job resolves.
type FallbackSummarizer struct {
	keywords []string
}

// NewFallbackSummarizer creates a fallback summarizer with the default
// keyword set.
func NewFallbackSummarizer() *FallbackSummarizer {
	return &FallbackSummarizer{keywords: fallbackKeywords}
}

// Summarize produces an extractive summary. Empty or whitespace-only
// transcripts yield an empty summary rather than an error.
func (f *FallbackSummarizer) Summarize(transcriptText string) *driven.SummaryResult {
	sentences := splitSentences(transcriptText)
	if len(sentences) == 0 {
		return &driven.SummaryResult{}
	}

	var picked []string
	seen := make(map[int]bool)

	for i := 0; i < len(sentences) && i < fallbackLeadingSentences; i++ {
		picked = append(picked, sentences[i])
		seen[i] = true
	}

	for i, s := range sentences {
		if len(picked) >= fallbackMaxSentences {
			break
		}
		if seen[i] {
			continue
		}
		if containsKeyword(s, f.keywords) {
			picked = append(picked, s)
			seen[i] = true
		}
	}

	return &driven.SummaryResult{Text: strings.Join(picked, " ")}
}

// splitSentences breaks text on terminal punctuation. Deliberately
// naive: the fallback summary is a degraded mode, not prose analysis.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if s := strings.TrimSpace(b.String()); s != "" {
				sentences = append(sentences, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func containsKeyword(sentence string, keywords []string) bool {
	lower := strings.ToLower(sentence)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Ensure LocalSummarizer implements the interface.
var _ driven.Summarizer = (*LocalSummarizer)(nil)

// LocalSummarizer adapts the extractive fallback to the Summarizer
// port, for installs without an AI provider configured. Every summary
// is a fallback summary; the queue never needs to retry.
type LocalSummarizer struct {
	fallback *FallbackSummarizer
}

// NewLocalSummarizer creates a summarizer backed only by extraction.
func NewLocalSummarizer() *LocalSummarizer {
	return &LocalSummarizer{fallback: NewFallbackSummarizer()}
}

// Generate produces an extractive summary. The service type is ignored.
func (l *LocalSummarizer) Generate(_ context.Context, transcriptText, _ string) (*driven.SummaryResult, error) {
	return l.fallback.Summarize(transcriptText), nil
}
