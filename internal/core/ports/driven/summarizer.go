package driven

import "context"

// SummaryResult is the outcome of a summary generation request.
type SummaryResult struct {
	// Title is an optional generated title.
	Title string

	// Text is the summary body.
	Text string
}

// Summarizer generates sermon summaries from transcript text.
//
// Implementations signal rate limiting with *domain.RateLimitError
// (carrying the server-advised delay) and transient server failures as
// domain.ErrNetwork, distinguishably from permanent request errors.
type Summarizer interface {
	// Generate produces a summary for the transcript. The service type
	// selects the prompt template.
	Generate(ctx context.Context, transcriptText, serviceType string) (*SummaryResult, error)
}
