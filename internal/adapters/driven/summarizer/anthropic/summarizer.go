// Package anthropic provides a summariser adapter using the Anthropic API.
package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure Summarizer implements the interface.
var _ driven.Summarizer = (*Summarizer)(nil)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-sonnet-latest"
	DefaultTimeout = 120 * time.Second

	// anthropicVersion is the required API version header.
	anthropicVersion = "2023-06-01"

	// summaryMaxTokens bounds the generated summary length.
	summaryMaxTokens = 1024
)

// Config holds configuration for the Anthropic summariser.
type Config struct {
	// APIKey is the Anthropic API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.anthropic.com).
	BaseURL string

	// Model is the model to use (default: claude-3-5-sonnet-latest).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// Summarizer generates sermon summaries using the Anthropic API.
type Summarizer struct {
	client      *http.Client
	baseURL     string
	apiKey      string
	model       string
	promptStore driven.PromptStore
}

// messagesRequest is the Anthropic /v1/messages request format.
type messagesRequest struct {
	Model     string            `json:"model"`
	Messages  []messagesMessage `json:"messages"`
	MaxTokens int               `json:"max_tokens"`
	System    string            `json:"system,omitempty"`
}

type messagesMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// messagesResponse is the Anthropic /v1/messages response format.
type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// New creates a new Anthropic summariser.
func New(cfg Config) (*Summarizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &Summarizer{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// systemPrompt frames every summary request. The first line of the
// model's reply carries the title so a single call produces both.
const systemPrompt = `You summarise church service transcripts for a note-taking app.
Reply with a short title on the first line prefixed "Title: ", then a blank line, then the summary.`

// defaultSummaryPrompt is the fallback when no PromptStore is configured.
const defaultSummaryPrompt = `Summarise this %s transcript. Capture the main scripture references,
the central message, and any practical applications. Keep it under four paragraphs.

Transcript:
%s`

// promptNameForService maps a service type tag to a prompt name.
func promptNameForService(serviceType string) string {
	switch strings.ToLower(strings.TrimSpace(serviceType)) {
	case "sunday-morning", "sunday-evening", "sunday service":
		return driven.PromptSummarySunday
	case "bible-study", "bible study":
		return driven.PromptSummaryBibleStudy
	case "midweek", "wednesday":
		return driven.PromptSummaryMidweek
	case "conference":
		return driven.PromptSummaryConference
	case "guest-speaker", "guest speaker":
		return driven.PromptSummaryGuest
	case "youth", "youth-service":
		return driven.PromptSummaryYouth
	default:
		return driven.PromptSummaryDefault
	}
}

// Generate produces a summary for the transcript. The service type
// selects the prompt template.
func (s *Summarizer) Generate(ctx context.Context, transcriptText, serviceType string) (*driven.SummaryResult, error) {
	if strings.TrimSpace(transcriptText) == "" {
		return nil, fmt.Errorf("%w: empty transcript", domain.ErrInvalidInput)
	}
	if serviceType == "" {
		serviceType = "church service"
	}

	promptTemplate := s.loadPrompt(promptNameForService(serviceType), defaultSummaryPrompt)
	prompt := fmt.Sprintf(promptTemplate, serviceType, transcriptText)

	text, err := s.sendMessages(ctx, prompt)
	if err != nil {
		return nil, err
	}

	title, body := splitTitle(text)
	return &driven.SummaryResult{Title: title, Text: body}, nil
}

func (s *Summarizer) sendMessages(ctx context.Context, prompt string) (string, error) {
	reqBody := messagesRequest{
		Model:     s.model,
		Messages:  []messagesMessage{{Role: "user", Content: prompt}},
		MaxTokens: summaryMaxTokens,
		System:    systemPrompt,
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		s.baseURL+"/v1/messages",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", &domain.RateLimitError{RetryAfter: retryAfter(resp.Header)}
	case resp.StatusCode >= 500:
		return "", fmt.Errorf("%w: anthropic status %d", domain.ErrNetwork, resp.StatusCode)
	}

	var msgResp messagesResponse
	if err := json.Unmarshal(body, &msgResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if msgResp.Error != nil {
		return "", fmt.Errorf("anthropic error: %s", msgResp.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("anthropic error (status %d): %s", resp.StatusCode, string(body))
	}
	if len(msgResp.Content) == 0 {
		return "", fmt.Errorf("anthropic: no response content returned")
	}

	var result strings.Builder
	for _, block := range msgResp.Content {
		if block.Type == "text" {
			result.WriteString(block.Text)
		}
	}
	return result.String(), nil
}

// splitTitle separates the "Title: ..." first line from the summary
// body. Replies without the marker become an untitled summary.
func splitTitle(text string) (title, body string) {
	text = strings.TrimSpace(text)
	first, rest, found := strings.Cut(text, "\n")
	if !found {
		return "", text
	}
	if t, ok := strings.CutPrefix(strings.TrimSpace(first), "Title:"); ok {
		return strings.TrimSpace(t), strings.TrimSpace(rest)
	}
	return "", text
}

// retryAfter reads the Retry-After header, defaulting to one minute.
func retryAfter(header http.Header) time.Duration {
	if v := header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}

// loadPrompt loads a prompt from the store, falling back to the default
// if unavailable.
func (s *Summarizer) loadPrompt(name, fallback string) string {
	if s.promptStore == nil {
		return fallback
	}
	prompt, err := s.promptStore.Load(name)
	if err != nil {
		return fallback
	}
	return prompt
}

// SetPromptStore sets the prompt store for loading customisable
// prompts. If not set, the summariser uses hardcoded defaults.
func (s *Summarizer) SetPromptStore(store driven.PromptStore) {
	s.promptStore = store
}

// ModelName returns the name of the model being used.
func (s *Summarizer) ModelName() string {
	return s.model
}

// Ping validates the service is reachable by checking the /v1/models
// endpoint without running inference.
func (s *Summarizer) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/models", http.NoBody)
	if err != nil {
		return fmt.Errorf("anthropic: failed to create ping request: %w", err)
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", anthropicVersion)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("anthropic: ping failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("anthropic: API returned status %d (failed to read body: %w)", resp.StatusCode, err)
		}
		return fmt.Errorf("anthropic: API returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}
