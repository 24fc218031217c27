// Package backend implements the remote backend port over authenticated
// HTTP. Error mapping follows the port contract: HTTP 409 on create is
// domain.ErrAlreadyExists, transport failures and 5xx are
// domain.ErrNetwork, 429 carries the server-advised delay as a
// domain.RateLimitError, malformed response shapes are
// domain.ErrDataCorruption, and a request is retried once with a forced
// credential refresh before domain.ErrAuthExpired surfaces.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/time/rate"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// requestTimeout is the fixed wall-clock timeout for backend calls.
const requestTimeout = 60 * time.Second

// Outbound request budget. The sync engine is serial, so this mostly
// smooths bursts from queue drains.
const (
	requestsPerSecond = 5
	requestBurst      = 10
)

var _ driven.RemoteBackend = (*Client)(nil)

// Client is an HTTP client for the TabletNotes sync backend.
type Client struct {
	BaseURL string
	HTTP    *http.Client

	tokens      oauth2.TokenSource
	limiter     *rate.Limiter
	downloadDir string
}

// New creates a backend client. Credentials come from the token source;
// downloaded assets land under downloadDir.
func New(baseURL string, tokens oauth2.TokenSource, downloadDir string) *Client {
	return &Client{
		BaseURL:     baseURL,
		HTTP:        &http.Client{Timeout: requestTimeout},
		tokens:      tokens,
		limiter:     rate.NewLimiter(rate.Limit(requestsPerSecond), requestBurst),
		downloadDir: downloadDir,
	}
}

// CreateSermon creates a new aggregate remotely.
func (c *Client) CreateSermon(ctx context.Context, payload driven.SermonPayload) (*driven.CreateResult, error) {
	var resp createResponse
	if err := c.do(ctx, "POST", "/v1/sermons", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: create response missing id", domain.ErrDataCorruption)
	}
	result := &driven.CreateResult{RemoteID: resp.ID}
	result.CreatedAt, _ = time.Parse(time.RFC3339, resp.CreatedAt)
	result.UpdatedAt, _ = time.Parse(time.RFC3339, resp.UpdatedAt)
	return result, nil
}

// UpdateSermon updates an existing aggregate by remote ID.
func (c *Client) UpdateSermon(ctx context.Context, remoteID string, payload driven.SermonPayload) error {
	return c.do(ctx, "PUT", "/v1/sermons/"+url.PathEscape(remoteID), payload, nil)
}

// FetchSermons returns all aggregates owned by the user, with nested
// children.
func (c *Client) FetchSermons(ctx context.Context, userID string) ([]driven.RemoteSermon, error) {
	params := url.Values{}
	params.Set("user_id", userID)

	var resp []remoteSermonDTO
	if err := c.do(ctx, "GET", "/v1/sermons?"+params.Encode(), nil, &resp); err != nil {
		return nil, err
	}

	sermons := make([]driven.RemoteSermon, 0, len(resp))
	for i := range resp {
		s, err := resp[i].toDomain()
		if err != nil {
			return nil, err
		}
		sermons = append(sermons, *s)
	}
	return sermons, nil
}

// GetUploadSlot requests a signed upload destination for an asset.
func (c *Client) GetUploadSlot(ctx context.Context, assetName, contentType string, sizeBytes int64) (*driven.UploadSlot, error) {
	body := uploadSlotRequest{
		FileName:    assetName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
	}
	var resp uploadSlotResponse
	if err := c.do(ctx, "POST", "/v1/assets/upload-slot", body, &resp); err != nil {
		return nil, err
	}
	if resp.UploadURL == "" || resp.StoragePath == "" {
		return nil, fmt.Errorf("%w: upload slot response incomplete", domain.ErrDataCorruption)
	}
	return &driven.UploadSlot{UploadURL: resp.UploadURL, StoragePath: resp.StoragePath}, nil
}

// UploadAsset streams a local file to a signed upload URL. The slot URL
// is pre-authorised, so no bearer token travels with it.
func (c *Client) UploadAsset(ctx context.Context, localPath, uploadURL string) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat asset: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", uploadURL, f)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body) //nolint:errcheck // drain for connection reuse

	if resp.StatusCode >= 400 {
		return statusError(resp.StatusCode, resp.Header, nil)
	}
	return nil
}

// PublicAssetURL resolves a storage path to a permanent public URL.
func (c *Client) PublicAssetURL(ctx context.Context, storagePath string) (string, error) {
	params := url.Values{}
	params.Set("path", storagePath)

	var resp publicURLResponse
	if err := c.do(ctx, "GET", "/v1/assets/public-url?"+params.Encode(), nil, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("%w: public url response missing url", domain.ErrDataCorruption)
	}
	return resp.URL, nil
}

// DownloadAsset fetches a remote asset into the download directory and
// returns the local path.
func (c *Client) DownloadAsset(ctx context.Context, assetURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", assetURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		io.Copy(io.Discard, resp.Body) //nolint:errcheck
		return "", statusError(resp.StatusCode, resp.Header, nil)
	}

	if err := os.MkdirAll(c.downloadDir, 0700); err != nil {
		return "", fmt.Errorf("create download directory: %w", err)
	}

	name := filepath.Base(req.URL.Path)
	if name == "." || name == "/" {
		name = "asset"
	}
	localPath := filepath.Join(c.downloadDir, name)

	f, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("create asset file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		os.Remove(localPath)
		return "", fmt.Errorf("%w: download asset: %v", domain.ErrNetwork, err)
	}
	return localPath, nil
}

// DeleteAllUserData issues a remote wipe for the user.
func (c *Client) DeleteAllUserData(ctx context.Context, userID string) error {
	return c.do(ctx, "DELETE", "/v1/users/"+url.PathEscape(userID)+"/data", nil, nil)
}

// --- HTTP helpers ---

// apiError is the standard error body from the server.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *apiError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Code
}

// do executes an authenticated request, refreshing credentials once on
// a 401 before giving up.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	status, err := c.doOnce(ctx, method, path, body, result, false)
	if err != nil && status == http.StatusUnauthorized {
		logger.Debug("Request unauthorized, refreshing credentials and retrying")
		_, err = c.doOnce(ctx, method, path, body, result, true)
	}
	return err
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, result any, forceRefresh bool) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	token, err := c.token(forceRefresh)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	token.SetAuthHeader(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	if resp.StatusCode >= 400 {
		return resp.StatusCode, statusError(resp.StatusCode, resp.Header, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return resp.StatusCode, fmt.Errorf("%w: unmarshal response: %v", domain.ErrDataCorruption, err)
		}
	}
	return resp.StatusCode, nil
}

// token fetches a credential from the token source. forceRefresh drops
// any cached token first so the source must mint a fresh one.
func (c *Client) token(forceRefresh bool) (*oauth2.Token, error) {
	if forceRefresh {
		if r, ok := c.tokens.(interface{ Refresh() (*oauth2.Token, error) }); ok {
			return r.Refresh()
		}
	}
	return c.tokens.Token()
}

// statusError maps an HTTP error status to the domain error taxonomy.
func statusError(status int, header http.Header, body []byte) error {
	switch {
	case status == http.StatusConflict:
		return domain.ErrAlreadyExists
	case status == http.StatusUnauthorized:
		return domain.ErrAuthExpired
	case status == http.StatusForbidden:
		return domain.ErrSubscriptionRequired
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusTooManyRequests:
		return &domain.RateLimitError{RetryAfter: retryAfter(header)}
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", domain.ErrNetwork, status)
	}

	var apiErr apiError
	if len(body) > 0 && json.Unmarshal(body, &apiErr) == nil && apiErr.Code != "" {
		return fmt.Errorf("HTTP %d: %w", status, &apiErr)
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
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
