package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/oauth2"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
)

// Ensure EntitlementClient implements the interface.
var _ driven.EntitlementChecker = (*EntitlementClient)(nil)

// EntitlementClient asks the backend whether a user holds a sync
// entitlement.
type EntitlementClient struct {
	baseURL string
	tokens  oauth2.TokenSource
	http    *http.Client
}

// NewEntitlementClient creates an entitlement checker against the
// backend.
func NewEntitlementClient(baseURL string, tokens oauth2.TokenSource) *EntitlementClient {
	return &EntitlementClient{
		baseURL: baseURL,
		tokens:  tokens,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// CanSync returns true when the user holds a sync entitlement. A 403
// is a definitive "no", not an error.
func (c *EntitlementClient) CanSync(ctx context.Context, userID string) (bool, error) {
	token, err := c.tokens.Token()
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
	}

	path := "/v1/users/" + url.PathEscape(userID) + "/entitlements"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, fmt.Errorf("create request: %w", err)
	}
	token.SetAuthHeader(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("%w: read response: %v", domain.ErrNetwork, err)
	}

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return false, domain.ErrAuthExpired
	case resp.StatusCode >= 500:
		return false, fmt.Errorf("%w: HTTP %d", domain.ErrNetwork, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return false, fmt.Errorf("entitlement check: HTTP %d", resp.StatusCode)
	}

	var result struct {
		CanSync bool `json:"can_sync"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return false, fmt.Errorf("%w: unmarshal response: %v", domain.ErrDataCorruption, err)
	}
	return result.CanSync, nil
}
