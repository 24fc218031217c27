package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// refreshBuffer refreshes tokens slightly before they expire so
// in-flight requests never carry a token about to lapse.
const refreshBuffer = 5 * time.Minute

// Ensure TokenSource implements the interface.
var _ oauth2.TokenSource = (*TokenSource)(nil)

// TokenSource hands out access tokens from the credentials file,
// refreshing against the backend token endpoint when they near expiry.
// Refreshed tokens are persisted back to the file.
type TokenSource struct {
	creds  *CredentialsFile
	config *oauth2.Config

	mu     sync.Mutex
	cached *oauth2.Token
}

// NewTokenSource creates a token source backed by the credentials file.
// tokenURL is the backend's OAuth token endpoint.
func NewTokenSource(creds *CredentialsFile, clientID, tokenURL string) *TokenSource {
	return &TokenSource{
		creds: creds,
		config: &oauth2.Config{
			ClientID: clientID,
			Endpoint: oauth2.Endpoint{TokenURL: tokenURL},
		},
	}
}

// Token returns a valid access token, refreshing if it is expired or
// about to expire.
func (s *TokenSource) Token() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil && s.cached.Valid() && time.Until(s.cached.Expiry) > refreshBuffer {
		return s.cached, nil
	}
	return s.tokenLocked(false)
}

// Refresh discards any cached token and forces a refresh against the
// token endpoint. Used after the backend rejects a token the local
// expiry said was still good.
func (s *TokenSource) Refresh() (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
	return s.tokenLocked(true)
}

// tokenLocked loads credentials and refreshes when needed. Caller
// holds s.mu.
func (s *TokenSource) tokenLocked(force bool) (*oauth2.Token, error) {
	stored, err := s.creds.Load()
	if err != nil {
		return nil, fmt.Errorf("load credentials: %w", err)
	}
	if stored == nil || stored.AccessToken == "" {
		return nil, domain.ErrAuthExpired
	}

	token := &oauth2.Token{
		AccessToken:  stored.AccessToken,
		RefreshToken: stored.RefreshToken,
		TokenType:    stored.TokenType,
		Expiry:       stored.Expiry,
	}

	needsRefresh := force || !token.Valid() ||
		(!token.Expiry.IsZero() && time.Until(token.Expiry) < refreshBuffer)

	if needsRefresh {
		if stored.RefreshToken == "" {
			return nil, domain.ErrAuthExpired
		}

		// Hand the library an expired copy so its TokenSource must hit
		// the endpoint rather than returning the stale access token.
		stale := &oauth2.Token{
			RefreshToken: stored.RefreshToken,
			Expiry:       time.Now().Add(-time.Minute),
		}
		fresh, err := s.config.TokenSource(context.Background(), stale).Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrAuthExpired, err)
		}
		logger.Debug("Refreshed access token, new expiry %s", fresh.Expiry.Format(time.RFC3339))

		stored.AccessToken = fresh.AccessToken
		if fresh.RefreshToken != "" {
			stored.RefreshToken = fresh.RefreshToken
		}
		stored.TokenType = fresh.TokenType
		stored.Expiry = fresh.Expiry
		if err := s.creds.Save(stored); err != nil {
			return nil, fmt.Errorf("save refreshed credentials: %w", err)
		}
		token = fresh
	}

	s.cached = token
	return token, nil
}

// UserID returns the signed-in user's ID, or empty when signed out.
func (s *TokenSource) UserID() (string, error) {
	stored, err := s.creds.Load()
	if err != nil {
		return "", err
	}
	if stored == nil {
		return "", nil
	}
	return stored.UserID, nil
}
