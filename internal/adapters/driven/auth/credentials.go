// Package auth manages backend credentials: a JSON credentials file on
// disk and an oauth2.TokenSource that refreshes access tokens against
// the backend's token endpoint.
package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credentials is the persisted login state for the signed-in user.
type Credentials struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	TokenType    string    `json:"token_type"`
	Expiry       time.Time `json:"expiry"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CredentialsFile persists credentials as JSON with restricted
// permissions.
type CredentialsFile struct {
	mu   sync.Mutex
	path string
}

// NewCredentialsFile creates a credentials store. If dir is empty,
// defaults to ~/.tabletnotes/credentials.json.
func NewCredentialsFile(dir string) (*CredentialsFile, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".tabletnotes")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, err
	}
	return &CredentialsFile{path: filepath.Join(dir, "credentials.json")}, nil
}

// Load reads credentials from disk. Returns (nil, nil) when the user
// has never signed in.
func (f *CredentialsFile) Load() (*Credentials, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var creds Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	return &creds, nil
}

// Save writes credentials to disk.
func (f *CredentialsFile) Save(creds *Credentials) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	creds.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(f.path, data, 0600)
}

// Clear removes the credentials file (sign out).
func (f *CredentialsFile) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(f.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Path returns the credentials file path.
func (f *CredentialsFile) Path() string {
	return f.path
}
