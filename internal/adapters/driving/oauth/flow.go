// Package oauth implements the browser sign-in flow: PKCE parameters,
// the local callback listener, and the code-for-token exchange.
package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// Flow holds the per-attempt PKCE parameters for a sign-in.
type Flow struct {
	Verifier  string
	Challenge string
	State     string
}

// NewFlow generates fresh PKCE parameters.
func NewFlow() (*Flow, error) {
	verifier, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate verifier: %w", err)
	}
	state, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	sum := sha256.Sum256([]byte(verifier))
	return &Flow{
		Verifier:  verifier,
		Challenge: base64.RawURLEncoding.EncodeToString(sum[:]),
		State:     state,
	}, nil
}

// AuthorizeURL builds the authorization URL the browser is sent to.
func (f *Flow) AuthorizeURL(apiURL, clientID, redirectURI string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("client_id", clientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", f.State)
	q.Set("code_challenge", f.Challenge)
	q.Set("code_challenge_method", "S256")
	return apiURL + "/v1/oauth/authorize?" + q.Encode()
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// OpenBrowser opens the default browser at the given URL.
func OpenBrowser(target string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", target).Start()
	case "linux":
		return exec.Command("xdg-open", target).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", target).Start()
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}
}
