package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/auth"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driving/oauth"
)

// loginTimeout bounds how long we wait for the browser round-trip.
const loginTimeout = 5 * time.Minute

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the TabletNotes backend",
	Long: `Opens the browser to sign in with your TabletNotes account.

The browser redirects back to a local callback server with an
authorization code, which is exchanged for tokens and stored in the
credentials file.`,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and remove stored credentials",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := credentialsFile.Clear(); err != nil {
			return fmt.Errorf("remove credentials: %w", err)
		}
		cmd.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

func runLogin(cmd *cobra.Command, _ []string) error {
	apiURL := flagAPIURL
	if apiURL == "" {
		apiURL = configStore.GetString("backend.api_url")
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	clientID := configStore.GetString("backend.client_id")
	if clientID == "" {
		clientID = defaultClientID
	}

	flow, err := oauth.NewFlow()
	if err != nil {
		return err
	}

	listener, err := oauth.Listen(flow.State)
	if err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close()

	authorizeURL := flow.AuthorizeURL(apiURL, clientID, listener.RedirectURI())

	cmd.Println("Opening browser to sign in...")
	if err := oauth.OpenBrowser(authorizeURL); err != nil {
		cmd.Printf("Could not open browser. Visit:\n\n  %s\n\n", authorizeURL)
	}

	waitCtx, cancelWait := context.WithTimeout(cmd.Context(), loginTimeout)
	defer cancelWait()

	code, err := listener.AwaitCode(waitCtx)
	if err != nil {
		return fmt.Errorf("waiting for sign-in: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	tokens, err := oauth.Exchange(ctx, apiURL+"/v1/oauth/token", clientID, code, listener.RedirectURI(), flow.Verifier)
	if err != nil {
		return fmt.Errorf("exchange code: %w", err)
	}

	userID, err := fetchUserID(ctx, apiURL, tokens.AccessToken)
	if err != nil {
		return fmt.Errorf("look up account: %w", err)
	}

	err = credentialsFile.Save(&auth.Credentials{
		UserID:       userID,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		Expiry:       tokens.Expiry(),
	})
	if err != nil {
		return fmt.Errorf("save credentials: %w", err)
	}

	cmd.Printf("Signed in as %s.\n", userID)
	return nil
}

// fetchUserID resolves the signed-in account from the backend.
func fetchUserID(ctx context.Context, apiURL, accessToken string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/v1/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("account lookup failed with status %d", resp.StatusCode)
	}

	var me struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", err
	}
	if me.ID == "" {
		return "", fmt.Errorf("account lookup returned no id")
	}
	return me.ID, nil
}
