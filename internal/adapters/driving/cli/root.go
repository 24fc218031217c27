// Package cli implements the tnsync command-line interface.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/auth"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/backend"
	configfile "github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/config/file"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/netmon"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/notify"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/storage/sqlite"
	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driven/summarizer/anthropic"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driven"
	"github.com/baisethomas/tabletnotes-sync/internal/core/ports/driving"
	"github.com/baisethomas/tabletnotes-sync/internal/core/services"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

// version is set at build time via ldflags.
var version = "dev"

// Default backend endpoints, overridable via config or flags.
const (
	defaultAPIURL   = "https://api.tabletnotes.app"
	defaultClientID = "tnsync-cli"
)

// Wired services, populated by initServices before commands run.
var (
	store           *sqlite.Store
	configStore     *configfile.ConfigStore
	credentialsFile *auth.CredentialsFile
	tokenSource     *auth.TokenSource
	notifyHub       *notify.Hub
	networkMonitor  *netmon.Monitor

	settingsService driving.SettingsService
	syncOrch        driving.SyncOrchestrator
	summaryQueue    driving.SummaryQueue
	bgManager       driving.BackgroundManager
	summarizer      driven.Summarizer
)

var (
	flagVerbose bool
	flagHomeDir string
	flagAPIURL  string
)

var rootCmd = &cobra.Command{
	Use:   "tnsync",
	Short: "Offline-first sync for TabletNotes sermon notes",
	Long: `tnsync keeps a local library of sermon recordings, transcripts, notes,
and summaries reconciled with the TabletNotes cloud backend.

Sync is bidirectional: local changes are pushed first, then remote
changes are pulled, with the newer copy winning on conflict. Summary
generation requests survive restarts in a durable retry queue.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		logger.SetVerbose(flagVerbose)
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}
		return initServices()
	},
	PersistentPostRun: func(cmd *cobra.Command, _ []string) {
		if store != nil {
			_ = store.Close()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&flagHomeDir, "home", "", "application directory (default ~/.tabletnotes)")
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "backend API base URL")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// initServices wires adapters and services. Safe to call once per
// process; commands run sequentially under cobra.
func initServices() error {
	homeDir := flagHomeDir
	if homeDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("determine home directory: %w", err)
		}
		homeDir = filepath.Join(home, ".tabletnotes")
	}

	var err error
	configStore, err = configfile.NewConfigStore(homeDir)
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}

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

	credentialsFile, err = auth.NewCredentialsFile(homeDir)
	if err != nil {
		return fmt.Errorf("open credentials: %w", err)
	}
	tokenSource = auth.NewTokenSource(credentialsFile, clientID, apiURL+"/v1/oauth/token")

	store, err = sqlite.NewStore(filepath.Join(homeDir, "data"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	userID, err := tokenSource.UserID()
	if err != nil {
		return fmt.Errorf("read credentials: %w", err)
	}

	settingsService = services.NewSettingsService(configStore)

	networkMonitor = netmon.New(netmon.Config{
		Metered: configStore.GetBool("network.metered"),
	})

	backendClient := backend.New(apiURL, tokenSource, filepath.Join(homeDir, "downloads"))
	entitlements := auth.NewEntitlementClient(apiURL, tokenSource)
	clock := services.NewSystemClock()

	syncOrch = services.NewSyncOrchestrator(
		store.SermonStore(), backendClient, entitlements, clock, userID)

	summarizer, err = buildSummarizer(homeDir)
	if err != nil {
		return err
	}

	notifyHub = notify.New()
	summaryQueue = services.NewSummaryQueue(
		store.SermonStore(), store.JobStore(), summarizer,
		networkMonitor, notifyHub, clock, userID)

	bgManager = services.NewBackgroundManager(
		settingsService, syncOrch, summaryQueue,
		networkMonitor, store.TaskStore(), clock)

	return nil
}

// buildSummarizer constructs the AI summariser, with prompts loaded
// from the user-editable prompt directory. A missing API key is not an
// error here: summaries degrade to the local extractive path and sync
// still works.
func buildSummarizer(homeDir string) (driven.Summarizer, error) {
	apiKey := configStore.GetString("ai.api_key")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		logger.Debug("No AI API key configured, summaries will use the local fallback")
		return services.NewLocalSummarizer(), nil
	}

	s, err := anthropic.New(anthropic.Config{
		APIKey:  apiKey,
		BaseURL: configStore.GetString("ai.base_url"),
		Model:   configStore.GetString("ai.model"),
	})
	if err != nil {
		return nil, fmt.Errorf("configure summariser: %w", err)
	}

	prompts, err := configfile.NewPromptStore(filepath.Join(homeDir, "prompts"))
	if err != nil {
		return nil, fmt.Errorf("open prompt store: %w", err)
	}
	s.SetPromptStore(prompts)
	return s, nil
}

// requireLogin returns an error unless a user is signed in.
func requireLogin() error {
	userID, err := tokenSource.UserID()
	if err != nil {
		return err
	}
	if userID == "" {
		return fmt.Errorf("not signed in, run 'tnsync login' first")
	}
	return nil
}
