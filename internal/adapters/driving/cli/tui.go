package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime/debug"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/baisethomas/tabletnotes-sync/internal/adapters/driving/tui"
	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

var tuiCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Launch the interactive sync monitor",
	Long: `Launch the live terminal view of sync state: connectivity, the
current pass, and the summary retry queue. The background manager runs
while the monitor is open.

Controls:
  s - Run a sync pass now
  p - Drain the summary queue
  q - Quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, _ []string) error {
	// Panic recovery so terminal state problems come with a trace.
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Panic in monitor: %v\n", r)
			fmt.Fprintf(os.Stderr, "Stack trace:\n%s\n", debug.Stack())
		}
	}()

	if err := requireLogin(); err != nil {
		return err
	}

	// The monitor is long-running: background tasks run alongside it.
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go func() {
		if err := networkMonitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Network monitor stopped: %v", err)
		}
	}()
	go func() {
		if err := bgManager.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Background manager stopped: %v", err)
		}
	}()
	defer func() {
		if err := bgManager.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "background manager stop error: %v\n", err)
		}
	}()

	userID, err := tokenSource.UserID()
	if err != nil {
		return err
	}

	monitor := tui.NewMonitor(tui.Ports{
		Sync:    syncOrch,
		Queue:   summaryQueue,
		Netmon:  networkMonitor,
		Events:  notifyHub.Subscribe(),
		Sermons: store.SermonStore(),
		UserID:  userID,
	})

	p := tea.NewProgram(monitor, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("monitor error: %w", err)
	}
	return nil
}
