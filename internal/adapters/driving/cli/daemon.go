package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/baisethomas/tabletnotes-sync/internal/logger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the background sync manager until interrupted",
	Long: `Runs the background execution manager: network recovery triggers a
sync and a queue drain, periodic timers run sync, queue sweeps, and
retention cleanup. Settings edits are picked up live. Summary jobs
interrupted by an earlier kill are re-queued at startup.

SIGTSTP enters a bounded background sync window and SIGCONT returns to
the foreground. Stops cleanly on SIGINT/SIGTERM, waiting for any
running attempt to finish.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if bgManager == nil {
		return errors.New("background manager not configured")
	}
	if err := requireLogin(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// Watch the config file so settings edits apply without a restart.
	if err := configStore.Watch(ctx); err != nil {
		logger.Warn("Config watch unavailable: %v", err)
	}

	go func() {
		if err := networkMonitor.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Network monitor stopped: %v", err)
		}
	}()

	// Re-queue generation work a previous process was killed in the
	// middle of, before the manager starts its timers.
	if err := summaryQueue.Recover(ctx); err != nil {
		logger.Warn("Summary job recovery failed: %v", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- bgManager.Start(ctx)
	}()

	cmd.Println("Background sync running. Press Ctrl-C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// SIGTSTP/SIGCONT map the mobile app's lifecycle transitions onto
	// the terminal: suspend requests open a bounded sync window,
	// resuming ends it and syncs immediately.
	lifecycleCh := make(chan os.Signal, 1)
	signal.Notify(lifecycleCh, syscall.SIGTSTP, syscall.SIGCONT)

	for {
		select {
		case sig := <-lifecycleCh:
			switch sig {
			case syscall.SIGTSTP:
				logger.Info("Received %s, entering background window", sig)
				bgManager.EnterBackground(ctx)
			case syscall.SIGCONT:
				logger.Info("Received %s, returning to foreground", sig)
				bgManager.EnterForeground(ctx)
			}
		case sig := <-sigCh:
			logger.Info("Received %s, shutting down", sig)
			cancel()
			if err := bgManager.Stop(); err != nil {
				return err
			}
			<-errCh
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		}
	}
}
