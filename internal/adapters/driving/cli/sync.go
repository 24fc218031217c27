package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/baisethomas/tabletnotes-sync/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync pass now",
	Long: `Runs one full reconciliation pass: local changes are pushed to the
backend, then remote changes are pulled. The newer copy wins on
conflict.`,
	RunE: runSync,
}

var syncDeleteCloudCmd = &cobra.Command{
	Use:   "delete-cloud",
	Short: "Delete all cloud data for this account",
	Long: `Issues a remote wipe for the signed-in user. Local sermons are kept
but revert to local-only: they lose their link to the deleted remote
copies. This cannot be undone.`,
	RunE: runSyncDeleteCloud,
}

var flagDeleteCloudYes bool

func init() {
	syncDeleteCloudCmd.Flags().BoolVar(&flagDeleteCloudYes, "yes", false, "skip the confirmation prompt")
	syncCmd.AddCommand(syncDeleteCloudCmd)
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if syncOrch == nil {
		return errors.New("sync service not configured")
	}
	if err := requireLogin(); err != nil {
		return err
	}

	cmd.Println("Syncing...")

	errCh := make(chan error, 1)
	go func() {
		errCh <- syncOrch.SyncAll(cmd.Context())
	}()

	// Poll status every 500ms for progress
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case err := <-errCh:
			status := syncOrch.Status()
			if err != nil {
				if errors.Is(err, domain.ErrSubscriptionRequired) {
					return errors.New("sync requires an active subscription")
				}
				return fmt.Errorf("sync failed: %w", err)
			}
			cmd.Printf("\rDone. Pushed %d, pulled %d.\n", status.Pushed, status.Pulled)
			return nil
		case <-ticker.C:
			status := syncOrch.Status()
			cmd.Printf("\rPushed %d, pulled %d...", status.Pushed, status.Pulled)
		}
	}
}

func runSyncDeleteCloud(cmd *cobra.Command, _ []string) error {
	if syncOrch == nil {
		return errors.New("sync service not configured")
	}
	if err := requireLogin(); err != nil {
		return err
	}

	if !flagDeleteCloudYes {
		cmd.Print("This deletes ALL cloud data for this account. Local copies are kept. Continue? [y/N]: ")
		reader := bufio.NewReader(os.Stdin)
		answer, _ := reader.ReadString('\n')
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			cmd.Println("Aborted.")
			return nil
		}
	}

	if err := syncOrch.DeleteAllCloudData(cmd.Context()); err != nil {
		return fmt.Errorf("delete cloud data: %w", err)
	}

	cmd.Println("Cloud data deleted. Local sermons are now local-only.")
	return nil
}
