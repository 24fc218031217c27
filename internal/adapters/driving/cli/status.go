package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync status, network state, and queue depth",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if syncOrch == nil || summaryQueue == nil {
		return errors.New("services not configured")
	}

	userID, err := tokenSource.UserID()
	if err != nil {
		return err
	}
	if userID == "" {
		cmd.Println("Account:  not signed in")
	} else {
		cmd.Printf("Account:  %s\n", userID)
	}

	cmd.Printf("Network:  %s\n", networkMonitor.Current())

	status := syncOrch.Status()
	switch {
	case status.Running:
		cmd.Printf("Sync:     running (pushed %d, pulled %d)\n", status.Pushed, status.Pulled)
	case status.LastError != "":
		cmd.Printf("Sync:     last pass failed: %s\n", status.LastError)
	default:
		cmd.Printf("Sync:     idle (last pass pushed %d, pulled %d)\n", status.Pushed, status.Pulled)
	}

	jobs, err := summaryQueue.Jobs(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Queue:    %d summary job(s) pending\n", len(jobs))

	printAIStatus(cmd)

	pending, err := store.SermonStore().ListNeedingSync(cmd.Context(), userID)
	if err != nil {
		return err
	}
	cmd.Printf("Local:    %d sermon(s) with unpushed changes\n", len(pending))
	return nil
}

// printAIStatus reports which summariser is active. The remote one
// exposes its model and a reachability check; the local fallback has
// neither.
func printAIStatus(cmd *cobra.Command) {
	named, ok := summarizer.(interface{ ModelName() string })
	if !ok {
		cmd.Println("AI:       local extractive fallback (no API key)")
		return
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	reachable := "reachable"
	if pinger, ok := summarizer.(interface{ Ping(context.Context) error }); ok {
		if err := pinger.Ping(ctx); err != nil {
			reachable = fmt.Sprintf("unreachable: %v", err)
		}
	}
	cmd.Printf("AI:       %s (%s)\n", named.ModelName(), reachable)
}
