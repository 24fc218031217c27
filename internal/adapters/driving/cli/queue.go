package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drive the summary retry queue",
	RunE:  runQueueList,
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued summary jobs",
	RunE:  runQueueList,
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Drain the queue now",
	Long: `Processes queued summary jobs serially while the network is
available. Failed jobs are requeued with exponential backoff; jobs that
exhaust their retries receive a locally generated fallback summary.`,
	RunE: runQueueProcess,
}

var queueSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Requeue stuck and failed summaries",
	Long: `Finds sermons whose summary generation was interrupted (stuck in
processing, or failed with no queued job) and enqueues them again.`,
	RunE: runQueueSweep,
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueProcessCmd)
	queueCmd.AddCommand(queueSweepCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueList(cmd *cobra.Command, _ []string) error {
	if summaryQueue == nil {
		return errors.New("summary queue not configured")
	}

	jobs, err := summaryQueue.Jobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("load queue: %w", err)
	}

	if len(jobs) == 0 {
		cmd.Println("Queue is empty.")
		return nil
	}

	cmd.Printf("%d queued job(s):\n\n", len(jobs))
	for i, job := range jobs {
		last := "never"
		if job.LastAttemptAt != nil {
			last = job.LastAttemptAt.Format(time.RFC3339)
		}
		cmd.Printf("%2d. sermon %s  retries %d/3  last attempt %s\n",
			i+1, job.SermonID, job.RetryCount, last)
	}
	return nil
}

func runQueueProcess(cmd *cobra.Command, _ []string) error {
	if summaryQueue == nil {
		return errors.New("summary queue not configured")
	}

	if err := summaryQueue.Process(cmd.Context()); err != nil {
		return fmt.Errorf("process queue: %w", err)
	}

	jobs, err := summaryQueue.Jobs(cmd.Context())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		cmd.Println("Queue drained.")
	} else {
		cmd.Printf("%d job(s) remain (offline or backing off).\n", len(jobs))
	}
	return nil
}

func runQueueSweep(cmd *cobra.Command, _ []string) error {
	if summaryQueue == nil {
		return errors.New("summary queue not configured")
	}

	if err := summaryQueue.Sweep(cmd.Context()); err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	if err := summaryQueue.Cleanup(cmd.Context()); err != nil {
		return fmt.Errorf("cleanup: %w", err)
	}

	jobs, err := summaryQueue.Jobs(cmd.Context())
	if err != nil {
		return err
	}
	cmd.Printf("Sweep complete, %d job(s) queued.\n", len(jobs))
	return nil
}
