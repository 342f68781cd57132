package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Ingest new mail into the store",
	Long: `Runs one ingestion pass: fetches candidate messages, filters them,
summarises and embeds each new message, and stores the result.
Messages already stored are skipped; re-running is safe.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, _ []string) error {
	if ingestor == nil {
		return errors.New("ingest service not configured")
	}

	ctx := context.Background()
	cmd.Println("Syncing mailbox...")

	report, err := syncWithProgress(ctx, cmd)
	if err != nil {
		if errors.Is(err, domain.ErrIngestInProgress) {
			return errors.New("a sync is already running")
		}
		return fmt.Errorf("sync failed: %w", err)
	}

	cmd.Printf("Fetched %d messages: %d stored, %d duplicates, %d skipped, %d failures.\n",
		report.Fetched, report.Stored, report.Duplicates, report.Skipped, report.Failures)
	if report.CheckpointAdvanced {
		cmd.Println("Checkpoint advanced.")
	}
	return nil
}

// syncWithProgress runs the ingestion pass while displaying progress updates.
func syncWithProgress(ctx context.Context, cmd *cobra.Command) (*domain.IngestReport, error) {
	type result struct {
		report *domain.IngestReport
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		report, err := ingestor.Run(ctx)
		resCh <- result{report, err}
	}()

	// Poll status every 500ms
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	lastCount := 0
	for {
		select {
		case res := <-resCh:
			if lastCount > 0 {
				cmd.Println()
			}
			return res.report, res.err
		case <-ticker.C:
			status := ingestor.Status()
			if status.Processed > lastCount {
				cmd.Printf("\rProcessing... %d messages", status.Processed)
				lastCount = status.Processed
			}
		}
	}
}
