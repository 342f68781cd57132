package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and sync state",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	if statusFn == nil {
		return errors.New("storage not configured")
	}

	status := statusFn()
	cmd.Printf("Backend:    %s\n", status.Backend)
	cmd.Printf("Emails:     %d\n", status.Count)
	if status.Checkpoint == "" {
		cmd.Println("Last sync:  never")
	} else {
		cmd.Printf("Last sync:  %s\n", status.Checkpoint)
	}

	if ingestor != nil {
		if s := ingestor.Status(); s.Running {
			cmd.Printf("Sync:       running (%d processed, %d failures)\n", s.Processed, s.Failures)
		}
	}
	return nil
}
