// Package cli implements the mailmind command line interface.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driving"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// Package-level services injected by Setup. Commands nil-check the service
// they need so partially configured installs fail with a clear message.
var (
	ingestor  driving.Ingestor
	assistant driving.Assistant
	statusFn  func() StoreStatus
)

// StoreStatus is what the status command displays about the store.
type StoreStatus struct {
	Backend    string
	Count      int
	Checkpoint string
}

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "mailmind",
	Short: "Email assistant with semantic search over your inbox",
	Long: `mailmind ingests your Gmail inbox into a local vector store and
answers questions about your email using retrieval-augmented generation.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}

// Setup injects the application services before Execute.
func Setup(ing driving.Ingestor, asst driving.Assistant, status func() StoreStatus) {
	ingestor = ing
	assistant = asst
	statusFn = status
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
