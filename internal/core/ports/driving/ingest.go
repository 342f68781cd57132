package driving

import (
	"context"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

// Ingestor runs ingestion passes: fetch, filter, transform, dedup-store,
// checkpoint.
type Ingestor interface {
	// Run executes one ingestion pass. Only one run may be in progress at
	// a time; a concurrent call fails with domain.ErrIngestInProgress.
	// Record-level failures are aggregated in the report; a run-level
	// failure (fetch source unreachable) is returned as an error with the
	// prior checkpoint preserved.
	Run(ctx context.Context) (*domain.IngestReport, error)

	// Status reports progress of the run in flight, or an idle status.
	Status() IngestStatus
}

// IngestStatus is a point-in-time snapshot of a run.
type IngestStatus struct {
	// Running reports whether a run is in progress.
	Running bool

	// Processed counts candidates attempted so far.
	Processed int

	// Failures counts record-level failures so far.
	Failures int
}
