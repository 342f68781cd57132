package domain

import "time"

// IngestReport summarises one ingestion run. Record-level failures are
// aggregated here rather than aborting the run.
type IngestReport struct {
	// RunID uniquely identifies the run in logs.
	RunID string

	// Fetched counts candidate messages received from the fetch collaborator.
	Fetched int

	// Stored counts newly inserted records.
	Stored int

	// Duplicates counts messages whose SourceID was already stored.
	Duplicates int

	// Skipped counts messages rejected by the window or relevance filter.
	Skipped int

	// Failures counts messages that could not be transformed or stored.
	Failures int

	// CheckpointAdvanced reports whether the run moved the checkpoint forward.
	CheckpointAdvanced bool

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time
	FinishedAt time.Time
}

// Attempted returns how many candidates made it past the filters.
func (r *IngestReport) Attempted() int {
	return r.Stored + r.Duplicates + r.Failures
}
