package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

// EmailStore is the storage backend abstraction. Two interchangeable
// implementations exist: a flat-file vector index paired with relational
// metadata, and a relational-only store with serialised vectors. The backend
// is selected once at startup and both the ingestion pipeline and the
// assistant depend only on this interface.
//
// Ingestion is the only writer; searches during a run may observe a
// partially updated store (read-committed per record, not snapshot-isolated).
type EmailStore interface {
	// Store persists a record unless its SourceID is already present.
	// The dedup check runs before any mutation; StoreAlreadyExists causes
	// no index or metadata change. StoreFailed is accompanied by a non-nil
	// error describing the failure.
	Store(ctx context.Context, rec *domain.EmailRecord) (domain.StoreOutcome, error)

	// Search returns up to k stored summaries ranked by descending
	// similarity to the query embedding. It never returns an empty slice:
	// an empty store yields [domain.NoResultsFound] and an internal failure
	// yields [domain.NoResultsError]. Errors are not propagated.
	Search(ctx context.Context, query []float32, k int) []string

	// Count returns the total number of stored records, or 0 on any
	// internal failure.
	Count(ctx context.Context) int

	// Checkpoint returns the persisted last-sync time. The zero time is
	// returned when no checkpoint has been written yet.
	Checkpoint(ctx context.Context) (time.Time, error)

	// SetCheckpoint persists the last-sync time.
	SetCheckpoint(ctx context.Context, t time.Time) error

	// Dimensions returns the embedding dimension the store was created
	// with. It is constant for the lifetime of a store.
	Dimensions() int

	// Close releases resources.
	Close() error
}
