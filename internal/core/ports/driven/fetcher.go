package driven

import (
	"context"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

// MailFetcher fetches candidate messages from a mail provider.
// It is an external collaborator: the pipeline treats its output as a lazy,
// possibly paginated sequence and tolerates nil channels or zero messages as
// "no candidates", not an error.
type MailFetcher interface {
	// ListCandidates streams messages whose timestamps may fall inside the
	// window. The fetcher may over-fetch (provider-side filtering is
	// coarse); the pipeline re-checks the window before storing. Both
	// channels are closed when the listing completes. A value on the error
	// channel aborts the run.
	ListCandidates(ctx context.Context, window domain.FetchWindow) (<-chan domain.EmailMessage, <-chan error)

	// Fetch retrieves a single full message by provider ID.
	Fetch(ctx context.Context, id string) (*domain.EmailMessage, error)

	// Close releases resources.
	Close() error
}
