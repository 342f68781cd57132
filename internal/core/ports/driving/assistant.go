package driving

import (
	"context"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

// Assistant answers questions over the ingested email collection.
type Assistant interface {
	// Ask answers a question. With empty history it retrieves relevant
	// summaries, assembles a numbered context block and starts a new
	// conversation; with prior history it continues the conversation
	// without re-searching. The returned history includes the new user
	// and assistant turns.
	//
	// Ask never returns an error to the caller: internal failures produce
	// a well-formed apology reply.
	Ask(ctx context.Context, question string, history []domain.ChatMessage) (string, []domain.ChatMessage)
}
