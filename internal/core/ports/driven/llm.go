package driven

import (
	"context"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

// LLMService provides language model operations: summarising messages during
// ingestion and generating answers during retrieval. It is an optional
// collaborator - when nil, summarisation uses the deterministic fallback and
// the assistant returns the apology sentinel.
//
// The service itself does not retry; callers apply their own timeout and
// retry policy around it.
type LLMService interface {
	// Chat conducts a conversation and returns the assistant reply.
	Chat(ctx context.Context, messages []domain.ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
