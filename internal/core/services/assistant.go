package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driving"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// DefaultTopK is how many summaries a fresh question retrieves.
const DefaultTopK = 25

// answerChatOptions shape the assistant's replies.
var answerChatOptions = driven.ChatOptions{MaxTokens: 1024, Temperature: 0.7}

// Ensure AssistantService implements the interface.
var _ driving.Assistant = (*AssistantService)(nil)

// AssistantConfig tunes an assistant service.
type AssistantConfig struct {
	// TopK is how many summaries to retrieve per fresh question.
	// <= 0 selects the default.
	TopK int
}

// AssistantService answers questions over the ingested email collection.
type AssistantService struct {
	store    driven.EmailStore
	embedder driven.EmbeddingService
	llm      driven.LLMService
	topK     int

	// now is replaceable in tests.
	now func() time.Time
}

// NewAssistantService creates an assistant. The embedder and store must
// agree on dimensions so query vectors live in the stored vectors' space.
func NewAssistantService(
	store driven.EmailStore,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	cfg AssistantConfig,
) (*AssistantService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", domain.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service is required", domain.ErrInvalidInput)
	}
	if llm == nil {
		return nil, fmt.Errorf("%w: language model service is required", domain.ErrInvalidInput)
	}
	if embedder.Dimensions() != store.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, embedder.Dimensions(), store.Dimensions())
	}
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}

	return &AssistantService{
		store:    store,
		embedder: embedder,
		llm:      llm,
		topK:     cfg.TopK,
		now:      time.Now,
	}, nil
}

// Ask answers a question. With empty history it retrieves context for a new
// conversation; otherwise it continues the existing one without re-searching.
// Failures never surface as errors: the reply is the apology sentinel and
// the history still records both turns.
func (a *AssistantService) Ask(ctx context.Context, question string, history []domain.ChatMessage) (string, []domain.ChatMessage) {
	if len(history) == 0 {
		history = []domain.ChatMessage{{
			Role:    domain.RoleSystem,
			Content: domain.AssistantSystemPrompt + "\n\n" + a.retrieveContext(ctx, question),
		}}
	}

	history = append(history, domain.ChatMessage{Role: domain.RoleUser, Content: question})

	reply, err := a.llm.Chat(ctx, history, answerChatOptions)
	if err != nil || reply == "" {
		logger.Warn("generating reply: %v", err)
		reply = domain.ApologyReply
	}

	history = append(history, domain.ChatMessage{Role: domain.RoleAssistant, Content: reply})
	return reply, history
}

// retrieveContext embeds the question, searches the store and assembles the
// numbered context block handed to the model.
func (a *AssistantService) retrieveContext(ctx context.Context, question string) string {
	passages := []string{domain.NoResultsError}

	embedding, err := a.embedder.Embed(ctx, question)
	if err != nil {
		logger.Warn("embedding question: %v", err)
	} else {
		passages = a.store.Search(ctx, embedding, a.topK)
	}

	return BuildContext(a.now().UTC(), passages)
}

// BuildContext renders retrieved passages as the numbered block the
// assistant prompt expects.
func BuildContext(now time.Time, passages []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Today's Datetime is %s\n\n", now.Format("02-Jan-2006 15:04 MST"))
	for i, p := range passages {
		fmt.Fprintf(&b, "Email(%d):\n\n%s\n\n", i+1, p)
	}
	return strings.TrimRight(b.String(), "\n")
}
