// Package bedrock provides an LLM service adapter using Amazon Bedrock.
// Anthropic models are invoked through the messages API; when the primary
// model is not accessible in the account or region the service retries the
// request once against a fallback model.
package bedrock

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// Ensure LLMService implements the interface.
var _ driven.LLMService = (*LLMService)(nil)

// Default configuration values.
const (
	DefaultRegion        = "us-east-1"
	DefaultModel         = "anthropic.claude-3-haiku-20240307-v1:0"
	DefaultFallbackModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	DefaultMaxTokens     = 1024

	anthropicVersion = "bedrock-2023-05-31"
)

// Config holds configuration for the Bedrock LLM service.
type Config struct {
	// Region is the AWS region (default: us-east-1). Credentials come
	// from the standard AWS credential chain.
	Region string

	// Model is the primary model ID (default: Claude 3 Haiku).
	Model string

	// FallbackModel is tried when the primary model is not accessible.
	// Empty disables the fallback.
	FallbackModel string
}

// LLMService provides chat completions through Amazon Bedrock.
type LLMService struct {
	client        *bedrockruntime.Client
	model         string
	fallbackModel string
}

// anthropicRequest is the Bedrock messages API body for Anthropic models.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system,omitempty"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewLLMService creates a new Bedrock LLM service using the standard AWS
// credential chain.
func NewLLMService(ctx context.Context, cfg Config) (*LLMService, error) {
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
		if cfg.FallbackModel == "" {
			cfg.FallbackModel = DefaultFallbackModel
		}
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: loading AWS configuration: %w", err)
	}

	return &LLMService{
		client:        bedrockruntime.NewFromConfig(awsCfg),
		model:         cfg.Model,
		fallbackModel: cfg.FallbackModel,
	}, nil
}

// Chat conducts a conversation and returns the assistant reply. System
// messages are folded into the request's system field; Anthropic models do
// not accept them in the message list.
func (s *LLMService) Chat(ctx context.Context, messages []domain.ChatMessage, opts driven.ChatOptions) (string, error) {
	var systemParts []string
	var turns []anthropicMessage
	for _, msg := range messages {
		if msg.Role == domain.RoleSystem {
			systemParts = append(systemParts, msg.Content)
			continue
		}
		turns = append(turns, anthropicMessage{Role: msg.Role, Content: msg.Content})
	}
	if len(turns) == 0 {
		return "", fmt.Errorf("bedrock: conversation has no user messages")
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	body, err := json.Marshal(anthropicRequest{
		AnthropicVersion: anthropicVersion,
		MaxTokens:        maxTokens,
		System:           strings.Join(systemParts, "\n\n"),
		Messages:         turns,
		Temperature:      opts.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("bedrock: marshal request: %w", err)
	}

	reply, err := s.invoke(ctx, s.model, body)
	if err != nil && s.fallbackModel != "" && isModelAccessError(err) {
		logger.Warn("bedrock: model %s not accessible, retrying with %s", s.model, s.fallbackModel)
		reply, err = s.invoke(ctx, s.fallbackModel, body)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// invoke runs one InvokeModel call and extracts the text reply.
func (s *LLMService) invoke(ctx context.Context, modelID string, body []byte) (string, error) {
	out, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", fmt.Errorf("%w: invoking %s: %v", domain.ErrLLMUnavailable, modelID, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil {
		return "", fmt.Errorf("bedrock: decode response: %w", err)
	}

	var parts []string
	for _, block := range resp.Content {
		if block.Type == "text" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("bedrock: response from %s contained no text", modelID)
	}
	return strings.TrimSpace(strings.Join(parts, "")), nil
}

// isModelAccessError reports whether the failure looks like the model not
// being enabled for this account rather than a transient fault.
func isModelAccessError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "AccessDeniedException") ||
		strings.Contains(msg, "ResourceNotFoundException") ||
		strings.Contains(msg, "ValidationException")
}

// ModelName returns the primary model ID.
func (s *LLMService) ModelName() string {
	return s.model
}

// Ping validates the service by sending a minimal request.
func (s *LLMService) Ping(ctx context.Context) error {
	_, err := s.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleUser, Content: "ping"},
	}, driven.ChatOptions{MaxTokens: 1})
	return err
}

// Close releases resources.
func (s *LLMService) Close() error {
	return nil
}
