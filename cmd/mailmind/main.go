// Command mailmind is an email assistant: it ingests Gmail into a local
// vector store and answers questions over the collection.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/custodia-labs/mailmind-cli/internal/adapters/driven/embedding/openai"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/llm/bedrock"
	llmopenai "github.com/custodia-labs/mailmind-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driving/cli"
	"github.com/custodia-labs/mailmind-cli/internal/connectors/google"
	"github.com/custodia-labs/mailmind-cli/internal/connectors/google/gmail"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/core/services"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	configStore, err := file.NewConfigStore(os.Getenv("MAILMIND_CONFIG_DIR"))
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}
	cfg := configStore.Config()

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return err
	}
	defer embedder.Close()

	store, err := storage.New(storage.Config{
		Backend:    cfg.Storage.Backend,
		DataDir:    cfg.Storage.DataDir,
		Dimensions: embedder.Dimensions(),
		ScanWindow: cfg.Storage.ScanWindow,
	})
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	llm, err := buildLLM(ctx, cfg)
	if err != nil {
		return err
	}
	if llm != nil {
		defer llm.Close()
	}

	var ingestor *services.IngestService
	fetcher, err := buildFetcher(ctx, cfg)
	if err != nil {
		logger.Debug("gmail fetcher unavailable: %v", err)
	} else {
		defer fetcher.Close()
		ingestor, err = services.NewIngestService(store, fetcher, embedder, llm, services.IngestConfig{
			MaxPerRun:  cfg.Ingest.MaxPerRun,
			WindowDays: cfg.Ingest.WindowDays,
			Filter:     domain.SenderSubjectFilter(cfg.Ingest.Senders, cfg.Ingest.SubjectTerms),
		})
		if err != nil {
			return fmt.Errorf("configuring ingestion: %w", err)
		}
	}

	var assistant *services.AssistantService
	if llm != nil {
		assistant, err = services.NewAssistantService(store, embedder, llm, services.AssistantConfig{
			TopK: cfg.Search.TopK,
		})
		if err != nil {
			return fmt.Errorf("configuring assistant: %w", err)
		}
	}

	status := func() cli.StoreStatus {
		s := cli.StoreStatus{Backend: cfg.Storage.Backend, Count: store.Count(ctx)}
		if checkpoint, err := store.Checkpoint(ctx); err == nil && !checkpoint.IsZero() {
			s.Checkpoint = checkpoint.Format(time.RFC3339)
		}
		return s
	}

	// Interfaces hold typed nils otherwise; pass nil explicitly so the
	// commands' nil checks work.
	switch {
	case ingestor != nil && assistant != nil:
		cli.Setup(ingestor, assistant, status)
	case ingestor != nil:
		cli.Setup(ingestor, nil, status)
	case assistant != nil:
		cli.Setup(nil, assistant, status)
	default:
		cli.Setup(nil, nil, status)
	}

	if cfg.Gmail.CredentialsFile != "" {
		if oauthCfg, err := google.LoadOAuthConfig(cfg.Gmail.CredentialsFile); err == nil {
			cli.SetupAuth(oauthCfg, tokenPath(cfg))
		}
	}

	return cli.Execute()
}

func buildEmbedder(cfg file.Config) (driven.EmbeddingService, error) {
	switch cfg.Embedding.Provider {
	case "ollama":
		return ollama.NewEmbeddingService(ollama.Config{
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		}), nil
	case "openai", "":
		apiKey := os.Getenv("MAILMIND_OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = cfg.Embedding.APIKey
		}
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     apiKey,
			BaseURL:    cfg.Embedding.BaseURL,
			Model:      cfg.Embedding.Model,
			Dimensions: cfg.Embedding.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Embedding.Provider)
	}
}

func buildLLM(ctx context.Context, cfg file.Config) (driven.LLMService, error) {
	switch cfg.LLM.Provider {
	case "none":
		return nil, nil
	case "bedrock":
		return bedrock.NewLLMService(ctx, bedrock.Config{
			Region:        cfg.LLM.Region,
			Model:         cfg.LLM.Model,
			FallbackModel: cfg.LLM.FallbackModel,
		})
	case "openai", "":
		apiKey := os.Getenv("MAILMIND_OPENAI_API_KEY")
		if apiKey == "" {
			apiKey = cfg.LLM.APIKey
		}
		return llmopenai.NewLLMService(llmopenai.Config{
			APIKey:  apiKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.Provider)
	}
}

func buildFetcher(ctx context.Context, cfg file.Config) (driven.MailFetcher, error) {
	if cfg.Gmail.CredentialsFile == "" {
		return nil, fmt.Errorf("gmail.credentials_file not configured")
	}

	oauthCfg, err := google.LoadOAuthConfig(cfg.Gmail.CredentialsFile)
	if err != nil {
		return nil, err
	}

	ts, err := google.FileTokenSource(ctx, oauthCfg, tokenPath(cfg))
	if err != nil {
		return nil, err
	}

	service, err := google.NewGmailService(ctx, ts)
	if err != nil {
		return nil, fmt.Errorf("creating gmail service: %w", err)
	}

	return gmail.NewFetcher(service, gmail.Config{Query: cfg.Gmail.Query})
}

func tokenPath(cfg file.Config) string {
	if cfg.Gmail.TokenFile != "" {
		return cfg.Gmail.TokenFile
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "token.json"
	}
	return filepath.Join(home, ".mailmind", "token.json")
}
