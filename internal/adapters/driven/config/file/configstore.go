// Package file provides TOML-backed configuration for the mailmind CLI.
// Configuration lives at ~/.mailmind/config.toml unless overridden.
package file

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pelletier/go-toml/v2"
)

// Default configuration values.
const (
	DefaultBackend    = "indexed"
	DefaultScanWindow = 100
	DefaultMaxPerRun  = 20
	DefaultTopK       = 25
)

// Config is the typed configuration tree.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	LLM       LLMConfig       `toml:"llm"`
	Ingest    IngestConfig    `toml:"ingest"`
	Search    SearchConfig    `toml:"search"`
	Gmail     GmailConfig     `toml:"gmail"`
}

// StorageConfig selects and parameterises the storage backend.
type StorageConfig struct {
	// Backend is one of "indexed", "sqlite" or "memory".
	Backend string `toml:"backend"`

	// DataDir overrides where backend files live.
	DataDir string `toml:"data_dir"`

	// ScanWindow bounds the sqlite backend's search scan.
	ScanWindow int `toml:"scan_window"`
}

// EmbeddingConfig selects the embedding provider.
type EmbeddingConfig struct {
	// Provider is "openai" or "ollama".
	Provider string `toml:"provider"`

	// Model names the embedding model; empty selects the provider default.
	Model string `toml:"model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates hosted providers. The MAILMIND_OPENAI_API_KEY
	// environment variable takes precedence.
	APIKey string `toml:"api_key"`

	// Dimensions overrides the model's default vector size.
	Dimensions int `toml:"dimensions"`
}

// LLMConfig selects the language model provider.
type LLMConfig struct {
	// Provider is "openai", "bedrock" or "none".
	Provider string `toml:"provider"`

	// Model names the chat model; empty selects the provider default.
	Model string `toml:"model"`

	// FallbackModel is tried when the bedrock primary is not accessible.
	FallbackModel string `toml:"fallback_model"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// APIKey authenticates hosted providers.
	APIKey string `toml:"api_key"`

	// Region is the AWS region for the bedrock provider.
	Region string `toml:"region"`
}

// IngestConfig tunes ingestion runs.
type IngestConfig struct {
	// MaxPerRun caps candidates attempted per run.
	MaxPerRun int `toml:"max_per_run"`

	// WindowDays fetches the last n days instead of the current calendar
	// month when positive.
	WindowDays int `toml:"window_days"`

	// Senders and SubjectTerms feed the relevance filter. Both empty
	// accepts every message.
	Senders      []string `toml:"senders"`
	SubjectTerms []string `toml:"subject_terms"`
}

// SearchConfig tunes retrieval.
type SearchConfig struct {
	// TopK is how many summaries a question retrieves.
	TopK int `toml:"top_k"`
}

// GmailConfig locates Gmail credentials.
type GmailConfig struct {
	// CredentialsFile is the OAuth client secret JSON path.
	CredentialsFile string `toml:"credentials_file"`

	// TokenFile caches the OAuth token between runs.
	TokenFile string `toml:"token_file"`

	// Query is appended to the date-bounded Gmail search query.
	Query string `toml:"query"`
}

// ConfigStore loads and saves the configuration file.
type ConfigStore struct {
	mu       sync.RWMutex
	filePath string
	config   Config
}

// NewConfigStore creates a config store rooted at configDir. If configDir is
// empty, defaults to ~/.mailmind. Missing files yield the defaults.
func NewConfigStore(configDir string) (*ConfigStore, error) {
	if configDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		configDir = filepath.Join(home, ".mailmind")
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		return nil, err
	}

	s := &ConfigStore{
		filePath: filepath.Join(configDir, "config.toml"),
		config:   defaults(),
	}

	if err := s.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	return s, nil
}

// Config returns a copy of the current configuration.
func (s *ConfigStore) Config() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// Update replaces the configuration and persists it.
func (s *ConfigStore) Update(cfg Config) error {
	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()
	return s.Save()
}

// Path returns the configuration file path.
func (s *ConfigStore) Path() string {
	return s.filePath
}

// Load reads the configuration file over the defaults.
func (s *ConfigStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	cfg := defaults()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing %s: %w", s.filePath, err)
	}

	s.config = cfg
	return nil
}

// Save writes the configuration file.
func (s *ConfigStore) Save() error {
	s.mu.RLock()
	data, err := toml.Marshal(s.config)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encoding configuration: %w", err)
	}

	if err := os.WriteFile(s.filePath, data, 0600); err != nil {
		return fmt.Errorf("writing %s: %w", s.filePath, err)
	}
	return nil
}

func defaults() Config {
	return Config{
		Storage: StorageConfig{
			Backend:    DefaultBackend,
			ScanWindow: DefaultScanWindow,
		},
		Embedding: EmbeddingConfig{
			Provider: "openai",
		},
		LLM: LLMConfig{
			Provider: "openai",
		},
		Ingest: IngestConfig{
			MaxPerRun: DefaultMaxPerRun,
		},
		Search: SearchConfig{
			TopK: DefaultTopK,
		},
	}
}
