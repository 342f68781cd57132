package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDimensionMismatch indicates an embedding whose size disagrees with
	// the store's configured dimension. This is a configuration error and is
	// rejected at construction time, never coerced at query time.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrIngestInProgress indicates an ingestion run is already running.
	// Runs are serialised; a second Run call fails immediately.
	ErrIngestInProgress = errors.New("ingestion already in progress")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrLLMUnavailable indicates the language model service is not configured.
	// Summarisation falls back to the deterministic format when absent.
	ErrLLMUnavailable = errors.New("LLM service unavailable")
)
