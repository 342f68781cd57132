// Package storage selects and constructs the configured email store backend.
package storage

import (
	"fmt"

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage/indexed"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
)

// Backend names accepted by New.
const (
	BackendIndexed = "indexed"
	BackendSQLite  = "sqlite"
	BackendMemory  = "memory"
)

// Config selects and parameterises a storage backend.
type Config struct {
	// Backend is one of BackendIndexed, BackendSQLite or BackendMemory.
	Backend string

	// DataDir is where backend files live. Empty selects the default
	// under the user's home directory.
	DataDir string

	// Dimensions is the embedding dimension the store is created with.
	Dimensions int

	// ScanWindow bounds the sqlite backend's search scan. Ignored by the
	// other backends; <= 0 selects the default.
	ScanWindow int
}

// New constructs the configured email store.
func New(cfg Config) (driven.EmailStore, error) {
	switch cfg.Backend {
	case BackendIndexed:
		return indexed.NewStore(cfg.DataDir, cfg.Dimensions)
	case BackendSQLite:
		return sqlite.NewStore(cfg.DataDir, cfg.Dimensions, cfg.ScanWindow)
	case BackendMemory:
		return memory.NewEmailStore(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
