// Package memory provides an in-memory email store for tests and
// ephemeral runs. Nothing is persisted across process restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/vectorfile"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
)

// Ensure EmailStore implements the interface.
var _ driven.EmailStore = (*EmailStore)(nil)

// EmailStore keeps records in a map keyed by source ID.
type EmailStore struct {
	mu         sync.RWMutex
	dimension  int
	records    map[string]*domain.EmailRecord
	nextSeq    int64
	checkpoint time.Time
}

// NewEmailStore creates an empty in-memory store.
func NewEmailStore(dimension int) (*EmailStore, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", domain.ErrInvalidInput)
	}
	return &EmailStore{
		dimension: dimension,
		records:   make(map[string]*domain.EmailRecord),
		nextSeq:   1,
	}, nil
}

// Store persists a record unless its SourceID already exists.
func (s *EmailStore) Store(_ context.Context, rec *domain.EmailRecord) (domain.StoreOutcome, error) {
	if rec == nil || rec.SourceID == "" {
		return domain.StoreFailed, fmt.Errorf("%w: record must have a source ID", domain.ErrInvalidInput)
	}
	if len(rec.Embedding) != s.dimension {
		return domain.StoreFailed, fmt.Errorf("%w: got %d, want %d",
			domain.ErrDimensionMismatch, len(rec.Embedding), s.dimension)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[rec.SourceID]; ok {
		return domain.StoreAlreadyExists, nil
	}

	stored := *rec
	stored.Embedding = make([]float32, len(rec.Embedding))
	copy(stored.Embedding, rec.Embedding)
	stored.Seq = s.nextSeq
	stored.CreatedAt = time.Now().UTC()
	s.nextSeq++

	s.records[rec.SourceID] = &stored
	rec.Seq = stored.Seq
	return domain.StoreInserted, nil
}

// Search returns up to k summaries ranked by descending cosine similarity.
// It always returns at least one element.
func (s *EmailStore) Search(_ context.Context, query []float32, k int) []string {
	if len(query) != s.dimension || k <= 0 {
		return []string{domain.NoResultsError}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 {
		return []string{domain.NoResultsFound}
	}

	type scored struct {
		summary string
		score   float64
		seq     int64
	}
	candidates := make([]scored, 0, len(s.records))
	for _, rec := range s.records {
		candidates = append(candidates, scored{
			summary: rec.Summary,
			score:   vectorfile.Cosine(query, rec.Embedding),
			seq:     rec.Seq,
		})
	}

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].seq < candidates[b].seq
	})
	if len(candidates) > k {
		candidates = candidates[:k]
	}

	results := make([]string, len(candidates))
	for i, c := range candidates {
		results[i] = c.summary
	}
	return results
}

// Count returns the number of stored records.
func (s *EmailStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Checkpoint returns the stored last-sync time.
func (s *EmailStore) Checkpoint(_ context.Context) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checkpoint, nil
}

// SetCheckpoint stores the last-sync time.
func (s *EmailStore) SetCheckpoint(_ context.Context, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checkpoint = t.UTC()
	return nil
}

// Dimensions returns the embedding dimension.
func (s *EmailStore) Dimensions() int {
	return s.dimension
}

// Close is a no-op.
func (s *EmailStore) Close() error {
	return nil
}
