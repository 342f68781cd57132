package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

func newTestStore(t *testing.T) *EmailStore {
	t.Helper()

	store, err := NewEmailStore(3)
	require.NoError(t, err)
	return store
}

func record(sourceID string, embedding []float32) *domain.EmailRecord {
	return &domain.EmailRecord{
		SourceID:  sourceID,
		Summary:   "Summary for " + sourceID,
		Embedding: embedding,
	}
}

func TestEmailStore_Store(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	outcome, err := store.Store(ctx, record("a", []float32{1, 0, 0}))
	require.NoError(t, err)
	assert.Equal(t, domain.StoreInserted, outcome)

	outcome, err = store.Store(ctx, record("a", []float32{0, 1, 0}))
	require.NoError(t, err)
	assert.Equal(t, domain.StoreAlreadyExists, outcome)
	assert.Equal(t, 1, store.Count(ctx))

	outcome, err = store.Store(ctx, record("b", []float32{1, 0}))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, domain.StoreFailed, outcome)
}

func TestEmailStore_Search(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	assert.Equal(t, []string{domain.NoResultsFound}, store.Search(ctx, []float32{1, 0, 0}, 5))
	assert.Equal(t, []string{domain.NoResultsError}, store.Search(ctx, []float32{1, 0}, 5))

	_, err := store.Store(ctx, record("a", []float32{1, 0, 0}))
	require.NoError(t, err)
	_, err = store.Store(ctx, record("b", []float32{0, 1, 0}))
	require.NoError(t, err)

	results := store.Search(ctx, []float32{1, 0.1, 0}, 2)
	assert.Equal(t, []string{"Summary for a", "Summary for b"}, results)

	results = store.Search(ctx, []float32{1, 0, 0}, 1)
	assert.Equal(t, []string{"Summary for a"}, results)
}

func TestEmailStore_Checkpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	got, err := store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, got.IsZero())

	want := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetCheckpoint(ctx, want))

	got, err = store.Checkpoint(ctx)
	require.NoError(t, err)
	assert.True(t, got.Equal(want))
}
