package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

const testDimension = 4

func newTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), testDimension, 0)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(sourceID string, embedding []float32) *domain.EmailRecord {
	return &domain.EmailRecord{
		SourceID:  sourceID,
		Sender:    "alice@example.com",
		Subject:   "Quarterly invoice",
		Date:      time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Body:      "Please find the invoice attached.",
		Summary:   "Summary for " + sourceID,
		Embedding: embedding,
	}
}

func TestNewStore(t *testing.T) {
	t.Run("creates database file", func(t *testing.T) {
		store := newTestStore(t)
		assert.Equal(t, testDimension, store.Dimensions())
		assert.FileExists(t, store.Path())
	})

	t.Run("invalid dimension", func(t *testing.T) {
		_, err := NewStore(t.TempDir(), 0, 0)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("reopen preserves records", func(t *testing.T) {
		ctx := context.Background()
		dir := t.TempDir()

		store, err := NewStore(dir, testDimension, 0)
		require.NoError(t, err)
		_, err = store.Store(ctx, testRecord("msg-1", []float32{1, 0, 0, 0}))
		require.NoError(t, err)
		require.NoError(t, store.Close())

		reopened, err := NewStore(dir, testDimension, 0)
		require.NoError(t, err)
		defer reopened.Close()
		assert.Equal(t, 1, reopened.Count(ctx))
	})
}

func TestStore_Store(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	rec := testRecord("msg-1", []float32{1, 0, 0, 0})
	outcome, err := store.Store(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, domain.StoreInserted, outcome)
	assert.Positive(t, rec.Seq)
	assert.Equal(t, 1, store.Count(ctx))

	t.Run("duplicate source ID", func(t *testing.T) {
		dup := testRecord("msg-1", []float32{0, 1, 0, 0})
		outcome, err := store.Store(ctx, dup)
		require.NoError(t, err)
		assert.Equal(t, domain.StoreAlreadyExists, outcome)
		assert.Equal(t, 1, store.Count(ctx))
	})

	t.Run("missing source ID", func(t *testing.T) {
		bad := testRecord("", []float32{1, 0, 0, 0})
		outcome, err := store.Store(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
		assert.Equal(t, domain.StoreFailed, outcome)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		bad := testRecord("msg-2", []float32{1, 0})
		outcome, err := store.Store(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
		assert.Equal(t, domain.StoreFailed, outcome)
	})
}

func TestStore_Search(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("empty store", func(t *testing.T) {
		results := store.Search(ctx, []float32{1, 0, 0, 0}, 5)
		assert.Equal(t, []string{domain.NoResultsFound}, results)
	})

	t.Run("wrong query dimension", func(t *testing.T) {
		results := store.Search(ctx, []float32{1, 0}, 5)
		assert.Equal(t, []string{domain.NoResultsError}, results)
	})

	_, err := store.Store(ctx, testRecord("msg-a", []float32{1, 0, 0, 0}))
	require.NoError(t, err)
	_, err = store.Store(ctx, testRecord("msg-b", []float32{0, 1, 0, 0}))
	require.NoError(t, err)
	_, err = store.Store(ctx, testRecord("msg-c", []float32{0.9, 0.1, 0, 0}))
	require.NoError(t, err)

	t.Run("ranked by similarity", func(t *testing.T) {
		results := store.Search(ctx, []float32{1, 0, 0, 0}, 3)
		require.Len(t, results, 3)
		assert.Equal(t, "Summary for msg-a", results[0])
		assert.Equal(t, "Summary for msg-c", results[1])
		assert.Equal(t, "Summary for msg-b", results[2])
	})

	t.Run("k truncates results", func(t *testing.T) {
		results := store.Search(ctx, []float32{1, 0, 0, 0}, 1)
		assert.Equal(t, []string{"Summary for msg-a"}, results)
	})

	t.Run("single record yields single result", func(t *testing.T) {
		solo := newTestStore(t)
		_, err := solo.Store(ctx, testRecord("only", []float32{0, 0, 1, 0}))
		require.NoError(t, err)

		results := solo.Search(ctx, []float32{0, 0, 1, 0}, 10)
		assert.Equal(t, []string{"Summary for only"}, results)
	})
}

func TestStore_ScanWindow(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(t.TempDir(), testDimension, 2)
	require.NoError(t, err)
	defer store.Close()

	// The oldest record matches the query best, but falls outside the
	// two-row scan window.
	_, err = store.Store(ctx, testRecord("oldest", []float32{1, 0, 0, 0}))
	require.NoError(t, err)
	_, err = store.Store(ctx, testRecord("middle", []float32{0, 1, 0, 0}))
	require.NoError(t, err)
	_, err = store.Store(ctx, testRecord("newest", []float32{0, 0.5, 0.5, 0}))
	require.NoError(t, err)

	results := store.Search(ctx, []float32{1, 0, 0, 0}, 3)
	require.Len(t, results, 2)
	assert.NotContains(t, results, "Summary for oldest")
}

func TestStore_Checkpoint(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	t.Run("absent checkpoint is zero", func(t *testing.T) {
		got, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, got.IsZero())
	})

	t.Run("round trip", func(t *testing.T) {
		want := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.SetCheckpoint(ctx, want))

		got, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, got.Equal(want))
	})

	t.Run("overwrite", func(t *testing.T) {
		later := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
		require.NoError(t, store.SetCheckpoint(ctx, later))

		got, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, got.Equal(later))
	})
}

func TestFloat32BlobRoundTrip(t *testing.T) {
	in := []float32{0, 1, -1, 0.5, 3.14159}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)

	assert.Nil(t, bytesToFloat32Slice([]byte{1, 2, 3}))
}
