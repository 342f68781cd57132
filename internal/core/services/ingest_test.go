package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/mailmind-cli/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
)

// testNow is the fixed clock for ingest tests; messages are dated inside
// its calendar month.
var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

// --- Mock implementations ---

// mockFetcher implements driven.MailFetcher for testing.
type mockFetcher struct {
	messages []domain.EmailMessage
	listErr  error
}

func (m *mockFetcher) ListCandidates(_ context.Context, _ domain.FetchWindow) (<-chan domain.EmailMessage, <-chan error) {
	msgs := make(chan domain.EmailMessage, len(m.messages))
	errs := make(chan error, 1)
	if m.listErr != nil {
		errs <- m.listErr
	} else {
		for _, msg := range m.messages {
			msgs <- msg
		}
	}
	close(msgs)
	close(errs)
	return msgs, errs
}

func (m *mockFetcher) Fetch(_ context.Context, id string) (*domain.EmailMessage, error) {
	for _, msg := range m.messages {
		if msg.ID == id {
			return &msg, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockFetcher) Close() error {
	return nil
}

// blockingFetcher keeps a run in flight until released.
type blockingFetcher struct {
	release chan struct{}
}

func (f *blockingFetcher) ListCandidates(_ context.Context, _ domain.FetchWindow) (<-chan domain.EmailMessage, <-chan error) {
	msgs := make(chan domain.EmailMessage)
	errs := make(chan error)
	go func() {
		<-f.release
		close(msgs)
		close(errs)
	}()
	return msgs, errs
}

func (f *blockingFetcher) Fetch(_ context.Context, _ string) (*domain.EmailMessage, error) {
	return nil, domain.ErrNotFound
}

func (f *blockingFetcher) Close() error {
	return nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	embedding []float32
	embedErr  error
	dims      int
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.embedding, nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.embedding
	}
	return result, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	if m.dims > 0 {
		return m.dims
	}
	return 3
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return nil
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu      sync.Mutex
	reply   string
	chatErr error
	calls   [][]domain.ChatMessage
}

func (m *mockLLMService) Chat(_ context.Context, messages []domain.ChatMessage, _ driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, messages)
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.reply, nil
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

// --- Helpers ---

func inWindowMessage(id string) domain.EmailMessage {
	return domain.EmailMessage{
		ID:      id,
		Sender:  "alice@example.com",
		Subject: "Project update " + id,
		Date:    time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Body:    "Status report body for " + id,
	}
}

func newIngestFixture(t *testing.T, fetcher driven.MailFetcher, llm driven.LLMService, cfg IngestConfig) (*IngestService, *memory.EmailStore) {
	t.Helper()

	store, err := memory.NewEmailStore(3)
	require.NoError(t, err)

	svc, err := NewIngestService(store, fetcher, &mockEmbeddingService{embedding: []float32{1, 0, 0}}, llm, cfg)
	require.NoError(t, err)
	svc.now = func() time.Time { return testNow }
	return svc, store
}

// --- Tests ---

func TestNewIngestService(t *testing.T) {
	store, err := memory.NewEmailStore(3)
	require.NoError(t, err)

	t.Run("dimension mismatch rejected", func(t *testing.T) {
		_, err := NewIngestService(store, &mockFetcher{}, &mockEmbeddingService{dims: 5}, nil, IngestConfig{})
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})

	t.Run("missing collaborators rejected", func(t *testing.T) {
		_, err := NewIngestService(nil, &mockFetcher{}, &mockEmbeddingService{}, nil, IngestConfig{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = NewIngestService(store, nil, &mockEmbeddingService{}, nil, IngestConfig{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = NewIngestService(store, &mockFetcher{}, nil, nil, IngestConfig{})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("nil llm is allowed", func(t *testing.T) {
		_, err := NewIngestService(store, &mockFetcher{}, &mockEmbeddingService{}, nil, IngestConfig{})
		assert.NoError(t, err)
	})
}

func TestIngestService_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("stores new messages and advances checkpoint", func(t *testing.T) {
		fetcher := &mockFetcher{messages: []domain.EmailMessage{
			inWindowMessage("m1"), inWindowMessage("m2"), inWindowMessage("m3"),
		}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{})

		report, err := svc.Run(ctx)
		require.NoError(t, err)

		assert.NotEmpty(t, report.RunID)
		assert.Equal(t, 3, report.Fetched)
		assert.Equal(t, 3, report.Stored)
		assert.Zero(t, report.Duplicates)
		assert.Zero(t, report.Failures)
		assert.True(t, report.CheckpointAdvanced)
		assert.Equal(t, 3, store.Count(ctx))

		checkpoint, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, checkpoint.Equal(testNow))
	})

	t.Run("rerun is idempotent", func(t *testing.T) {
		fetcher := &mockFetcher{messages: []domain.EmailMessage{
			inWindowMessage("m1"), inWindowMessage("m2"), inWindowMessage("m3"),
		}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{})

		_, err := svc.Run(ctx)
		require.NoError(t, err)

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Stored)
		assert.Equal(t, 3, report.Duplicates)
		assert.Equal(t, 3, store.Count(ctx))
	})

	t.Run("distinct run IDs", func(t *testing.T) {
		svc, _ := newIngestFixture(t, &mockFetcher{}, nil, IngestConfig{})

		first, err := svc.Run(ctx)
		require.NoError(t, err)
		second, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.NotEqual(t, first.RunID, second.RunID)
	})

	t.Run("message outside window is skipped", func(t *testing.T) {
		old := inWindowMessage("old")
		old.Date = time.Date(2025, 5, 20, 9, 0, 0, 0, time.UTC)
		fetcher := &mockFetcher{messages: []domain.EmailMessage{old, inWindowMessage("m1")}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 1, report.Stored)
		assert.Equal(t, 1, store.Count(ctx))
	})

	t.Run("relevance filter skips non-matching", func(t *testing.T) {
		noise := inWindowMessage("noise")
		noise.Sender = "spam@other.com"
		noise.Subject = "Unrelated"
		fetcher := &mockFetcher{messages: []domain.EmailMessage{noise, inWindowMessage("m1")}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{
			Filter: domain.SenderSubjectFilter([]string{"alice@"}, nil),
		})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 1, report.Stored)
		assert.Equal(t, 1, store.Count(ctx))
	})

	t.Run("days window overrides month window", func(t *testing.T) {
		recent := inWindowMessage("recent")
		recent.Date = testNow.AddDate(0, 0, -2)
		stale := inWindowMessage("stale")
		stale.Date = testNow.AddDate(0, 0, -10)
		fetcher := &mockFetcher{messages: []domain.EmailMessage{recent, stale}}
		svc, _ := newIngestFixture(t, fetcher, nil, IngestConfig{WindowDays: 7})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stored)
		assert.Equal(t, 1, report.Skipped)
	})

	t.Run("candidate without ID counts as failure", func(t *testing.T) {
		anon := inWindowMessage("")
		fetcher := &mockFetcher{messages: []domain.EmailMessage{anon}}
		svc, _ := newIngestFixture(t, fetcher, nil, IngestConfig{})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failures)
	})

	t.Run("max per run caps attempts", func(t *testing.T) {
		fetcher := &mockFetcher{messages: []domain.EmailMessage{
			inWindowMessage("m1"), inWindowMessage("m2"), inWindowMessage("m3"),
		}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{MaxPerRun: 2})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, report.Fetched)
		assert.Equal(t, 2, report.Stored)
		assert.Equal(t, 1, report.Skipped)
		assert.Equal(t, 2, store.Count(ctx))
	})

	t.Run("zero candidates leaves checkpoint untouched", func(t *testing.T) {
		svc, store := newIngestFixture(t, &mockFetcher{}, nil, IngestConfig{})
		prior := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.SetCheckpoint(ctx, prior))

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, report.Fetched)
		assert.False(t, report.CheckpointAdvanced)

		checkpoint, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, checkpoint.Equal(prior))
	})

	t.Run("checkpoint never regresses", func(t *testing.T) {
		fetcher := &mockFetcher{messages: []domain.EmailMessage{inWindowMessage("m1")}}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{})
		future := testNow.Add(time.Hour)
		require.NoError(t, store.SetCheckpoint(ctx, future))

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.False(t, report.CheckpointAdvanced)

		checkpoint, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, checkpoint.Equal(future))
	})

	t.Run("fetch error aborts run and preserves checkpoint", func(t *testing.T) {
		fetcher := &mockFetcher{listErr: errors.New("mailbox unreachable")}
		svc, store := newIngestFixture(t, fetcher, nil, IngestConfig{})
		prior := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.SetCheckpoint(ctx, prior))

		_, err := svc.Run(ctx)
		require.Error(t, err)

		checkpoint, err := store.Checkpoint(ctx)
		require.NoError(t, err)
		assert.True(t, checkpoint.Equal(prior))
	})

	t.Run("concurrent run rejected", func(t *testing.T) {
		fetcher := &blockingFetcher{release: make(chan struct{})}
		svc, _ := newIngestFixture(t, fetcher, nil, IngestConfig{})

		done := make(chan struct{})
		go func() {
			defer close(done)
			_, _ = svc.Run(ctx)
		}()

		require.Eventually(t, func() bool {
			return svc.Status().Running
		}, time.Second, 5*time.Millisecond)

		_, err := svc.Run(ctx)
		assert.ErrorIs(t, err, domain.ErrIngestInProgress)

		close(fetcher.release)
		<-done
		assert.False(t, svc.Status().Running)
	})
}

func TestIngestService_Summaries(t *testing.T) {
	ctx := context.Background()

	t.Run("model summary is stored", func(t *testing.T) {
		llm := &mockLLMService{reply: "<Email Start>\nmodel summary\n<Email End>"}
		fetcher := &mockFetcher{messages: []domain.EmailMessage{inWindowMessage("m1")}}
		svc, store := newIngestFixture(t, fetcher, llm, IngestConfig{})

		_, err := svc.Run(ctx)
		require.NoError(t, err)

		results := store.Search(ctx, []float32{1, 0, 0}, 1)
		assert.Equal(t, []string{llm.reply}, results)
	})

	t.Run("model failure falls back to deterministic summary", func(t *testing.T) {
		llm := &mockLLMService{chatErr: errors.New("model unavailable")}
		msg := inWindowMessage("m1")
		fetcher := &mockFetcher{messages: []domain.EmailMessage{msg}}
		svc, store := newIngestFixture(t, fetcher, llm, IngestConfig{})

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Stored)
		assert.Zero(t, report.Failures)

		results := store.Search(ctx, []float32{1, 0, 0}, 1)
		require.Len(t, results, 1)
		assert.Equal(t, domain.FallbackSummary(&msg), results[0])
		assert.True(t, strings.HasPrefix(results[0], "<Email Start>"))
	})

	t.Run("embedding failure skips message", func(t *testing.T) {
		store, err := memory.NewEmailStore(3)
		require.NoError(t, err)
		embedder := &mockEmbeddingService{embedErr: errors.New("embedding service down")}
		fetcher := &mockFetcher{messages: []domain.EmailMessage{inWindowMessage("m1")}}

		svc, err := NewIngestService(store, fetcher, embedder, nil, IngestConfig{})
		require.NoError(t, err)
		svc.now = func() time.Time { return testNow }

		report, err := svc.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Failures)
		assert.Zero(t, report.Stored)
		assert.Zero(t, store.Count(ctx))
		assert.True(t, report.CheckpointAdvanced)
	})
}
