// Package services contains the application services driving ingestion and
// retrieval. Services depend only on the driven ports; all collaborators are
// injected through constructors.
package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driving"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// DefaultMaxPerRun bounds how many candidates a single run attempts.
const DefaultMaxPerRun = 20

// summaryChatOptions keeps summarisation short and deterministic.
var summaryChatOptions = driven.ChatOptions{MaxTokens: 512, Temperature: 0.2}

// Ensure IngestService implements the interface.
var _ driving.Ingestor = (*IngestService)(nil)

// IngestConfig tunes an ingestion service.
type IngestConfig struct {
	// MaxPerRun caps candidates attempted per run. <= 0 selects the default.
	MaxPerRun int

	// WindowDays derives the fetch window from the last n days instead of
	// the current calendar month when positive.
	WindowDays int

	// Filter decides message relevance. Nil accepts everything.
	Filter domain.MessageFilter
}

// IngestService runs ingestion passes: fetch candidates, filter, summarise,
// embed, dedup-store, and advance the checkpoint.
type IngestService struct {
	store    driven.EmailStore
	fetcher  driven.MailFetcher
	embedder driven.EmbeddingService
	llm      driven.LLMService
	cfg      IngestConfig

	mu      sync.Mutex
	running bool
	status  driving.IngestStatus

	// now is replaceable in tests.
	now func() time.Time
}

// NewIngestService creates an ingestion service. llm may be nil, in which
// case summaries always use the deterministic fallback. The embedder and
// store must agree on dimensions.
func NewIngestService(
	store driven.EmailStore,
	fetcher driven.MailFetcher,
	embedder driven.EmbeddingService,
	llm driven.LLMService,
	cfg IngestConfig,
) (*IngestService, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", domain.ErrInvalidInput)
	}
	if fetcher == nil {
		return nil, fmt.Errorf("%w: fetcher is required", domain.ErrInvalidInput)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedding service is required", domain.ErrInvalidInput)
	}
	if embedder.Dimensions() != store.Dimensions() {
		return nil, fmt.Errorf("%w: embedder produces %d dimensions, store expects %d",
			domain.ErrDimensionMismatch, embedder.Dimensions(), store.Dimensions())
	}
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = DefaultMaxPerRun
	}
	if cfg.Filter == nil {
		cfg.Filter = domain.AllMessages
	}

	return &IngestService{
		store:    store,
		fetcher:  fetcher,
		embedder: embedder,
		llm:      llm,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Run executes one ingestion pass. Only one run may be in progress at a
// time. A fetch-level failure aborts the run and preserves the prior
// checkpoint; record-level failures are counted and the run continues.
func (s *IngestService) Run(ctx context.Context) (*domain.IngestReport, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, domain.ErrIngestInProgress
	}
	s.running = true
	s.status = driving.IngestStatus{Running: true}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.status.Running = false
		s.mu.Unlock()
	}()

	started := s.now().UTC()
	report := &domain.IngestReport{
		RunID:     uuid.NewString(),
		StartedAt: started,
	}

	prevCheckpoint, err := s.store.Checkpoint(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading checkpoint: %w", err)
	}

	window := domain.MonthWindow(started)
	if s.cfg.WindowDays > 0 {
		window = domain.DaysWindow(started, s.cfg.WindowDays)
	}

	logger.Info("ingest run %s: window %s to %s",
		report.RunID, window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))

	messages, errs := s.fetcher.ListCandidates(ctx, window)
	if err := s.consume(ctx, messages, errs, window, report); err != nil {
		report.FinishedAt = s.now().UTC()
		return nil, fmt.Errorf("listing candidates: %w", err)
	}

	// The checkpoint only moves forward, and only when this run actually
	// saw candidates. A silent provider outage must not skip a period.
	if report.Fetched > 0 && started.After(prevCheckpoint) {
		if err := s.store.SetCheckpoint(ctx, started); err != nil {
			logger.Warn("ingest run %s: checkpoint not advanced: %v", report.RunID, err)
		} else {
			report.CheckpointAdvanced = true
		}
	}

	report.FinishedAt = s.now().UTC()
	logger.Info("ingest run %s: fetched=%d stored=%d duplicates=%d skipped=%d failures=%d",
		report.RunID, report.Fetched, report.Stored, report.Duplicates, report.Skipped, report.Failures)
	return report, nil
}

// Status reports progress of the run in flight.
func (s *IngestService) Status() driving.IngestStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// consume drains the candidate stream, processing each message until the
// stream ends, the per-run cap is reached, or the context is cancelled.
func (s *IngestService) consume(
	ctx context.Context,
	messages <-chan domain.EmailMessage,
	errs <-chan error,
	window domain.FetchWindow,
	report *domain.IngestReport,
) error {
	if messages == nil {
		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return err
			}

		case msg, ok := <-messages:
			if !ok {
				// The stream ended; a trailing fetch error still aborts
				// the run.
				if errs != nil {
					if err, open := <-errs; open && err != nil {
						return err
					}
				}
				return nil
			}
			report.Fetched++

			if report.Attempted() >= s.cfg.MaxPerRun {
				report.Skipped++
				continue
			}
			s.process(ctx, &msg, window, report)
			s.updateStatus(report)
		}
	}
}

// process runs one candidate through window check, filter, summarise, embed
// and store, updating the report counters.
func (s *IngestService) process(ctx context.Context, msg *domain.EmailMessage, window domain.FetchWindow, report *domain.IngestReport) {
	if msg.ID == "" {
		report.Failures++
		logger.Warn("ingest run %s: candidate without message ID", report.RunID)
		return
	}
	if !window.Contains(msg.Date) || !s.cfg.Filter(msg) {
		report.Skipped++
		return
	}

	summary := s.summarise(ctx, msg)

	embedding, err := s.embedder.Embed(ctx, summary)
	if err != nil {
		report.Failures++
		logger.Warn("ingest run %s: embedding %s: %v", report.RunID, msg.ID, err)
		return
	}

	rec := &domain.EmailRecord{
		SourceID:  msg.ID,
		Sender:    msg.Sender,
		CC:        msg.CC,
		Subject:   msg.Subject,
		Date:      msg.Date,
		Body:      msg.Body,
		Summary:   summary,
		Embedding: embedding,
	}

	outcome, err := s.store.Store(ctx, rec)
	switch outcome {
	case domain.StoreInserted:
		report.Stored++
		logger.Debug("ingest run %s: stored %s", report.RunID, msg.ID)
	case domain.StoreAlreadyExists:
		report.Duplicates++
		logger.Debug("ingest run %s: duplicate %s", report.RunID, msg.ID)
	default:
		report.Failures++
		logger.Warn("ingest run %s: storing %s: %v", report.RunID, msg.ID, err)
	}
}

// summarise asks the model to condense the message, falling back to the
// deterministic summary when the model is unavailable or fails.
func (s *IngestService) summarise(ctx context.Context, msg *domain.EmailMessage) string {
	if s.llm == nil {
		return domain.FallbackSummary(msg)
	}

	reply, err := s.llm.Chat(ctx, []domain.ChatMessage{
		{Role: domain.RoleSystem, Content: domain.SummarySystemPrompt},
		{Role: domain.RoleUser, Content: domain.SummaryUserPrompt(msg)},
	}, summaryChatOptions)
	if err != nil || reply == "" {
		logger.Debug("summarising %s fell back to deterministic summary: %v", msg.ID, err)
		return domain.FallbackSummary(msg)
	}
	return reply
}

func (s *IngestService) updateStatus(report *domain.IngestReport) {
	s.mu.Lock()
	s.status.Processed = report.Attempted()
	s.status.Failures = report.Failures
	s.mu.Unlock()
}
