package gmail

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"

	"github.com/custodia-labs/mailmind-cli/internal/connectors/google"
	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
	"github.com/custodia-labs/mailmind-cli/internal/core/ports/driven"
	"github.com/custodia-labs/mailmind-cli/internal/logger"
)

// gmailUser addresses the authenticated mailbox.
const gmailUser = "me"

// Ensure Fetcher implements the interface.
var _ driven.MailFetcher = (*Fetcher)(nil)

// Fetcher fetches messages from Gmail.
type Fetcher struct {
	service *gmail.Service
	limiter *google.RateLimiter
	cfg     Config
}

// NewFetcher creates a Gmail fetcher over an authenticated service.
func NewFetcher(service *gmail.Service, cfg Config) (*Fetcher, error) {
	if service == nil {
		return nil, fmt.Errorf("gmail: service is required")
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}

	return &Fetcher{
		service: service,
		limiter: google.NewRateLimiter(cfg.RateLimit),
		cfg:     cfg,
	}, nil
}

// ListCandidates streams messages whose timestamps may fall inside the
// window. Gmail's after: filter has day granularity, so the stream
// over-fetches at the window edges; callers re-check exact timestamps.
func (f *Fetcher) ListCandidates(ctx context.Context, window domain.FetchWindow) (<-chan domain.EmailMessage, <-chan error) {
	messages := make(chan domain.EmailMessage)
	errs := make(chan error, 1)

	go func() {
		defer close(messages)
		defer close(errs)

		query := f.buildQuery(window)
		logger.Debug("gmail: listing with query %q", query)

		pageToken := ""
		for {
			if err := f.limiter.Wait(ctx); err != nil {
				errs <- err
				return
			}

			call := f.service.Users.Messages.List(gmailUser).
				Q(query).
				MaxResults(f.cfg.PageSize).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			page, err := call.Do()
			if err != nil {
				f.recordRateLimit(err)
				errs <- fmt.Errorf("listing messages: %w", err)
				return
			}

			for _, ref := range page.Messages {
				msg, err := f.Fetch(ctx, ref.Id)
				if err != nil {
					errs <- fmt.Errorf("fetching message %s: %w", ref.Id, err)
					return
				}

				select {
				case messages <- *msg:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}

			pageToken = page.NextPageToken
			if pageToken == "" {
				return
			}
		}
	}()

	return messages, errs
}

// Fetch retrieves and parses a single full message by ID.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*domain.EmailMessage, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	msg, err := f.service.Users.Messages.Get(gmailUser, id).
		Format("full").
		Context(ctx).
		Do()
	if err != nil {
		f.recordRateLimit(err)
		if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 404 {
			return nil, fmt.Errorf("%w: message %s", domain.ErrNotFound, id)
		}
		return nil, err
	}

	return ParseMessage(msg), nil
}

// Close releases resources.
func (f *Fetcher) Close() error {
	return nil
}

// buildQuery renders the window bounds and the configured query fragment in
// Gmail search syntax.
func (f *Fetcher) buildQuery(window domain.FetchWindow) string {
	parts := []string{
		fmt.Sprintf("after:%s", window.Start.UTC().Format("2006/01/02")),
	}
	if !window.End.IsZero() {
		// before: is exclusive at day granularity; pad a day so messages
		// on the end date still list.
		parts = append(parts, fmt.Sprintf("before:%s", window.End.UTC().AddDate(0, 0, 1).Format("2006/01/02")))
	}
	if f.cfg.Query != "" {
		parts = append(parts, f.cfg.Query)
	}
	return strings.Join(parts, " ")
}

// recordRateLimit feeds 429 responses into the limiter's backoff.
func (f *Fetcher) recordRateLimit(err error) {
	if gerr, ok := err.(*googleapi.Error); ok && gerr.Code == 429 {
		f.limiter.RecordRateLimitError(0)
	}
}
