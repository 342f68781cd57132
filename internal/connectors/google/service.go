// Package google provides shared plumbing for Google API access: service
// construction, OAuth token handling and rate limiting.
package google

import (
	"context"

	"golang.org/x/oauth2"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// NewGmailService creates a Gmail API service using the provided TokenSource.
func NewGmailService(ctx context.Context, ts oauth2.TokenSource) (*gmail.Service, error) {
	return gmail.NewService(ctx, option.WithTokenSource(ts))
}
