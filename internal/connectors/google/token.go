package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	oauthgoogle "golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// LoadOAuthConfig reads an OAuth client secret file (the credentials.json
// downloaded from the Google Cloud console) and builds the read-only Gmail
// OAuth configuration.
func LoadOAuthConfig(credentialsFile string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	cfg, err := oauthgoogle.ConfigFromJSON(data, gmail.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parsing credentials file: %w", err)
	}
	return cfg, nil
}

// TokenFromFile reads a cached OAuth token.
func TokenFromFile(tokenFile string) (*oauth2.Token, error) {
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("parsing token file: %w", err)
	}
	return &token, nil
}

// SaveToken writes an OAuth token for later runs.
func SaveToken(tokenFile string, token *oauth2.Token) error {
	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("encoding token: %w", err)
	}
	if err := os.WriteFile(tokenFile, data, 0600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}

// FileTokenSource builds an auto-refreshing token source from a cached
// token. Refreshed tokens are persisted back to tokenFile.
func FileTokenSource(ctx context.Context, cfg *oauth2.Config, tokenFile string) (oauth2.TokenSource, error) {
	token, err := TokenFromFile(tokenFile)
	if err != nil {
		return nil, fmt.Errorf("no cached token, run the auth command first: %w", err)
	}

	return &persistingTokenSource{
		wrapped:   cfg.TokenSource(ctx, token),
		tokenFile: tokenFile,
		last:      token,
	}, nil
}

// persistingTokenSource writes refreshed tokens back to disk so the refresh
// survives process restarts.
type persistingTokenSource struct {
	wrapped   oauth2.TokenSource
	tokenFile string
	last      *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.wrapped.Token()
	if err != nil {
		return nil, err
	}
	if s.last == nil || token.AccessToken != s.last.AccessToken {
		s.last = token
		if err := SaveToken(s.tokenFile, token); err != nil {
			return nil, err
		}
	}
	return token, nil
}
