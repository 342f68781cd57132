// Package gmail implements the mail fetch collaborator against the Gmail
// API. Listing is date-bounded and paginated; each listed ID is fetched in
// full and parsed into a domain message.
package gmail

import "github.com/custodia-labs/mailmind-cli/internal/connectors/google"

// DefaultPageSize is how many message IDs one list page requests.
const DefaultPageSize = 100

// Config holds Gmail fetcher configuration.
type Config struct {
	// Query is appended to the date-bounded search query. Gmail search
	// syntax, e.g. "label:finance -category:promotions".
	Query string

	// PageSize bounds list pages. <= 0 selects the default.
	PageSize int64

	// RateLimit paces API calls. Zero selects the Gmail default.
	RateLimit google.RateLimitConfig
}
