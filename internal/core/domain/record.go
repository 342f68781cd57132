package domain

import "time"

// EmailRecord is the persisted form of an ingested message.
// Records are append-only: created once per unique SourceID and never
// mutated or deleted in normal operation.
type EmailRecord struct {
	// SourceID is the unique dedup key (the provider's message ID).
	SourceID string

	// Sender is the From header value.
	Sender string

	// CC is the Cc header value, possibly empty.
	CC string

	// Subject is the Subject header value, possibly empty.
	Subject string

	// Date is the message timestamp in UTC.
	Date time.Time

	// Body is the extracted plain-text body.
	Body string

	// Summary is the stored condensation of the message. It is embedded
	// and returned by search; never regenerated once stored.
	Summary string

	// Embedding is the fixed-dimension vector for the summary.
	Embedding []float32

	// Seq is the insertion sequence assigned by the store.
	Seq int64

	// CreatedAt is when the record was stored.
	CreatedAt time.Time
}

// StoreOutcome reports what a store call did.
type StoreOutcome int

const (
	// StoreFailed indicates the record could not be persisted.
	// The accompanying error describes why.
	StoreFailed StoreOutcome = iota

	// StoreInserted indicates a new record was persisted.
	StoreInserted

	// StoreAlreadyExists indicates a record with the same SourceID is
	// already present. Nothing was mutated.
	StoreAlreadyExists
)

// String returns a human-readable outcome name.
func (o StoreOutcome) String() string {
	switch o {
	case StoreInserted:
		return "inserted"
	case StoreAlreadyExists:
		return "already exists"
	default:
		return "failed"
	}
}
