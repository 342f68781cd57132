package domain

import "time"

// EmailMessage is a fetched message before it is summarised and stored.
// It is produced by the mail fetch collaborator and is not persisted directly.
type EmailMessage struct {
	// ID is the provider's message identifier, globally unique per source.
	// It is the dedup key for the store.
	ID string

	// Sender is the From header value.
	Sender string

	// CC is the Cc header value, possibly empty.
	CC string

	// Subject is the Subject header value, possibly empty.
	Subject string

	// Date is the message timestamp, normalised to UTC.
	Date time.Time

	// Body is the plain-text body after MIME extraction.
	Body string
}

// FetchWindow bounds which messages an ingestion run considers.
type FetchWindow struct {
	// Start is the inclusive lower bound.
	Start time.Time

	// End is the exclusive upper bound.
	End time.Time
}

// Contains reports whether t falls inside the window.
func (w FetchWindow) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

// MonthWindow returns a window covering the current calendar month up to now.
// This is the default ingestion window; each run re-derives it rather than
// trusting the checkpoint as a hard lower bound.
func MonthWindow(now time.Time) FetchWindow {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return FetchWindow{Start: start, End: now.Add(time.Second)}
}

// DaysWindow returns a window covering the last n days up to now.
func DaysWindow(now time.Time, n int) FetchWindow {
	now = now.UTC()
	return FetchWindow{Start: now.AddDate(0, 0, -n), End: now.Add(time.Second)}
}
