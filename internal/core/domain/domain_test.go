package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFetchWindow_Contains(t *testing.T) {
	window := FetchWindow{
		Start: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC),
	}

	assert.True(t, window.Contains(window.Start))
	assert.True(t, window.Contains(time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)))
	assert.False(t, window.Contains(window.End))
	assert.False(t, window.Contains(time.Date(2025, 5, 31, 23, 59, 59, 0, time.UTC)))
}

func TestMonthWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	window := MonthWindow(now)

	assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), window.Start)
	assert.True(t, window.Contains(now))
	assert.False(t, window.Contains(time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)))

	t.Run("non-UTC clock normalised", func(t *testing.T) {
		loc := time.FixedZone("UTC+5", 5*3600)
		window := MonthWindow(time.Date(2025, 7, 1, 2, 0, 0, 0, loc))
		assert.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), window.Start)
	})
}

func TestDaysWindow(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	window := DaysWindow(now, 7)

	assert.True(t, window.Contains(now))
	assert.True(t, window.Contains(now.AddDate(0, 0, -6)))
	assert.False(t, window.Contains(now.AddDate(0, 0, -8)))
}

func TestSenderSubjectFilter(t *testing.T) {
	msg := &EmailMessage{
		Sender:  "Billing <billing@acme.example>",
		Subject: "Your March Invoice",
	}

	t.Run("empty filter accepts everything", func(t *testing.T) {
		filter := SenderSubjectFilter(nil, nil)
		assert.True(t, filter(msg))
	})

	t.Run("sender fragment matches case-insensitively", func(t *testing.T) {
		filter := SenderSubjectFilter([]string{"BILLING@"}, nil)
		assert.True(t, filter(msg))
	})

	t.Run("subject term matches", func(t *testing.T) {
		filter := SenderSubjectFilter(nil, []string{"invoice"})
		assert.True(t, filter(msg))
	})

	t.Run("either field matching is enough", func(t *testing.T) {
		filter := SenderSubjectFilter([]string{"nobody@"}, []string{"invoice"})
		assert.True(t, filter(msg))
	})

	t.Run("no match rejects", func(t *testing.T) {
		filter := SenderSubjectFilter([]string{"hr@"}, []string{"payslip"})
		assert.False(t, filter(msg))
	})

	t.Run("blank fragments are ignored", func(t *testing.T) {
		filter := SenderSubjectFilter([]string{"  ", ""}, []string{" "})
		assert.True(t, filter(&EmailMessage{Sender: "anyone@example.com"}))
	})
}

func TestFallbackSummary(t *testing.T) {
	msg := &EmailMessage{
		Sender:  "alice@example.com",
		CC:      "bob@example.com",
		Subject: "Quarterly report",
		Date:    time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
		Body:    "The numbers look good.",
	}

	summary := FallbackSummary(msg)
	assert.True(t, strings.HasPrefix(summary, "<Email Start>"))
	assert.True(t, strings.HasSuffix(summary, "<Email End>"))
	assert.Contains(t, summary, "Sender: alice@example.com")
	assert.Contains(t, summary, "CC: bob@example.com")
	assert.Contains(t, summary, "Subject: Quarterly report")
	assert.Contains(t, summary, "14-Mar-2025 09:30 UTC")
	assert.Contains(t, summary, "The numbers look good.")

	t.Run("deterministic", func(t *testing.T) {
		assert.Equal(t, summary, FallbackSummary(msg))
	})

	t.Run("long body truncated", func(t *testing.T) {
		long := *msg
		long.Body = strings.Repeat("x", 2000)
		got := FallbackSummary(&long)
		assert.Contains(t, got, strings.Repeat("x", fallbackBodyLimit)+"...")
		assert.NotContains(t, got, strings.Repeat("x", fallbackBodyLimit+1))
	})

	t.Run("empty body placeholder", func(t *testing.T) {
		empty := *msg
		empty.Body = ""
		assert.Contains(t, FallbackSummary(&empty), "No body content available")
	})
}

func TestStoreOutcome_String(t *testing.T) {
	assert.Equal(t, "inserted", StoreInserted.String())
	assert.Equal(t, "already exists", StoreAlreadyExists.String())
	assert.Equal(t, "failed", StoreFailed.String())
}

func TestIngestReport_Attempted(t *testing.T) {
	report := &IngestReport{Stored: 3, Duplicates: 2, Failures: 1, Skipped: 4}
	assert.Equal(t, 6, report.Attempted())
}
