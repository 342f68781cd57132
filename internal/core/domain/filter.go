package domain

import "strings"

// MessageFilter decides whether a fetched message is relevant enough to
// ingest. The pipeline applies it after the window check; filters never see
// messages outside the configured window.
type MessageFilter func(msg *EmailMessage) bool

// AllMessages accepts every message.
func AllMessages(_ *EmailMessage) bool { return true }

// SenderSubjectFilter builds a filter matching messages whose sender contains
// any of the given sender fragments, or whose subject contains any of the
// given subject terms. Matching is case-insensitive substring matching.
// With no fragments and no terms the filter accepts everything.
func SenderSubjectFilter(senders, subjectTerms []string) MessageFilter {
	lowered := func(in []string) []string {
		out := make([]string, 0, len(in))
		for _, s := range in {
			s = strings.ToLower(strings.TrimSpace(s))
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}

	senders = lowered(senders)
	subjectTerms = lowered(subjectTerms)

	if len(senders) == 0 && len(subjectTerms) == 0 {
		return AllMessages
	}

	return func(msg *EmailMessage) bool {
		sender := strings.ToLower(msg.Sender)
		for _, s := range senders {
			if strings.Contains(sender, s) {
				return true
			}
		}
		subject := strings.ToLower(msg.Subject)
		for _, term := range subjectTerms {
			if strings.Contains(subject, term) {
				return true
			}
		}
		return false
	}
}
