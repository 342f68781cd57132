package domain

import "fmt"

// fallbackBodyLimit bounds how much of the raw body the fallback summary echoes.
const fallbackBodyLimit = 500

// SummarySystemPrompt instructs the model how to condense a message.
// The fixed output markers let downstream consumers treat summaries uniformly
// whether they came from the model or from the deterministic fallback.
const SummarySystemPrompt = `Summarise the given email in the following format, keep it brief but don't lose much information:

OUTPUT FORMAT:
<Email Start>
Date and Time:  (format: dd-MMM-yyyy HH h:mmtt [with time zone])
Sender:
CC:
Subject:
Email Context:
<Email End>`

// SummaryUserPrompt renders the message fields for the summarisation request.
func SummaryUserPrompt(msg *EmailMessage) string {
	return fmt.Sprintf(`The email is the following:

date and time: %s
from: %s
cc: %s
subject: %s
body: %s

Please summarise this email according to the format above.`,
		msg.Date.Format("02-Jan-2006 15:04 MST"), msg.Sender, msg.CC, msg.Subject, msg.Body)
}

// FallbackSummary produces the deterministic summary used when the
// summarisation collaborator fails or is not configured. The pipeline never
// drops a message solely because summarisation failed.
func FallbackSummary(msg *EmailMessage) string {
	body := msg.Body
	if body == "" {
		body = "No body content available"
	} else if len(body) > fallbackBodyLimit {
		body = body[:fallbackBodyLimit]
	}

	return fmt.Sprintf(`<Email Start>
Date and Time: %s
Sender: %s
CC: %s
Subject: %s
Email Context: %s...
<Email End>`,
		msg.Date.Format("02-Jan-2006 15:04 MST"), msg.Sender, msg.CC, msg.Subject, body)
}
