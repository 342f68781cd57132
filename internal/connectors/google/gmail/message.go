package gmail

import (
	"encoding/base64"
	"mime"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"google.golang.org/api/gmail/v1"

	"github.com/custodia-labs/mailmind-cli/internal/core/domain"
)

var (
	htmlTagPattern    = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`[ \t]{2,}`)
)

// ParseMessage converts a Gmail message (format "full") into a domain
// message. Missing headers yield empty fields; an unparsable date falls back
// to the provider's internal timestamp.
func ParseMessage(msg *gmail.Message) *domain.EmailMessage {
	parsed := &domain.EmailMessage{ID: msg.Id}
	if msg.Payload == nil {
		return parsed
	}

	decoder := &mime.WordDecoder{}
	var dateHeader string
	for _, h := range msg.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			parsed.Sender = decodeHeader(decoder, h.Value)
		case "cc":
			parsed.CC = decodeHeader(decoder, h.Value)
		case "subject":
			parsed.Subject = decodeHeader(decoder, h.Value)
		case "date":
			dateHeader = h.Value
		}
	}

	parsed.Date = parseDate(dateHeader, msg.InternalDate)
	parsed.Body = extractBody(msg.Payload)
	if parsed.Body == "" {
		parsed.Body = msg.Snippet
	}
	return parsed
}

// decodeHeader resolves RFC 2047 encoded words, keeping the raw value when
// decoding fails.
func decodeHeader(decoder *mime.WordDecoder, value string) string {
	decoded, err := decoder.DecodeHeader(value)
	if err != nil {
		return value
	}
	return decoded
}

// parseDate parses the Date header, falling back to the epoch-millisecond
// internal date.
func parseDate(header string, internalDate int64) time.Time {
	if header != "" {
		if t, err := mail.ParseDate(header); err == nil {
			return t.UTC()
		}
	}
	if internalDate > 0 {
		return time.UnixMilli(internalDate).UTC()
	}
	return time.Time{}
}

// extractBody walks the MIME tree and returns the message text. text/plain
// parts win; text/html is stripped to text when no plain part exists.
func extractBody(payload *gmail.MessagePart) string {
	if plain := findPart(payload, "text/plain"); plain != "" {
		return plain
	}
	if html := findPart(payload, "text/html"); html != "" {
		return stripHTMLTags(html)
	}
	return ""
}

// findPart returns the decoded data of the first part matching mimeType.
func findPart(part *gmail.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}
	if strings.HasPrefix(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, child := range part.Parts {
		if text := findPart(child, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody decodes base64url body data, tolerating both padded and
// unpadded encodings.
func decodeBody(data string) string {
	if decoded, err := base64.URLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	if decoded, err := base64.RawURLEncoding.DecodeString(data); err == nil {
		return string(decoded)
	}
	return ""
}

// stripHTMLTags reduces an HTML body to readable text.
func stripHTMLTags(html string) string {
	text := html

	// Block-level closers become line breaks before tags are dropped.
	for _, tag := range []string{"</p>", "</div>", "</tr>", "<br>", "<br/>", "<br />"} {
		text = strings.ReplaceAll(text, tag, "\n")
	}

	text = htmlTagPattern.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "&nbsp;", " ")
	text = strings.ReplaceAll(text, "&amp;", "&")
	text = strings.ReplaceAll(text, "&lt;", "<")
	text = strings.ReplaceAll(text, "&gt;", ">")
	text = strings.ReplaceAll(text, "&quot;", `"`)
	text = strings.ReplaceAll(text, "&#39;", "'")
	text = whitespacePattern.ReplaceAllString(text, " ")

	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}
