package chat

import "regexp"

// Transcript redaction. Transcripts leave the session boundary when they are
// persisted or attached to a hand-off request, so personally identifying
// numbers are scrubbed first. Message history held in memory for the live
// session is left untouched.

const redactedPlaceholder = "[REDACTED]"

var redactionPatterns = []*regexp.Regexp{
	// Phone numbers, with optional country code and common separators.
	regexp.MustCompile(`(?:\+?1[-. ]?)?\(?\d{3}\)?[-. ]?\d{3}[-. ]?\d{4}\b`),
	// Email addresses.
	regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`),
	// Social security numbers.
	regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
}

// redactContent scrubs identifying numbers from a single string.
func redactContent(s string) string {
	for _, re := range redactionPatterns {
		s = re.ReplaceAllString(s, redactedPlaceholder)
	}
	return s
}

// redactMessages returns a scrubbed copy of msgs. The input is not mutated;
// appended messages are immutable.
func redactMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		m.Content = redactContent(m.Content)
		out[i] = m
	}
	return out
}
