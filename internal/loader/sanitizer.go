package loader

import "regexp"

// redaction pairs a detector with its replacement. Order matters: longer
// account-number shapes must be tried before their substrings.
type redaction struct {
	pattern     *regexp.Regexp
	replacement string
}

// defaultRedactions covers the sensitive data classes seen in logistics
// corpora: national IDs, phone numbers, emails, card and account numbers,
// and inline credentials.
var defaultRedactions = []redaction{
	{regexp.MustCompile(`\d{6}[1234]\d{8}[0-9xX]{4}`), "[REDACTED_ID]"},
	{regexp.MustCompile(`1[3-9]\d{9}`), "[REDACTED_PHONE]"},
	{regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), "[REDACTED_EMAIL]"},
	{regexp.MustCompile(`password\s*[:=]\s*['"][^'"]*['"]`), `password = "[REDACTED]"`},
	{regexp.MustCompile(`\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{3}`), "[REDACTED_BANK_ACCOUNT]"},
	{regexp.MustCompile(`\d{4}[-\s]?\d{4}[-\s]?\d{4}[-\s]?\d{4}`), "[REDACTED_CREDIT_CARD]"},
	{regexp.MustCompile(`\b[A-Z]{2}\d{8}\b`), "[REDACTED_PASSPORT]"},
	{regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`), "[REDACTED_SSN]"},
	{regexp.MustCompile(`(?i)bearer\s+[A-Za-z0-9\-_]+`), "[REDACTED_AUTH_TOKEN]"},
	{regexp.MustCompile(`(access_token|token|secret)\s*[:=]\s*['"][^'"]*['"]`), "[REDACTED_SECRET]"},
}

// Sanitizer redacts sensitive data before text enters an index.
type Sanitizer struct {
	redactions []redaction
}

// NewSanitizer creates a Sanitizer with the default redaction set.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{redactions: defaultRedactions}
}

// AddPattern registers an additional redaction, applied after the defaults.
func (s *Sanitizer) AddPattern(pattern *regexp.Regexp, replacement string) {
	s.redactions = append(s.redactions, redaction{pattern: pattern, replacement: replacement})
}

// Sanitize applies every redaction to text in order.
func (s *Sanitizer) Sanitize(text string) string {
	for _, r := range s.redactions {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
