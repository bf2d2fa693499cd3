// Package redact masks sensitive substrings before they are persisted,
// journaled, or handed to a channel adapter. It is a boundary, not a
// filter: callers are expected to run every string through Mask at
// exactly the three sites described in the orchestrator's design notes.
package redact

import "regexp"

// patterns is the fixed, ordered set of regular expressions masked by
// Mask: phone-like sequences, provider API-key prefixes, KEY=value env
// leaks, and Google OAuth token shapes.
var patterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:\+|\b)\d{8,15}\b`),
	regexp.MustCompile(`\b(?:sk|rk|pk|xoxb)-[A-Za-z0-9_-]{12,}\b`),
	regexp.MustCompile(`\b(?:OPENROUTER|OPENAI|ANTHROPIC|BRAVE)_[A-Z0-9_]*=?[A-Za-z0-9_-]{8,}\b`),
	regexp.MustCompile(`\bya29\.[A-Za-z0-9._-]+\b`),
	regexp.MustCompile(`\b1//[A-Za-z0-9._-]+\b`),
}

const mask = "[REDACTED]"

// Mask replaces every match of every pattern in text with a fixed
// placeholder. Patterns are applied in order; a string already masked by
// an earlier pattern is not re-scanned by it.
func Mask(text string) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, mask)
	}
	return text
}
