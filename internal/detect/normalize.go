package detect

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// normalizeText strips the parts of a construct that never matter for
// duplicate comparison: indentation, blank lines, and comments. Operates on
// whole lines so the similarity ratio reflects statement structure.
func normalizeText(text string) string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if isCommentLine(trimmed) {
			continue
		}
		// Drop trailing line comments; keeping string contents intact is
		// not worth a tokenizer here — a # or // inside a string just makes
		// two instances look slightly more alike, never less
		if n := strings.Index(trimmed, "//"); n > 0 {
			trimmed = strings.TrimSpace(trimmed[:n])
		}
		if n := strings.Index(trimmed, "#"); n > 0 {
			trimmed = strings.TrimSpace(trimmed[:n])
		}
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return strings.Join(out, "\n")
}

// isCommentLine reports whether a trimmed line is purely a comment.
func isCommentLine(trimmed string) bool {
	return strings.HasPrefix(trimmed, "//") ||
		strings.HasPrefix(trimmed, "#") ||
		strings.HasPrefix(trimmed, "/*") ||
		strings.HasPrefix(trimmed, "*") ||
		strings.HasPrefix(trimmed, "\"\"\"") ||
		strings.HasPrefix(trimmed, "'''")
}

// fingerprint returns a fast non-cryptographic hash of normalized text.
// Used for exact-duplicate short-circuiting; backups use SHA-256.
func fingerprint(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}
