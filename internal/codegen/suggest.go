package codegen

import (
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// errorKind buckets validator messages so suggestions can be shared across
// languages with the same failure shape.
type errorKind string

const (
	errUnmatchedBracket errorKind = "unmatched_bracket"
	errIndentation      errorKind = "indentation"
	errMissingColon     errorKind = "missing_colon"
	errUnexpectedEOF    errorKind = "unexpected_eof"
	errGeneric          errorKind = "generic"
)

// classifyErrorKind maps raw validator messages onto an errorKind.
func classifyErrorKind(errors []string) errorKind {
	joined := strings.ToLower(strings.Join(errors, " "))
	switch {
	case strings.Contains(joined, "unexpected eof") ||
		strings.Contains(joined, "unexpected end of") ||
		strings.Contains(joined, "eof in"):
		return errUnexpectedEOF
	case strings.Contains(joined, "paren") || strings.Contains(joined, "bracket") ||
		strings.Contains(joined, "brace") || strings.Contains(joined, "expected '}'") ||
		strings.Contains(joined, "expected ')'"):
		return errUnmatchedBracket
	case strings.Contains(joined, "indent"):
		return errIndentation
	case strings.Contains(joined, "expected ':'") || strings.Contains(joined, "missing colon"):
		return errMissingColon
	default:
		return errGeneric
	}
}

// suggestions is the shared (language, error-kind) -> suggested-fix table.
// Rows exist only where the advice is language-specific; the wildcard
// language "" catches the rest.
var suggestions = map[types.Language]map[errorKind]string{
	types.LangPython: {
		errIndentation:  "re-indent the extracted body to a uniform 4 spaces; mixed tabs and spaces inside the duplicate usually cause this",
		errMissingColon: "a compound statement in the extracted body lost its trailing ':'; check lines that were split across a variation boundary",
	},
	types.LangGo: {
		errUnmatchedBracket: "a variation boundary likely split a composite literal or block; widen min_lines or exclude this group",
	},
	"": {
		errUnmatchedBracket: "the aligned segments split a bracketed expression across instances; this group needs manual extraction",
		errUnexpectedEOF:    "the extracted body is truncated; the construct likely extended past the matched range",
		errIndentation:      "normalize indentation of the duplicate instances and rescan",
		errMissingColon:     "a statement separator was lost at a segment boundary",
		errGeneric:          "review the generated definition; the variations in this group may not be safely parameterizable",
	},
}

// suggestFix returns the best-effort suggestion for a failed validation.
func suggestFix(lang types.Language, errors []string) string {
	kind := classifyErrorKind(errors)
	if byKind, ok := suggestions[lang]; ok {
		if s, ok := byKind[kind]; ok {
			return s
		}
	}
	if s, ok := suggestions[""][kind]; ok {
		return s
	}
	return suggestions[""][errGeneric]
}
