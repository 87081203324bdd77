package align

import (
	"regexp"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

var (
	identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	numberRe     = regexp.MustCompile(`^-?[0-9]+(\.[0-9]+)?$`)
	tokenRe      = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*|-?[0-9]+(\.[0-9]+)?|"[^"]*"|'[^']*'|\x60[^\x60]*\x60|\S`)
)

// branch keywords across the supported languages; a differing segment that
// introduces or removes one of these changes control flow between instances
// and cannot be parameterized.
var branchKeywords = map[string]bool{
	"if": true, "else": true, "elif": true, "switch": true,
	"case": true, "for": true, "while": true, "match": true,
}

// importPrefixes mark lines that belong to import-list reconciliation
// rather than parameter extraction.
var importPrefixes = []string{"import ", "from ", "require(", "const ", "include ", "use "}

// classifySegment decides the variation kind and severity for one differing
// segment given the reference text and every instance's value.
func classifySegment(refText string, values []string) (types.VariationKind, types.Severity) {
	if isImportText(refText) {
		return types.VariationImport, types.SeverityLow
	}
	for _, v := range values {
		if isImportText(v) && v != "" {
			return types.VariationImport, types.SeverityLow
		}
	}

	refBranches := branchProfile(refText)
	for _, v := range values {
		if branchProfile(v) != refBranches {
			return types.VariationConditional, types.SeverityHigh
		}
	}

	// Token-column comparison: when every instance has the same token
	// shape as the reference, the variation is as narrow as the differing
	// columns' token classes
	refTokens := tokenize(refText)
	allLiteral, allIdentifier := true, true
	comparable := true

	for _, v := range values {
		toks := tokenize(v)
		if len(toks) != len(refTokens) {
			comparable = false
			break
		}
		for i := range toks {
			if toks[i] == refTokens[i] {
				continue
			}
			switch {
			case isLiteralToken(refTokens[i]) && isLiteralToken(toks[i]):
				allIdentifier = false
			case identifierRe.MatchString(refTokens[i]) && identifierRe.MatchString(toks[i]):
				allLiteral = false
			default:
				comparable = false
			}
		}
		if !comparable {
			break
		}
	}

	switch {
	case comparable && allLiteral:
		return types.VariationLiteral, types.SeverityLow
	case comparable && allIdentifier:
		return types.VariationIdentifier, types.SeverityLow
	case comparable:
		// Mixed literal and identifier columns still parameterize cleanly
		return types.VariationIdentifier, types.SeverityLow
	default:
		return types.VariationExpression, types.SeverityMedium
	}
}

// branchProfile counts branch keywords in text, so two segments with
// different branching structure compare unequal.
func branchProfile(text string) int {
	count := 0
	for _, tok := range tokenize(text) {
		if branchKeywords[tok] {
			count++
		}
	}
	return count
}

// isImportText reports whether text is (only) import-shaped lines.
func isImportText(text string) bool {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	if len(lines) == 0 || strings.TrimSpace(text) == "" {
		return false
	}
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		found := false
		for _, p := range importPrefixes {
			if strings.HasPrefix(trimmed, p) && strings.Contains(trimmed, "import") ||
				strings.HasPrefix(trimmed, "import ") || strings.HasPrefix(trimmed, "from ") {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// tokenize splits text into identifier, number, string, and symbol tokens.
func tokenize(text string) []string {
	return tokenRe.FindAllString(text, -1)
}

// isLiteralToken reports whether tok is a number, string, or boolean literal.
func isLiteralToken(tok string) bool {
	if numberRe.MatchString(tok) {
		return true
	}
	if len(tok) >= 2 {
		switch tok[0] {
		case '"', '\'', '`':
			return true
		}
	}
	switch tok {
	case "true", "false", "True", "False", "nil", "None", "null":
		return true
	}
	return false
}

// inferTypeFromValues guesses a language-neutral type class from the
// concrete values; the generator maps it to a per-language annotation.
func inferTypeFromValues(values []string) string {
	allNumber, allString, allBool := true, true, true
	for _, v := range values {
		t := strings.TrimSpace(v)
		if !numberRe.MatchString(t) {
			allNumber = false
		}
		if len(t) < 2 || (t[0] != '"' && t[0] != '\'' && t[0] != '`') {
			allString = false
		}
		switch t {
		case "true", "false", "True", "False":
		default:
			allBool = false
		}
	}
	switch {
	case allNumber:
		return "number"
	case allString:
		return "string"
	case allBool:
		return "bool"
	default:
		return ""
	}
}
