package codegen

import (
	"sort"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// reservedWords are tokens that never contribute to a derived name.
var reservedWords = map[string]bool{
	"def": true, "func": true, "function": true, "class": true, "return": true,
	"if": true, "else": true, "elif": true, "for": true, "while": true,
	"var": true, "let": true, "const": true, "import": true, "from": true,
	"self": true, "this": true, "true": true, "false": true, "nil": true,
	"none": true, "null": true, "new": true, "switch": true, "case": true,
	"range": true, "err": true, "error": true, "print": true, "len": true,
}

// deriveName picks a function name from the dominant identifiers of the
// shared segments: the two most frequent meaningful tokens, prefixed with
// "extracted". Callers override it freely; this only has to be stable and
// pronounceable.
func deriveName(alignment *types.AlignmentResult, lang types.Language) string {
	freq := make(map[string]int)
	var order []string

	for _, seg := range alignment.Segments {
		if !seg.Same {
			continue
		}
		for _, tok := range tokenizeIdentifiers(seg.Text) {
			lower := strings.ToLower(tok)
			if len(lower) < 3 || reservedWords[lower] {
				continue
			}
			if freq[lower] == 0 {
				order = append(order, lower)
			}
			freq[lower]++
		}
	}

	// Most frequent first; first appearance breaks ties
	sort.SliceStable(order, func(i, j int) bool {
		return freq[order[i]] > freq[order[j]]
	})

	words := []string{"extracted"}
	for n, w := range order {
		if n >= 2 {
			break
		}
		words = append(words, w)
	}
	if len(words) == 1 {
		words = append(words, "helper")
	}

	switch lang {
	case types.LangPython, types.LangGo:
		return strings.Join(words, "_")
	default:
		return toCamel(words)
	}
}

// tokenizeIdentifiers extracts identifier-shaped tokens from text.
func tokenizeIdentifiers(text string) []string {
	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(cur.Len() > 0 && r >= '0' && r <= '9') {
			cur.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()
	return out
}

// toCamel joins words in camelCase.
func toCamel(words []string) string {
	var sb strings.Builder
	for n, w := range words {
		if n == 0 {
			sb.WriteString(w)
			continue
		}
		sb.WriteString(capitalize(w))
	}
	return sb.String()
}

// toPascal converts a snake_case or camelCase name to PascalCase.
func toPascal(name string) string {
	parts := strings.Split(name, "_")
	var sb strings.Builder
	for _, p := range parts {
		sb.WriteString(capitalize(p))
	}
	return sb.String()
}

// toSnake converts a camelCase or PascalCase name to snake_case.
func toSnake(name string) string {
	var sb strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !strings.HasSuffix(sb.String(), "_") {
				sb.WriteByte('_')
			}
			sb.WriteRune(r - 'A' + 'a')
		} else {
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

// capitalize upper-cases the first byte of an ASCII word.
func capitalize(w string) string {
	if w == "" {
		return w
	}
	return strings.ToUpper(w[:1]) + w[1:]
}
