package apply

import (
	"fmt"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// renderNewContent computes a file's post-apply content from its current
// content and the plan's edits for that path. Pure: the caller decides
// whether to write the result.
func renderNewContent(current string, exists bool, edits []types.FileEdit, imports []types.ImportEdit) (string, error) {
	content := current

	// A create edit defines the file wholesale
	for _, e := range edits {
		if e.Op == types.EditCreate {
			content = e.NewText
			exists = true
		}
	}

	// Replace edits apply bottom-up so earlier line numbers stay valid
	replaces := make([]types.FileEdit, 0, len(edits))
	for _, e := range edits {
		if e.Op == types.EditReplace {
			replaces = append(replaces, e)
		}
	}
	if len(replaces) > 0 {
		if !exists {
			return "", fmt.Errorf("replace edit targets missing file")
		}
		for i := range replaces {
			for j := i + 1; j < len(replaces); j++ {
				if replaces[j].StartLine > replaces[i].StartLine {
					replaces[i], replaces[j] = replaces[j], replaces[i]
				}
			}
		}

		lines := strings.Split(content, "\n")
		for _, e := range replaces {
			if e.StartLine > len(lines) || e.EndLine > len(lines) {
				return "", fmt.Errorf("edit range %d-%d exceeds file length %d",
					e.StartLine, e.EndLine, len(lines))
			}
			var next []string
			next = append(next, lines[:e.StartLine-1]...)
			next = append(next, strings.Split(e.NewText, "\n")...)
			next = append(next, lines[e.EndLine:]...)
			lines = next
		}
		content = strings.Join(lines, "\n")
	}

	for _, imp := range imports {
		content = reconcileImport(content, imp)
	}

	return content, nil
}

// reconcileImport inserts or removes one import statement. Additions land
// after the file's existing import block when one exists, else after a
// leading package/shebang/docstring line, else at the top. Already-present
// statements are left alone.
func reconcileImport(content string, imp types.ImportEdit) string {
	lines := strings.Split(content, "\n")

	if imp.Remove {
		var out []string
		for _, line := range lines {
			if strings.TrimSpace(line) == strings.TrimSpace(imp.Statement) {
				continue
			}
			out = append(out, line)
		}
		return strings.Join(out, "\n")
	}

	statement := strings.TrimSpace(imp.Statement)
	// A factored Go import block lists the bare quoted path
	barePath := strings.TrimSpace(strings.TrimPrefix(statement, "import"))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == statement {
			return content
		}
		if strings.HasPrefix(barePath, `"`) && trimmed == barePath {
			return content
		}
	}

	insertAt := 0
	scan := len(lines)
	if scan > 50 {
		scan = 50
	}
	for i := 0; i < scan; i++ {
		trimmed := strings.TrimSpace(lines[i])
		switch {
		case trimmed == "import (":
			// Factored block: the new statement goes after its closing paren,
			// never inside the parentheses
			for j := i + 1; j < len(lines); j++ {
				if strings.TrimSpace(lines[j]) == ")" {
					insertAt = j + 1
					i = j
					break
				}
			}
		case strings.HasPrefix(trimmed, "import ") ||
			strings.HasPrefix(trimmed, "from ") ||
			strings.HasPrefix(trimmed, "const ") && strings.Contains(trimmed, "require("):
			insertAt = i + 1
		case i == 0 && (strings.HasPrefix(trimmed, "#!") || strings.HasPrefix(trimmed, "package ")):
			insertAt = 1
		}
	}

	var out []string
	out = append(out, lines[:insertAt]...)
	out = append(out, imp.Statement)
	out = append(out, lines[insertAt:]...)
	return strings.Join(out, "\n")
}
