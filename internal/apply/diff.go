package apply

import (
	"fmt"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"
)

// unifiedDiff renders a unified diff between the current and proposed
// content of one file, labeled a/<path> and b/<path> like git.
func unifiedDiff(relPath, oldContent, newContent string) string {
	if oldContent == newContent {
		return ""
	}
	edits := myers.ComputeEdits(span.URIFromPath(relPath), oldContent, newContent)
	return fmt.Sprint(gotextdiff.ToUnified("a/"+relPath, "b/"+relPath, oldContent, edits))
}
