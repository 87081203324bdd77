package align

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// lineAlignment maps every reference line to its counterpart in one other
// instance: matched lines are identical, unmatched lines carry the
// instance's replacement text for that position (possibly empty when the
// instance simply lacks the line).
type lineAlignment struct {
	// matched[i] is true when reference line i appears verbatim in the
	// instance at the aligned position
	matched []bool

	// replacement[i] holds the instance lines aligned to reference line i.
	// For matched lines this is the line itself; inserted instance lines
	// attach to the first line of the enclosing unmatched run.
	replacement [][]string
}

// alignLines aligns an instance's lines to the reference's lines using a
// line-granularity diff. This is the fallback path when the matcher gave no
// AST; it is also what the segment builder runs on in all cases, since
// segments are line-shaped.
func alignLines(refLines, instLines []string) lineAlignment {
	al := lineAlignment{
		matched:     make([]bool, len(refLines)),
		replacement: make([][]string, len(refLines)),
	}

	dmp := diffmatchpatch.New()
	ref := strings.Join(refLines, "\n") + "\n"
	inst := strings.Join(instLines, "\n") + "\n"

	// Line-mode diff: map lines to runes, diff the rune strings, map back
	c1, c2, arr := dmp.DiffLinesToChars(ref, inst)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(c1, c2, false), arr)

	refIdx := 0
	lastDeleteStart := -1

	for _, d := range diffs {
		lines := splitDiffLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for _, line := range lines {
				if refIdx >= len(refLines) {
					break
				}
				al.matched[refIdx] = true
				al.replacement[refIdx] = []string{line}
				refIdx++
			}
			lastDeleteStart = -1

		case diffmatchpatch.DiffDelete:
			// Lines present only in the reference
			lastDeleteStart = refIdx
			for range lines {
				if refIdx >= len(refLines) {
					break
				}
				al.matched[refIdx] = false
				refIdx++
			}

		case diffmatchpatch.DiffInsert:
			// Lines present only in the instance: attach to the unmatched
			// run they replace, or to the previous reference line when the
			// instance grew without deleting anything
			target := lastDeleteStart
			if target < 0 {
				target = refIdx - 1
				if target >= 0 {
					al.matched[target] = false
				}
			}
			if target >= 0 && target < len(refLines) {
				al.replacement[target] = append(al.replacement[target], lines...)
			}
		}
	}

	return al
}

// splitDiffLines splits a diff chunk into its lines, dropping the trailing
// empty element the final newline produces.
func splitDiffLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
