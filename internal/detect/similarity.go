package detect

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

// similarityRatio computes a sequence-similarity ratio in [0,1] between two
// normalized texts: 2 * matching characters / total characters, the classic
// Ratcliff-Obershelp shape computed over a character diff.
//
// The metric choice is a tuned heuristic, not a contract; token-based
// ratios behave comparably on normalized input and the diff engine is
// already in the dependency set for alignment.
func similarityRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(a, b, false)

	matched := 0
	for _, d := range diffs {
		if d.Type == diffmatchpatch.DiffEqual {
			matched += len(d.Text)
		}
	}

	return float64(2*matched) / float64(len(a)+len(b))
}

// lengthRatioUpperBound is a cheap admissible bound on similarityRatio:
// if the lengths alone cannot reach the threshold, the diff never needs to
// run. For |a| <= |b|, ratio <= 2|a| / (|a|+|b|).
func lengthRatioUpperBound(lenA, lenB int) float64 {
	if lenA == 0 || lenB == 0 {
		return 0.0
	}
	shorter := lenA
	if lenB < shorter {
		shorter = lenB
	}
	return float64(2*shorter) / float64(lenA+lenB)
}
