package rank

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// FileCoverageDetector is a heuristic coverage collaborator: a file counts
// as covered when a sibling test file exists for it. It answers the
// boundary contract without needing instrumentation data; callers with a
// real coverage feed supply their own CoverageDetector.
type FileCoverageDetector struct{}

// NewFileCoverageDetector creates the heuristic detector.
func NewFileCoverageDetector() *FileCoverageDetector { return &FileCoverageDetector{} }

// Covered implements CoverageDetector.
func (d *FileCoverageDetector) Covered(ctx context.Context, filePath, projectRoot string, lang types.Language) (bool, error) {
	select {
	case <-ctx.Done():
		return false, ctx.Err()
	default:
	}

	for _, candidate := range testFileCandidates(filePath, lang) {
		if _, err := os.Stat(filepath.Join(projectRoot, candidate)); err == nil {
			return true, nil
		}
	}
	return false, nil
}

// testFileCandidates lists the conventional test-file names for a source
// file in each supported language.
func testFileCandidates(filePath string, lang types.Language) []string {
	dir := filepath.Dir(filePath)
	base := filepath.Base(filePath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	switch lang {
	case types.LangGo:
		return []string{filepath.Join(dir, stem+"_test.go")}
	case types.LangPython:
		return []string{
			filepath.Join(dir, "test_"+base),
			filepath.Join(dir, stem+"_test.py"),
			filepath.Join("tests", "test_"+base),
		}
	case types.LangJavaScript, types.LangTypeScript:
		return []string{
			filepath.Join(dir, stem+".test"+ext),
			filepath.Join(dir, stem+".spec"+ext),
			filepath.Join(dir, "__tests__", base),
		}
	}
	return nil
}
