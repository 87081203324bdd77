package apply

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aledlie/dedup/internal/types"
	"github.com/aledlie/dedup/internal/validate"
)

// markerValidator fails any source containing the marker string, so tests
// can trigger post-validation failures on specific file contents.
type markerValidator struct {
	marker string
}

func (v *markerValidator) Validate(_ context.Context, source string, _ types.Language) (validate.Result, error) {
	if v.marker != "" && strings.Contains(source, v.marker) {
		return validate.Result{Valid: false, Errors: []string{"invalid syntax near marker"}}, nil
	}
	return validate.Result{Valid: true}, nil
}

func alwaysValid() validate.Validator { return &markerValidator{} }

const fileA = `def greet(user):
    message = "hello"
    print(message)
    return message

print(greet("ada"))`

const fileB = `def greet(user):
    message = "goodbye"
    print(message)
    return message

print(greet("bob"))`

// writeProject lays out a two-file project and returns its root.
func writeProject(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.py"), []byte(fileA), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.py"), []byte(fileB), 0644))
	return root
}

// extractPlan is the canonical plan for the test project: a new shared.py
// definition plus delegating rewrites of both duplicates.
func extractPlan() *types.RefactoringPlan {
	return &types.RefactoringPlan{
		GroupID:       "dup-001",
		Language:      types.LangPython,
		Strategy:      types.StrategyExtractFunction,
		Name:          "emit_greeting",
		GeneratedCode: "def emit_greeting(greeting):\n    print(greeting)\n    return greeting\n",
		ReturnShape:   types.ReturnSingle,
		Edits: []types.FileEdit{
			{Op: types.EditCreate, Path: "shared.py",
				NewText: "def emit_greeting(greeting):\n    print(greeting)\n    return greeting\n"},
			{Op: types.EditReplace, Path: "a.py", StartLine: 1, EndLine: 4,
				NewText: "def greet(user):\n    return emit_greeting(\"hello\")"},
			{Op: types.EditReplace, Path: "b.py", StartLine: 1, EndLine: 4,
				NewText: "def greet(user):\n    return emit_greeting(\"goodbye\")"},
		},
		ImportEdits: []types.ImportEdit{
			{Path: "a.py", Statement: "from shared import emit_greeting"},
			{Path: "b.py", Statement: "from shared import emit_greeting"},
		},
	}
}

func readFile(t *testing.T, root, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, rel))
	require.NoError(t, err)
	return string(data)
}

func TestApplySuccess(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{KeepBackup: true})
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.NotEmpty(t, result.BackupID)
	assert.ElementsMatch(t, []string{"a.py", "b.py"}, result.ModifiedFiles)
	assert.Equal(t, []string{"shared.py"}, result.CreatedFiles)

	gotA := readFile(t, root, "a.py")
	assert.Contains(t, gotA, `return emit_greeting("hello")`)
	assert.Contains(t, gotA, "from shared import emit_greeting")
	assert.Contains(t, gotA, `print(greet("ada"))`, "code after the construct must survive")

	gotShared := readFile(t, root, "shared.py")
	assert.Contains(t, gotShared, "def emit_greeting(greeting):")
}

func TestApplyDryRunNeverMutates(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, types.StatusPreview, result.Status)
	assert.Empty(t, result.BackupID)
	assert.Len(t, result.Diffs, 3)
	assert.Contains(t, result.Diffs["a.py"], "emit_greeting")

	// Byte-identical originals, no new files, no backup directory
	assert.Equal(t, fileA, readFile(t, root, "a.py"))
	assert.Equal(t, fileB, readFile(t, root, "b.py"))
	_, err = os.Stat(filepath.Join(root, "shared.py"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(root, ".dedup"))
	assert.True(t, os.IsNotExist(err))
}

func TestApplyThenRollbackRestoresExactBytes(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{KeepBackup: true})
	require.NoError(t, err)
	require.Equal(t, types.StatusSuccess, result.Status)
	require.NotEqual(t, fileA, readFile(t, root, "a.py"))

	restored, err := a.Rollback(context.Background(), result.BackupID)
	require.NoError(t, err)
	assert.Len(t, restored, 3)

	assert.Equal(t, fileA, readFile(t, root, "a.py"))
	assert.Equal(t, fileB, readFile(t, root, "b.py"))
	_, err = os.Stat(filepath.Join(root, "shared.py"))
	assert.True(t, os.IsNotExist(err), "rollback must remove the created file")
}

func TestApplyPreValidationFailureHasNoSideEffects(t *testing.T) {
	root := writeProject(t)

	tests := []struct {
		name string
		plan *types.RefactoringPlan
	}{
		{"nil plan", nil},
		{"no edits", &types.RefactoringPlan{
			GroupID:       "dup-001",
			Language:      types.LangPython,
			Strategy:      types.StrategyExtractFunction,
			GeneratedCode: "def f():\n    pass\n",
		}},
		{"bad line range", func() *types.RefactoringPlan {
			p := extractPlan()
			p.Edits[1].StartLine = 0
			return p
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := New(root, ".dedup", alwaysValid())
			require.NoError(t, err)

			result, err := a.Apply(context.Background(), tt.plan, Options{KeepBackup: true})
			require.Error(t, err)
			var verr *types.ValidationError
			assert.True(t, errors.As(err, &verr), "want ValidationError, got %T", err)
			assert.Nil(t, result)

			assert.Equal(t, fileA, readFile(t, root, "a.py"))
			_, statErr := os.Stat(filepath.Join(root, ".dedup"))
			assert.True(t, os.IsNotExist(statErr), "pre-validation failure must not create a backup")
		})
	}
}

func TestApplyInvalidGeneratedCodeRejected(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", &markerValidator{marker: "BROKEN"})
	require.NoError(t, err)

	plan := extractPlan()
	plan.GeneratedCode = "BROKEN(\n"

	result, err := a.Apply(context.Background(), plan, Options{KeepBackup: true})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Equal(t, fileA, readFile(t, root, "a.py"))
}

func TestApplyPostValidationFailureRollsBack(t *testing.T) {
	root := writeProject(t)
	// Snippet validates fine; the rewritten a.py will contain the marker
	a, err := New(root, ".dedup", &markerValidator{marker: "emit_greeting(\"hello\")"})
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{KeepBackup: true})
	require.Error(t, err)
	require.NotNil(t, result)

	var pvErr *types.PostValidationError
	assert.True(t, errors.As(err, &pvErr), "want PostValidationError, got %T", err)
	assert.Equal(t, types.StatusRolledBack, result.Status)
	assert.NotEmpty(t, result.BackupID, "error paths must still report the backup id")

	assert.Equal(t, fileA, readFile(t, root, "a.py"))
	assert.Equal(t, fileB, readFile(t, root, "b.py"))
	_, statErr := os.Stat(filepath.Join(root, "shared.py"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApplyMidwayFailureRestoresEarlierFiles(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	// Poison the last file's edit: its range exceeds the file, so the
	// failure lands after a.py and shared.py were already written
	plan := extractPlan()
	plan.Edits[2].StartLine = 100
	plan.Edits[2].EndLine = 103

	result, err := a.Apply(context.Background(), plan, Options{KeepBackup: true})
	require.Error(t, err)
	require.NotNil(t, result)

	var aerr *types.ApplyError
	assert.True(t, errors.As(err, &aerr), "want ApplyError, got %T", err)
	assert.Equal(t, "b.py", aerr.Path)
	assert.Equal(t, types.StatusRolledBack, result.Status)

	assert.Equal(t, fileA, readFile(t, root, "a.py"), "already-written files must be restored")
	assert.Equal(t, fileB, readFile(t, root, "b.py"))
	_, statErr := os.Stat(filepath.Join(root, "shared.py"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApplyCancelledContextRollsBack(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := a.Apply(ctx, extractPlan(), Options{KeepBackup: true})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.StatusRolledBack, result.Status)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, fileA, readFile(t, root, "a.py"))
}

func TestApplyWithoutKeepBackupStillAtomic(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	plan := extractPlan()
	plan.Edits[2].StartLine = 100
	plan.Edits[2].EndLine = 103

	result, err := a.Apply(context.Background(), plan, Options{KeepBackup: false})
	require.Error(t, err)
	require.NotNil(t, result)

	assert.Equal(t, types.StatusRolledBack, result.Status)
	assert.Empty(t, result.BackupID)
	assert.Equal(t, fileA, readFile(t, root, "a.py"))
	_, statErr := os.Stat(filepath.Join(root, "shared.py"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestApplySuccessWithoutKeepBackupReportsNoBackup(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{})
	require.NoError(t, err)
	assert.Equal(t, types.StatusSuccess, result.Status)
	assert.Empty(t, result.BackupID)

	metas, err := a.Backups().List()
	require.NoError(t, err)
	assert.Empty(t, metas)
}

func TestRollbackUnknownBackup(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	_, err = a.Rollback(context.Background(), "20200101T000000-deadbeef")
	var rbErr *types.RollbackError
	assert.True(t, errors.As(err, &rbErr), "want RollbackError, got %T", err)
}

func TestRollbackRejectsTraversalIDs(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	for _, id := range []string{"../escape", "a/b", ""} {
		_, err := a.Rollback(context.Background(), id)
		assert.Error(t, err, "id %q", id)
	}
}

func TestRollbackDetectsTamperedBackup(t *testing.T) {
	root := writeProject(t)
	a, err := New(root, ".dedup", alwaysValid())
	require.NoError(t, err)

	result, err := a.Apply(context.Background(), extractPlan(), Options{KeepBackup: true})
	require.NoError(t, err)

	// Corrupt the backup copy of a.py
	tampered := filepath.Join(root, ".dedup", "backups", result.BackupID, "a.py")
	require.NoError(t, os.WriteFile(tampered, []byte("tampered"), 0644))

	applied := readFile(t, root, "a.py")
	_, err = a.Rollback(context.Background(), result.BackupID)
	var rbErr *types.RollbackError
	require.True(t, errors.As(err, &rbErr), "want RollbackError, got %T", err)
	assert.Contains(t, rbErr.Error(), "hash mismatch")

	// Nothing was written: the working tree keeps its applied state
	assert.Equal(t, applied, readFile(t, root, "a.py"))
}
