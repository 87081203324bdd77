// Package apply executes refactoring plans against the working tree: a
// pre-validate → backup → apply → post-validate state machine with
// automatic rollback on any failure past the backup point. The invariant
// every path upholds: the tree is never left observably between pre-apply
// and fully-applied-and-validated states.
package apply

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
	"github.com/aledlie/dedup/internal/validate"
)

// Options tune one Apply invocation.
type Options struct {
	// DryRun computes diffs without writing anything
	DryRun bool

	// KeepBackup persists the snapshot for later manual rollback. When
	// false the snapshot is held in memory for crash-safety during this
	// apply only and no backup id is reported.
	KeepBackup bool
}

// Applicator applies refactoring plans to one project. Safe for concurrent
// use; overlapping applies serialize per touched file.
type Applicator struct {
	projectRoot string
	validator   validate.Validator
	backups     *BackupManager
	locks       *fileLocks
}

// New creates an Applicator for projectRoot, snapshotting into hiddenDir.
func New(projectRoot, hiddenDir string, validator validate.Validator) (*Applicator, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	backups, err := NewBackupManager(projectRoot, hiddenDir)
	if err != nil {
		return nil, err
	}
	return &Applicator{
		projectRoot: backups.projectRoot,
		validator:   validator,
		backups:     backups,
		locks:       newFileLocks(),
	}, nil
}

// Backups exposes the backup manager for listing and cleanup.
func (a *Applicator) Backups() *BackupManager { return a.backups }

// Apply runs the plan through the state machine. The returned result is
// non-nil on every path that got past pre-validation, and always carries
// the backup id once one exists — even when the error return is non-nil —
// so callers can verify or retry rollback manually.
func (a *Applicator) Apply(ctx context.Context, plan *types.RefactoringPlan, opts Options) (*types.ApplyResult, error) {
	// --- PRE_VALIDATION: structural completeness + generated-code syntax.
	// File existence is deliberately not checked here; it resolves during
	// apply. No side effects may occur before this passes.
	if plan == nil {
		return nil, &types.ValidationError{Reason: "plan is nil"}
	}
	if err := plan.Validate(); err != nil {
		return nil, &types.ValidationError{Reason: "plan is structurally incomplete", Err: err}
	}

	verdict, err := a.validator.Validate(ctx, plan.GeneratedCode, plan.Language)
	if err != nil {
		return nil, err
	}
	preReport := types.ValidationReport{Valid: verdict.Valid, Errors: verdict.Errors}
	if !verdict.Valid {
		return nil, &types.ValidationError{
			Reason: fmt.Sprintf("generated code is not valid %s: %s",
				plan.Language, strings.Join(verdict.Errors, "; ")),
		}
	}

	paths := plan.TouchedPaths()

	// --- PREVIEW: diffs only, never writes
	if opts.DryRun {
		return a.preview(plan, paths, preReport)
	}

	// Serialize against other applies touching the same files
	release := a.locks.acquire(paths)
	defer release()

	// --- BACKUP
	var meta *types.BackupMetadata
	var memSnapshot map[string][]byte

	if opts.KeepBackup {
		meta, err = a.backups.Create(plan.GroupID, planSummary(plan), paths)
		if err != nil {
			return nil, err
		}
	} else {
		memSnapshot, err = snapshotFiles(a.projectRoot, paths)
		if err != nil {
			return nil, &types.BackupError{Path: a.projectRoot, Err: err}
		}
	}

	result := &types.ApplyResult{PreReports: []types.ValidationReport{preReport}}
	if meta != nil {
		result.BackupID = meta.BackupID
	}

	restore := func() error {
		if meta != nil {
			_, err := a.backups.Restore(meta.BackupID)
			return err
		}
		return restoreSnapshot(a.projectRoot, memSnapshot)
	}

	// --- APPLY: fail-fast; the first file error aborts remaining edits
	// and restores everything already written this apply
	applyErr := a.writeEdits(ctx, plan, paths, result)
	if applyErr != nil {
		if rbErr := restore(); rbErr != nil {
			result.Status = types.StatusFailed
			result.Error = rbErr.Error()
			return result, rbErr
		}
		result.Status = types.StatusRolledBack
		result.Error = applyErr.Error()
		return result, applyErr
	}

	// --- POST_VALIDATION: whole modified files, not just the snippet.
	// A caller-imposed cancellation landing here still rolls back rather
	// than abandoning the applied-but-unvalidated state.
	postReports, invalidPaths, postErr := a.postValidate(ctx, plan.Language, result)
	result.PostReports = postReports
	if postErr != nil || len(invalidPaths) > 0 {
		if rbErr := restore(); rbErr != nil {
			result.Status = types.StatusFailed
			result.Error = rbErr.Error()
			return result, rbErr
		}
		result.Status = types.StatusRolledBack
		if postErr != nil {
			result.Error = postErr.Error()
			return result, postErr
		}
		pvErr := &types.PostValidationError{BackupID: result.BackupID, Paths: invalidPaths}
		result.Error = pvErr.Error()
		return result, pvErr
	}

	// --- SUCCESS: the backup id stays valid for a later manual rollback
	result.Status = types.StatusSuccess
	return result, nil
}

// Rollback restores every file recorded in the backup to its snapshotted
// bytes. Distinct failure modes: missing/corrupt backup vs write failure,
// both *types.RollbackError.
func (a *Applicator) Rollback(ctx context.Context, backupID string) ([]string, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	meta, err := a.backups.Load(backupID)
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, f := range meta.Files {
		paths = append(paths, f.Path)
	}
	release := a.locks.acquire(paths)
	defer release()

	return a.backups.Restore(backupID)
}

// preview renders per-file unified diffs against current disk content.
func (a *Applicator) preview(plan *types.RefactoringPlan, paths []string, preReport types.ValidationReport) (*types.ApplyResult, error) {
	result := &types.ApplyResult{
		Status:     types.StatusPreview,
		Diffs:      make(map[string]string),
		PreReports: []types.ValidationReport{preReport},
	}

	for _, rel := range paths {
		current, exists, err := readIfExists(filepath.Join(a.projectRoot, rel))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", rel, err)
		}
		next, err := renderNewContent(current, exists, editsFor(plan, rel), importsFor(plan, rel))
		if err != nil {
			return nil, &types.ValidationError{Reason: fmt.Sprintf("edit for %s does not apply", rel), Err: err}
		}
		if diff := unifiedDiff(rel, current, next); diff != "" {
			result.Diffs[rel] = diff
		}
	}
	return result, nil
}

// writeEdits mutates the working tree per the plan, recording what it
// touched into result as it goes so a failure can be restored precisely.
func (a *Applicator) writeEdits(ctx context.Context, plan *types.RefactoringPlan, paths []string, result *types.ApplyResult) error {
	for _, rel := range paths {
		// Cancellation between files must roll back, not abandon
		select {
		case <-ctx.Done():
			return &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: ctx.Err()}
		default:
		}

		abs := filepath.Join(a.projectRoot, rel)
		current, exists, err := readIfExists(abs)
		if err != nil {
			return &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: err}
		}

		next, err := renderNewContent(current, exists, editsFor(plan, rel), importsFor(plan, rel))
		if err != nil {
			return &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: err}
		}

		if !exists {
			if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
				return &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: err}
			}
		}
		if err := os.WriteFile(abs, []byte(next), 0644); err != nil {
			return &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: err}
		}

		if exists {
			result.ModifiedFiles = append(result.ModifiedFiles, rel)
		} else {
			result.CreatedFiles = append(result.CreatedFiles, rel)
		}
	}
	return nil
}

// postValidate re-parses every touched file in full.
func (a *Applicator) postValidate(ctx context.Context, lang types.Language, result *types.ApplyResult) ([]types.ValidationReport, []string, error) {
	var reports []types.ValidationReport
	var invalid []string

	for _, rel := range append(append([]string(nil), result.ModifiedFiles...), result.CreatedFiles...) {
		data, err := os.ReadFile(filepath.Join(a.projectRoot, rel))
		if err != nil {
			return reports, invalid, &types.ApplyError{Path: rel, BackupID: result.BackupID, Err: err}
		}

		verdict, err := a.validator.Validate(ctx, string(data), lang)
		if err != nil {
			return reports, invalid, err
		}

		reports = append(reports, types.ValidationReport{
			Path:   rel,
			Valid:  verdict.Valid,
			Errors: verdict.Errors,
		})
		if !verdict.Valid {
			invalid = append(invalid, rel)
		}
	}
	return reports, invalid, nil
}

// editsFor selects the plan's edits targeting one path, preserving order.
func editsFor(plan *types.RefactoringPlan, rel string) []types.FileEdit {
	var out []types.FileEdit
	for _, e := range plan.Edits {
		if e.Path == rel {
			out = append(out, e)
		}
	}
	return out
}

// importsFor selects the plan's import edits targeting one path.
func importsFor(plan *types.RefactoringPlan, rel string) []types.ImportEdit {
	var out []types.ImportEdit
	for _, e := range plan.ImportEdits {
		if e.Path == rel {
			out = append(out, e)
		}
	}
	return out
}

// readIfExists reads a file, distinguishing absence from failure.
func readIfExists(abs string) (content string, exists bool, err error) {
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return string(data), true, nil
}

// snapshotFiles captures current bytes of every path for in-memory
// restore; missing files are recorded as nil so restore deletes them.
func snapshotFiles(projectRoot string, paths []string) (map[string][]byte, error) {
	snap := make(map[string][]byte, len(paths))
	for _, rel := range paths {
		data, err := os.ReadFile(filepath.Join(projectRoot, rel))
		if err != nil {
			if os.IsNotExist(err) {
				snap[rel] = nil
				continue
			}
			return nil, err
		}
		snap[rel] = data
	}
	return snap, nil
}

// restoreSnapshot writes an in-memory snapshot back to disk.
func restoreSnapshot(projectRoot string, snap map[string][]byte) error {
	for rel, data := range snap {
		abs := filepath.Join(projectRoot, rel)
		if data == nil {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				return err
			}
			continue
		}
		if err := os.WriteFile(abs, data, 0644); err != nil {
			return err
		}
	}
	return nil
}

// planSummary condenses a plan for backup metadata.
func planSummary(plan *types.RefactoringPlan) string {
	return fmt.Sprintf("%s %s %q touching %d file(s)",
		plan.Language, plan.Strategy, plan.Name, len(plan.TouchedPaths()))
}
