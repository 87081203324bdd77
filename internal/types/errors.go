package types

import "fmt"

// Error taxonomy for the refactoring pipeline. Every error is typed so
// callers can distinguish "nothing happened" (validation, backup) from
// "happened and was undone" (apply, post-validation) from "may need manual
// attention" (rollback). All wrap an underlying cause for errors.Is/As.

// ValidationError reports a malformed plan or invalid generated code.
// No side effects have occurred when this is returned.
type ValidationError struct {
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("validation failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("validation failed: %s", e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// BackupError reports a failure to create the backup. Fatal: the apply
// aborts before any mutation.
type BackupError struct {
	Path string
	Err  error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup failed for %s: %v", e.Path, e.Err)
}

func (e *BackupError) Unwrap() error { return e.Err }

// ApplyError reports a write failure mid-apply. The Applicator has already
// restored every file modified during this apply when it returns this.
type ApplyError struct {
	Path     string
	BackupID string
	Err      error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("apply failed at %s (backup %s): %v", e.Path, e.BackupID, e.Err)
}

func (e *ApplyError) Unwrap() error { return e.Err }

// PostValidationError reports that a modified file failed to parse after
// apply. The Applicator has already restored every touched file when it
// returns this; the accompanying result carries status rolled_back.
type PostValidationError struct {
	BackupID string
	Paths    []string
}

func (e *PostValidationError) Error() string {
	return fmt.Sprintf("post-validation failed for %d file(s), changes rolled back (backup %s)",
		len(e.Paths), e.BackupID)
}

// RollbackError reports that restoration itself failed: the backup is
// missing or its contents no longer match the recorded hashes. This is a
// potential data-loss condition and is never folded into other errors.
type RollbackError struct {
	BackupID string
	Path     string
	Err      error
}

func (e *RollbackError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("rollback of backup %s failed at %s: %v", e.BackupID, e.Path, e.Err)
	}
	return fmt.Sprintf("rollback of backup %s failed: %v", e.BackupID, e.Err)
}

func (e *RollbackError) Unwrap() error { return e.Err }

// CollaboratorError reports that an external collaborator (pattern matcher,
// syntax validator, coverage detector) is unavailable or misbehaving.
// Surfaced explicitly to the caller, never swallowed.
type CollaboratorError struct {
	// Collaborator names the failing boundary ("matcher", "validator",
	// "coverage")
	Collaborator string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s collaborator failed: %v", e.Collaborator, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }
