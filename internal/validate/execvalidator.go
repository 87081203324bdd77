package validate

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// PythonValidator compiles source with the system Python interpreter.
type PythonValidator struct {
	interpreters []string
}

// NewPythonValidator creates a Python validator that tries python3 then
// python.
func NewPythonValidator() *PythonValidator {
	return &PythonValidator{interpreters: []string{"python3", "python"}}
}

// Validate implements Validator.
func (v *PythonValidator) Validate(ctx context.Context, source string, lang types.Language) (Result, error) {
	bin, err := firstInPath(v.interpreters)
	if err != nil {
		return Result{}, &types.CollaboratorError{Collaborator: "validator", Err: err}
	}

	// compile() reports syntax errors without executing anything
	cmd := exec.CommandContext(ctx, bin, "-c",
		"import sys; compile(sys.stdin.read(), '<dedup>', 'exec')")
	cmd.Stdin = strings.NewReader(source)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			return Result{Valid: false, Errors: stderrLines(stderr.String())}, nil
		}
		return Result{}, &types.CollaboratorError{
			Collaborator: "validator",
			Err:          fmt.Errorf("running %s: %w", bin, err),
		}
	}
	return Result{Valid: true}, nil
}

// NodeValidator checks JavaScript/TypeScript syntax with `node --check`.
// TypeScript-only syntax that node rejects is reported as invalid; projects
// with richer TS needs register their own validator.
type NodeValidator struct{}

// NewNodeValidator creates a Node-based validator.
func NewNodeValidator() *NodeValidator { return &NodeValidator{} }

// Validate implements Validator.
func (v *NodeValidator) Validate(ctx context.Context, source string, lang types.Language) (Result, error) {
	bin, err := firstInPath([]string{"node"})
	if err != nil {
		return Result{}, &types.CollaboratorError{Collaborator: "validator", Err: err}
	}

	// node --check wants a file, not stdin
	tmp, err := os.CreateTemp("", "dedup-check-*"+lang.FileExtension())
	if err != nil {
		return Result{}, &types.CollaboratorError{
			Collaborator: "validator",
			Err:          fmt.Errorf("creating temp file: %w", err),
		}
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(source); err != nil {
		_ = tmp.Close()
		return Result{}, &types.CollaboratorError{
			Collaborator: "validator",
			Err:          fmt.Errorf("writing temp file: %w", err),
		}
	}
	_ = tmp.Close()

	cmd := exec.CommandContext(ctx, bin, "--check", tmp.Name())
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if _, ok := err.(*exec.ExitError); ok {
			errs := stderrLines(stderr.String())
			// Strip the temp path from messages
			for i := range errs {
				errs[i] = strings.ReplaceAll(errs[i], filepath.Dir(tmp.Name())+string(filepath.Separator), "")
			}
			return Result{Valid: false, Errors: errs}, nil
		}
		return Result{}, &types.CollaboratorError{
			Collaborator: "validator",
			Err:          fmt.Errorf("running node: %w", err),
		}
	}
	return Result{Valid: true}, nil
}

// firstInPath returns the first binary found in PATH.
func firstInPath(names []string) (string, error) {
	for _, name := range names {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("none of %v found in PATH", names)
}

// stderrLines splits interpreter stderr into non-empty lines.
func stderrLines(out string) []string {
	var lines []string
	for _, line := range strings.Split(out, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		lines = []string{"syntax check failed"}
	}
	return lines
}
