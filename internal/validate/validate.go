// Package validate defines the syntax-validation collaborator boundary and
// the stock per-language validators. Validation runs twice per apply: on
// the generated snippet before anything touches disk, and on every whole
// modified file afterward.
package validate

import (
	"context"
	"fmt"

	"github.com/aledlie/dedup/internal/types"
)

// Result is the validator's verdict on one piece of source text.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator checks source text for syntax errors. An invalid-source
// verdict is a Result, not an error; the error return is reserved for the
// validator itself failing (missing interpreter, timeout).
type Validator interface {
	Validate(ctx context.Context, source string, lang types.Language) (Result, error)
}

// Registry dispatches validation per language through a table. Adding a
// language is a table entry, not a new branch.
type Registry struct {
	byLang map[types.Language]Validator
}

// NewRegistry creates a registry with the stock validators: the native Go
// parser for Go, interpreter checks for Python and JavaScript/TypeScript.
func NewRegistry() *Registry {
	return &Registry{
		byLang: map[types.Language]Validator{
			types.LangGo:         &GoValidator{},
			types.LangPython:     NewPythonValidator(),
			types.LangJavaScript: NewNodeValidator(),
			types.LangTypeScript: NewNodeValidator(),
		},
	}
}

// Register installs or replaces the validator for a language.
func (r *Registry) Register(lang types.Language, v Validator) {
	r.byLang[lang] = v
}

// Validate implements Validator by language dispatch. An unregistered
// language is a collaborator failure: the caller asked for a guarantee the
// registry cannot give.
func (r *Registry) Validate(ctx context.Context, source string, lang types.Language) (Result, error) {
	v, ok := r.byLang[lang]
	if !ok {
		return Result{}, &types.CollaboratorError{
			Collaborator: "validator",
			Err:          fmt.Errorf("no syntax validator registered for %s", lang),
		}
	}
	return v.Validate(ctx, source, lang)
}
