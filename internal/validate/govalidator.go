package validate

import (
	"context"
	"go/parser"
	"go/scanner"
	"go/token"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// GoValidator checks Go syntax with the standard parser. Snippets without
// a package clause are validated as file bodies by wrapping them, so a
// generated function validates the same way a whole file does.
type GoValidator struct{}

// Validate implements Validator.
func (v *GoValidator) Validate(ctx context.Context, source string, lang types.Language) (Result, error) {
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	default:
	}

	src := source
	if !strings.Contains(src, "package ") {
		src = "package dedupcheck\n\n" + src
	}

	fset := token.NewFileSet()
	_, err := parser.ParseFile(fset, "dedupcheck.go", src, 0)
	if err == nil {
		return Result{Valid: true}, nil
	}

	result := Result{Valid: false}
	if list, ok := err.(scanner.ErrorList); ok {
		for _, e := range list {
			result.Errors = append(result.Errors, e.Error())
		}
	} else {
		result.Errors = append(result.Errors, err.Error())
	}
	return result, nil
}
