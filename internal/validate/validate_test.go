package validate

import (
	"context"
	"errors"
	"testing"

	"github.com/aledlie/dedup/internal/types"
)

func TestGoValidatorAcceptsSnippet(t *testing.T) {
	src := `func add(a, b int) int {
	return a + b
}`
	result, err := (&GoValidator{}).Validate(context.Background(), src, types.LangGo)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Errorf("valid snippet rejected: %v", result.Errors)
	}
}

func TestGoValidatorAcceptsWholeFile(t *testing.T) {
	src := `package billing

import "fmt"

func report(total float64) {
	fmt.Println(total)
}`
	result, err := (&GoValidator{}).Validate(context.Background(), src, types.LangGo)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Errorf("valid file rejected: %v", result.Errors)
	}
}

func TestGoValidatorRejectsBrokenSyntax(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unclosed brace", "func f() {\n\treturn 1\n"},
		{"stray token", "func f() int { return } }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := (&GoValidator{}).Validate(context.Background(), tt.src, types.LangGo)
			if err != nil {
				t.Fatalf("Validate: %v", err)
			}
			if result.Valid {
				t.Error("broken syntax accepted")
			}
			if len(result.Errors) == 0 {
				t.Error("invalid verdict must carry messages")
			}
		})
	}
}

func TestGoValidatorCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&GoValidator{}).Validate(ctx, "func f() {}", types.LangGo); err == nil {
		t.Error("expected context error")
	}
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry()
	result, err := r.Validate(context.Background(), "func f() {}", types.LangGo)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Errorf("expected valid, got %v", result.Errors)
	}
}

func TestRegistryUnregisteredLanguage(t *testing.T) {
	r := &Registry{byLang: map[types.Language]Validator{}}
	_, err := r.Validate(context.Background(), "x", types.LangPython)

	var collab *types.CollaboratorError
	if !errors.As(err, &collab) {
		t.Fatalf("expected *types.CollaboratorError, got %T", err)
	}
	if collab.Collaborator != "validator" {
		t.Errorf("collaborator = %q, want validator", collab.Collaborator)
	}
}

func TestRegistryRegisterOverrides(t *testing.T) {
	r := NewRegistry()
	r.Register(types.LangPython, &GoValidator{})
	// Go syntax now "validates" under the python key, proving the override
	result, err := r.Validate(context.Background(), "func f() {}", types.LangPython)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.Valid {
		t.Error("override not applied")
	}
}
