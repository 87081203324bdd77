package codegen

import (
	"github.com/aledlie/dedup/internal/types"
)

// LanguageStrategy renders the per-language pieces of a refactoring plan.
// Generation dispatches through the strategy table below; adding a language
// means adding a table entry, never another branch.
type LanguageStrategy interface {
	// DefinitionFileName names the new file holding the extracted
	// definition, given the chosen function/class name
	DefinitionFileName(name string) string

	// RenderFunction renders the extracted function definition
	RenderFunction(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string

	// RenderClass renders the extract-class form: a class wrapping the
	// extracted logic as a single method
	RenderClass(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string

	// RenderCall renders one call expression with an instance's concrete
	// argument values
	RenderCall(name string, args []string, strategy types.Strategy, ret types.ReturnShape) string

	// RenderDelegate rewrites an instance as its original signature
	// delegating to the call expression
	RenderDelegate(signatureLine, call string, ret types.ReturnShape) string

	// TypeName maps a neutral inferred type ("number", "string", "bool",
	// "") to the language's annotation; empty means unannotated
	TypeName(neutral string) string

	// ImportStatement renders the import a call-site file needs to see the
	// definition, given both project-relative paths. Empty when no import
	// is needed (same scope).
	ImportStatement(defPath, callPath, name string) string

	// SignatureLine reports whether the first line of a construct is a
	// definition signature that a delegate should preserve
	SignatureLine(line string) bool
}

// strategies is the language dispatch table. TypeScript shares the
// JavaScript strategy with type annotations enabled.
var strategies = map[types.Language]LanguageStrategy{
	types.LangPython:     &pythonStrategy{},
	types.LangJavaScript: &jsStrategy{typed: false},
	types.LangTypeScript: &jsStrategy{typed: true},
	types.LangGo:         &goStrategy{},
}

// StrategyFor returns the language strategy, or nil when unsupported.
func StrategyFor(lang types.Language) LanguageStrategy {
	return strategies[lang]
}
