package codegen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// goStrategy renders Go extractions. Definition files land in the first
// instance's package; cross-package call sites import it by the module
// path (resolved by the generator from go.mod).
type goStrategy struct{}

func (s *goStrategy) DefinitionFileName(name string) string {
	return toSnake(name) + ".go"
}

func (s *goStrategy) TypeName(neutral string) string {
	switch neutral {
	case "number":
		return "float64"
	case "string":
		return "string"
	case "bool":
		return "bool"
	}
	return "any"
}

func (s *goStrategy) RenderFunction(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	var sb strings.Builder
	sb.WriteString("func ")
	sb.WriteString(name)
	sb.WriteString("(")
	for n, p := range params {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		sb.WriteString(" ")
		sb.WriteString(s.TypeName(p.InferredType))
	}
	sb.WriteString(")")
	switch ret {
	case types.ReturnSingle:
		sb.WriteString(" any")
	case types.ReturnTuple:
		sb.WriteString(" (any, any)")
	}
	sb.WriteString(" {\n")
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("\t")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (s *goStrategy) RenderClass(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	// Go has no classes; the extract-class strategy becomes a struct with
	// a Run method
	typeName := toPascal(name)
	var sb strings.Builder
	sb.WriteString("type ")
	sb.WriteString(typeName)
	sb.WriteString(" struct{}\n\n")
	sb.WriteString("func (")
	sb.WriteString(strings.ToLower(typeName[:1]))
	sb.WriteString(" ")
	sb.WriteString(typeName)
	sb.WriteString(") Run(")
	for n, p := range params {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		sb.WriteString(" ")
		sb.WriteString(s.TypeName(p.InferredType))
	}
	sb.WriteString(")")
	switch ret {
	case types.ReturnSingle:
		sb.WriteString(" any")
	case types.ReturnTuple:
		sb.WriteString(" (any, any)")
	}
	sb.WriteString(" {\n")
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("\t")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (s *goStrategy) RenderCall(name string, args []string, strategy types.Strategy, ret types.ReturnShape) string {
	argList := strings.Join(args, ", ")
	if strategy == types.StrategyExtractClass {
		return fmt.Sprintf("%s{}.Run(%s)", toPascal(name), argList)
	}
	return fmt.Sprintf("%s(%s)", name, argList)
}

func (s *goStrategy) RenderDelegate(signatureLine, call string, ret types.ReturnShape) string {
	body := call
	if ret != types.ReturnNone {
		body = "return " + call
	}
	return signatureLine + "\n\t" + body + "\n}"
}

func (s *goStrategy) ImportStatement(defPath, callPath, name string) string {
	// Same package: no import. Cross-package: the generator substitutes
	// the module path; this fallback covers projects without a go.mod.
	if filepath.Dir(defPath) == filepath.Dir(callPath) {
		return ""
	}
	return fmt.Sprintf("import %q", filepath.ToSlash(filepath.Dir(defPath)))
}

func (s *goStrategy) SignatureLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "func ") || strings.HasPrefix(trimmed, "type ")
}
