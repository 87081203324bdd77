package codegen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// pythonStrategy renders Python extractions.
type pythonStrategy struct{}

func (s *pythonStrategy) DefinitionFileName(name string) string {
	return name + ".py"
}

func (s *pythonStrategy) TypeName(neutral string) string {
	switch neutral {
	case "number":
		return "float"
	case "string":
		return "str"
	case "bool":
		return "bool"
	}
	return ""
}

func (s *pythonStrategy) RenderFunction(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	var sb strings.Builder
	sb.WriteString("def ")
	sb.WriteString(name)
	sb.WriteString("(")
	for n, p := range params {
		if n > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(p.Name)
		if t := s.TypeName(p.InferredType); t != "" {
			sb.WriteString(": ")
			sb.WriteString(t)
		}
	}
	sb.WriteString("):\n")
	if len(body) == 0 {
		sb.WriteString("    pass\n")
		return sb.String()
	}
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *pythonStrategy) RenderClass(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	method := s.RenderFunction("run", prependSelf(params), body, ret)
	var sb strings.Builder
	sb.WriteString("class ")
	sb.WriteString(toPascal(name))
	sb.WriteString(":\n")
	for _, line := range strings.Split(strings.TrimRight(method, "\n"), "\n") {
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func (s *pythonStrategy) RenderCall(name string, args []string, strategy types.Strategy, ret types.ReturnShape) string {
	argList := strings.Join(args, ", ")
	if strategy == types.StrategyExtractClass {
		return fmt.Sprintf("%s().run(%s)", toPascal(name), argList)
	}
	return fmt.Sprintf("%s(%s)", name, argList)
}

func (s *pythonStrategy) RenderDelegate(signatureLine, call string, ret types.ReturnShape) string {
	body := call
	if ret != types.ReturnNone {
		body = "return " + call
	}
	return signatureLine + "\n    " + body
}

func (s *pythonStrategy) ImportStatement(defPath, callPath, name string) string {
	module := strings.TrimSuffix(filepath.Base(defPath), ".py")
	return fmt.Sprintf("from %s import %s", module, name)
}

func (s *pythonStrategy) SignatureLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "def ") || strings.HasPrefix(trimmed, "class ") ||
		strings.HasPrefix(trimmed, "async def ")
}

// prependSelf adds the self receiver for method rendering.
func prependSelf(params []types.ParameterInfo) []types.ParameterInfo {
	out := make([]types.ParameterInfo, 0, len(params)+1)
	out = append(out, types.ParameterInfo{Name: "self"})
	return append(out, params...)
}
