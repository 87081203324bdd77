package codegen

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// jsStrategy renders JavaScript extractions; with typed=true it emits
// TypeScript annotations and serves the TypeScript table entry.
type jsStrategy struct {
	typed bool
}

func (s *jsStrategy) DefinitionFileName(name string) string {
	if s.typed {
		return name + ".ts"
	}
	return name + ".js"
}

func (s *jsStrategy) TypeName(neutral string) string {
	if !s.typed {
		return ""
	}
	switch neutral {
	case "number":
		return "number"
	case "string":
		return "string"
	case "bool":
		return "boolean"
	}
	if neutral == "" {
		return "unknown"
	}
	return ""
}

func (s *jsStrategy) RenderFunction(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	var sb strings.Builder
	sb.WriteString("export function ")
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
	sb.WriteString(") {\n")
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("}\n")
	return sb.String()
}

func (s *jsStrategy) RenderClass(name string, params []types.ParameterInfo, body []string, ret types.ReturnShape) string {
	var sb strings.Builder
	sb.WriteString("export class ")
	sb.WriteString(toPascal(name))
	sb.WriteString(" {\n  run(")
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
	sb.WriteString(") {\n")
	for _, line := range body {
		if strings.TrimSpace(line) == "" {
			sb.WriteString("\n")
			continue
		}
		sb.WriteString("    ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	sb.WriteString("  }\n}\n")
	return sb.String()
}

func (s *jsStrategy) RenderCall(name string, args []string, strategy types.Strategy, ret types.ReturnShape) string {
	argList := strings.Join(args, ", ")
	if strategy == types.StrategyExtractClass {
		return fmt.Sprintf("new %s().run(%s)", toPascal(name), argList)
	}
	return fmt.Sprintf("%s(%s)", name, argList)
}

func (s *jsStrategy) RenderDelegate(signatureLine, call string, ret types.ReturnShape) string {
	body := call + ";"
	if ret != types.ReturnNone {
		body = "return " + call + ";"
	}
	return signatureLine + "\n  " + body + "\n}"
}

func (s *jsStrategy) ImportStatement(defPath, callPath, name string) string {
	rel, err := filepath.Rel(filepath.Dir(callPath), defPath)
	if err != nil {
		rel = defPath
	}
	rel = strings.TrimSuffix(filepath.ToSlash(rel), filepath.Ext(rel))
	if !strings.HasPrefix(rel, ".") {
		rel = "./" + rel
	}
	return fmt.Sprintf("import { %s } from %q;", name, rel)
}

func (s *jsStrategy) SignatureLine(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "function ") ||
		strings.HasPrefix(trimmed, "export function ") ||
		strings.HasPrefix(trimmed, "async function ") ||
		strings.HasPrefix(trimmed, "class ") ||
		strings.HasPrefix(trimmed, "export class ")
}
