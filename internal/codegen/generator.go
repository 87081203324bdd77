// Package codegen synthesizes refactoring plans: the extracted definition,
// per-instance call-site replacements, and import reconciliation, rendered
// through a per-language strategy table.
package codegen

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/mod/modfile"

	"github.com/aledlie/dedup/internal/types"
	"github.com/aledlie/dedup/internal/validate"
)

// Options tune one generation call.
type Options struct {
	// Strategy defaults to extract-function
	Strategy types.Strategy

	// Name overrides the heuristically derived function/class name
	Name string
}

// SyntaxError reports that the generated definition failed validation,
// with the validator's messages and a suggested fix from the shared
// (language, error-kind) table. No plan is produced.
type SyntaxError struct {
	Language   types.Language
	Errors     []string
	Suggestion string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("generated %s code is invalid: %s (suggestion: %s)",
		e.Language, strings.Join(e.Errors, "; "), e.Suggestion)
}

// Generator builds refactoring plans from analyzed groups.
type Generator struct {
	validator validate.Validator
}

// New creates a Generator. The validator is required: plans with unchecked
// generated code defeat the pre-validation contract downstream.
func New(validator validate.Validator) (*Generator, error) {
	if validator == nil {
		return nil, fmt.Errorf("validator is required")
	}
	return &Generator{validator: validator}, nil
}

// Generate produces the refactoring plan for one analyzed group. Groups
// with conditional variations are refused: parameterizing diverging control
// flow changes behavior.
func (g *Generator) Generate(ctx context.Context, projectRoot string, group *types.DuplicateGroup, alignment *types.AlignmentResult, lang types.Language, opts Options) (*types.RefactoringPlan, error) {
	if err := group.Validate(); err != nil {
		return nil, &types.ValidationError{Reason: "invalid group", Err: err}
	}
	if alignment.Blocked() {
		return nil, &types.ValidationError{
			Reason: fmt.Sprintf("group %s has %d conditional variation(s); extraction would change control flow",
				group.ID, alignment.ConditionalCount),
		}
	}

	strategy := StrategyFor(lang)
	if strategy == nil {
		return nil, &types.ValidationError{Reason: fmt.Sprintf("unsupported language: %s", lang)}
	}

	planStrategy := opts.Strategy
	if planStrategy == "" {
		planStrategy = types.StrategyExtractFunction
	}
	if !planStrategy.IsValid() {
		return nil, &types.ValidationError{Reason: fmt.Sprintf("invalid strategy: %q", opts.Strategy)}
	}

	name := opts.Name
	if name == "" {
		name = deriveName(alignment, lang)
	}

	ret := inferReturnShape(group)
	body := buildBody(group, alignment, strategy)

	// Renderers map the neutral inferred types themselves; the plan records
	// the localized annotations
	var definition string
	if planStrategy == types.StrategyExtractClass {
		definition = strategy.RenderClass(name, alignment.Parameters, body, ret)
	} else {
		definition = strategy.RenderFunction(name, alignment.Parameters, body, ret)
	}
	params := localizeParameters(alignment.Parameters, strategy)

	// Validate the definition before it can reach a plan
	verdict, err := g.validator.Validate(ctx, definition, lang)
	if err != nil {
		return nil, err
	}
	if !verdict.Valid {
		return nil, &SyntaxError{
			Language:   lang,
			Errors:     verdict.Errors,
			Suggestion: suggestFix(lang, verdict.Errors),
		}
	}

	defDir := filepath.Dir(group.Instances[0].FilePath)
	defPath := filepath.Join(defDir, strategy.DefinitionFileName(name))
	defContent := definitionFileContent(definition, alignment, lang, defDir, projectRoot)

	plan := &types.RefactoringPlan{
		GroupID:       group.ID,
		Language:      lang,
		Strategy:      planStrategy,
		Name:          name,
		GeneratedCode: definition,
		Parameters:    params,
		ReturnShape:   ret,
		Edits: []types.FileEdit{
			// The definition lands before any call site references it
			{Op: types.EditCreate, Path: defPath, NewText: defContent},
		},
	}

	for n := range group.Instances {
		inst := &group.Instances[n]
		call := strategy.RenderCall(name, argumentsFor(params, n), planStrategy, ret)

		lines := strings.Split(inst.Text, "\n")
		newText := call
		if len(lines) > 0 && strategy.SignatureLine(lines[0]) {
			newText = strategy.RenderDelegate(lines[0], call, ret)
		}

		plan.Edits = append(plan.Edits, types.FileEdit{
			Op:        types.EditReplace,
			Path:      inst.FilePath,
			StartLine: inst.StartLine,
			EndLine:   inst.EndLine,
			NewText:   newText,
		})

		if stmt := importFor(strategy, lang, projectRoot, defPath, inst.FilePath, name); stmt != "" {
			plan.ImportEdits = append(plan.ImportEdits, types.ImportEdit{
				Path:      inst.FilePath,
				Statement: stmt,
			})
		}
	}

	return plan, nil
}

// localizeParameters maps neutral inferred types onto the target language.
func localizeParameters(params []types.ParameterInfo, strategy LanguageStrategy) []types.ParameterInfo {
	out := make([]types.ParameterInfo, len(params))
	for i, p := range params {
		out[i] = p
		out[i].InferredType = strategy.TypeName(p.InferredType)
	}
	return out
}

// argumentsFor returns each parameter's concrete value for instance n.
func argumentsFor(params []types.ParameterInfo, n int) []string {
	args := make([]string, len(params))
	for i, p := range params {
		if n < len(p.Values) {
			args[i] = strings.TrimSpace(p.Values[n])
		}
	}
	return args
}

// buildBody produces the extracted definition's body: the reference text
// minus its signature line, dedented, with each parameter's reference value
// substituted by the parameter name. Substitution is confined to the lines
// the alignment marked as differing: a varying value can also appear
// verbatim in a shared line, and rewriting it there would change what that
// line does for every other instance.
func buildBody(group *types.DuplicateGroup, alignment *types.AlignmentResult, strategy LanguageStrategy) []string {
	lines := strings.Split(group.Instances[0].Text, "\n")
	differs := differingLines(alignment, len(lines))

	if len(lines) > 0 && strategy.SignatureLine(lines[0]) {
		lines = lines[1:]
		differs = differs[1:]
		// A brace language's construct ends with the signature's closing
		// brace; drop it along with the signature it closes
		if n := len(lines) - 1; n >= 0 && strings.TrimSpace(lines[n]) == "}" {
			lines = lines[:n]
			differs = differs[:n]
		}
	}
	lines = dedent(lines)

	for i := range lines {
		if !differs[i] {
			continue
		}
		for _, p := range alignment.Parameters {
			if len(p.Values) == 0 {
				continue
			}
			lines[i] = substituteToken(lines[i], strings.TrimSpace(p.Values[0]), p.Name)
		}
	}
	return lines
}

// differingLines projects the alignment's segments onto the reference's
// line numbers. Segments concatenate to the reference text, so walking them
// in order recovers which lines vary. When the segments are absent or do
// not cover the reference, every line is treated as differing, which keeps
// substitution working for alignments built without segment detail.
func differingLines(alignment *types.AlignmentResult, lineCount int) []bool {
	differs := make([]bool, lineCount)

	covered := 0
	for _, seg := range alignment.Segments {
		n := len(strings.Split(seg.Text, "\n"))
		for i := covered; i < covered+n && i < lineCount; i++ {
			differs[i] = !seg.Same
		}
		covered += n
	}

	if covered != lineCount {
		for i := range differs {
			differs[i] = true
		}
	}
	return differs
}

// substituteToken replaces occurrences of value with name. Identifier and
// number tokens are replaced on word boundaries; anything else (strings,
// expressions) by exact match.
func substituteToken(body, value, name string) string {
	if value == "" || value == name {
		return body
	}
	if regexp.MustCompile(`^[A-Za-z0-9_.]+$`).MatchString(value) {
		re := regexp.MustCompile(`\b` + regexp.QuoteMeta(value) + `\b`)
		return re.ReplaceAllString(body, name)
	}
	return strings.ReplaceAll(body, value, name)
}

// dedent strips the common leading whitespace of non-empty lines.
func dedent(lines []string) []string {
	common := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		indent := len(line) - len(strings.TrimLeft(line, " \t"))
		if common < 0 || indent < common {
			common = indent
		}
	}
	if common <= 0 {
		return lines
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		if len(line) >= common {
			out[i] = line[common:]
		} else {
			out[i] = strings.TrimLeft(line, " \t")
		}
	}
	return out
}

// returnRe matches return statements with or without a value.
var returnRe = regexp.MustCompile(`(?m)^\s*return\b(.*)$`)

// inferReturnShape inspects the instances' return statements: none means
// the extraction returns nothing, one consistent value means a single
// return, several diverging values mean a tuple-like aggregate.
func inferReturnShape(group *types.DuplicateGroup) types.ReturnShape {
	maxReturns := 0
	distinct := make(map[string]bool)
	for n := range group.Instances {
		matches := returnRe.FindAllStringSubmatch(group.Instances[n].Text, -1)
		count := 0
		for _, m := range matches {
			expr := strings.TrimSpace(m[1])
			if expr == "" {
				continue
			}
			count++
			distinct[expr] = true
		}
		if count > maxReturns {
			maxReturns = count
		}
	}

	switch {
	case maxReturns == 0:
		return types.ReturnNone
	case maxReturns == 1 || len(distinct) == 1:
		return types.ReturnSingle
	default:
		return types.ReturnTuple
	}
}

// definitionFileContent wraps the rendered definition into a complete new
// file: package/import header plus the union of the group's import
// differences, so the extracted body still sees everything it referenced.
func definitionFileContent(definition string, alignment *types.AlignmentResult, lang types.Language, defDir, projectRoot string) string {
	var sb strings.Builder

	if lang == types.LangGo {
		pkg := filepath.Base(defDir)
		if pkg == "." || pkg == "/" {
			pkg = "main"
		}
		sb.WriteString("package ")
		sb.WriteString(sanitizeIdentifier(pkg))
		sb.WriteString("\n\n")
	}

	for _, imp := range alignment.ImportDiffs {
		sb.WriteString(imp)
		sb.WriteString("\n")
	}
	if len(alignment.ImportDiffs) > 0 {
		sb.WriteString("\n")
	}

	sb.WriteString(definition)
	if !strings.HasSuffix(definition, "\n") {
		sb.WriteString("\n")
	}
	return sb.String()
}

// importFor renders the call-site import for the definition, resolving Go
// cross-package imports through the project's go.mod module path.
func importFor(strategy LanguageStrategy, lang types.Language, projectRoot, defPath, callPath, name string) string {
	if filepath.Dir(defPath) == filepath.Dir(callPath) && lang != types.LangPython {
		return ""
	}

	if lang == types.LangGo {
		if modPath := modulePath(projectRoot); modPath != "" {
			dir := filepath.ToSlash(filepath.Dir(defPath))
			if dir == "." {
				return fmt.Sprintf("import %q", modPath)
			}
			return fmt.Sprintf("import %q", modPath+"/"+dir)
		}
	}

	return strategy.ImportStatement(defPath, callPath, name)
}

// modulePath reads the module path from the project's go.mod, if any.
func modulePath(projectRoot string) string {
	data, err := os.ReadFile(filepath.Join(projectRoot, "go.mod"))
	if err != nil {
		return ""
	}
	return modfile.ModulePath(data)
}

// sanitizeIdentifier strips characters that cannot appear in a package
// identifier.
func sanitizeIdentifier(s string) string {
	var sb strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '_' ||
			(sb.Len() > 0 && r >= '0' && r <= '9') {
			sb.WriteRune(r)
		}
	}
	if sb.Len() == 0 {
		return "extracted"
	}
	return sb.String()
}
