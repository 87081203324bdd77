// Package align implements pattern analysis for duplicate groups: aligning
// instances against a reference, classifying how they vary, extracting
// candidate parameters, and scoring extraction complexity.
package align

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/aledlie/dedup/internal/config"
	"github.com/aledlie/dedup/internal/types"
)

// Weights are the complexity-score coefficients. Tuned defaults, not
// contracts; see config.DefaultConfig.
type Weights struct {
	Parameters   float64
	Imports      float64
	Conditionals float64
	Nesting      float64
	Lines        float64 // applied per 10 lines
}

// FromEngineConfig projects the engine-wide config onto analysis weights.
func FromEngineConfig(c config.Config) Weights {
	return Weights{
		Parameters:   c.WeightParameters,
		Imports:      c.WeightImports,
		Conditionals: c.WeightConditionals,
		Nesting:      c.WeightNesting,
		Lines:        c.WeightLines,
	}
}

// Analyzer aligns the instances of a duplicate group and derives the
// parameters a merged implementation would need. Analyzers are stateless;
// groups can be analyzed concurrently.
type Analyzer struct {
	weights Weights
}

// New creates an Analyzer with the given complexity weights.
func New(weights Weights) *Analyzer {
	return &Analyzer{weights: weights}
}

// Analyze builds the alignment result for one group. The first instance is
// the reference; every other instance is aligned to it. Matcher-provided
// AST metavariables sharpen parameter naming when present; the segment
// structure itself always comes from line alignment, which is the shape the
// generator consumes.
func (a *Analyzer) Analyze(group *types.DuplicateGroup) (*types.AlignmentResult, error) {
	if err := group.Validate(); err != nil {
		return nil, fmt.Errorf("invalid group: %w", err)
	}

	ref := &group.Instances[0]
	refRaw := strings.Split(ref.Text, "\n")
	refCmp := trimmedLines(refRaw)

	// Pairwise alignment of every non-reference instance
	alignments := make([]lineAlignment, len(group.Instances)-1)
	for n := 1; n < len(group.Instances); n++ {
		instCmp := trimmedLines(strings.Split(group.Instances[n].Text, "\n"))
		alignments[n-1] = alignLines(refCmp, instCmp)
	}

	result := &types.AlignmentResult{
		GroupID:      group.ID,
		NestingDepth: nestingDepth(refRaw),
	}

	a.buildSegments(result, group, refRaw, refCmp, alignments)
	a.extractParameters(result, group)
	a.applyASTNames(result, group)

	result.Complexity = a.complexity(result, len(refRaw))
	return result, nil
}

// buildSegments merges the pairwise alignments into ordered same/different
// segments over the reference's lines.
func (a *Analyzer) buildSegments(result *types.AlignmentResult, group *types.DuplicateGroup, refRaw, refCmp []string, alignments []lineAlignment) {
	sameAt := make([]bool, len(refCmp))
	for i := range refCmp {
		sameAt[i] = true
		for _, al := range alignments {
			if i >= len(al.matched) || !al.matched[i] {
				sameAt[i] = false
				break
			}
		}
	}

	for lo := 0; lo < len(refCmp); {
		hi := lo
		for hi < len(refCmp) && sameAt[hi] == sameAt[lo] {
			hi++
		}

		text := strings.Join(refRaw[lo:hi], "\n")
		if sameAt[lo] {
			result.Segments = append(result.Segments, types.Segment{Same: true, Text: text})
		} else {
			// Values in group instance order; the reference's own value
			// comes first
			values := make([]string, len(group.Instances))
			values[0] = strings.Join(refCmp[lo:hi], "\n")
			for n, al := range alignments {
				var lines []string
				for i := lo; i < hi && i < len(al.replacement); i++ {
					lines = append(lines, al.replacement[i]...)
				}
				values[n+1] = strings.Join(lines, "\n")
			}

			kind, severity := classifySegment(values[0], values[1:])
			seg := types.Segment{
				Same:     false,
				Text:     text,
				Values:   values,
				Kind:     kind,
				Severity: severity,
			}
			result.Segments = append(result.Segments, seg)

			switch kind {
			case types.VariationConditional:
				result.ConditionalCount++
			case types.VariationImport:
				result.ImportDiffs = append(result.ImportDiffs, distinctNonEmpty(values)...)
			}
		}
		lo = hi
	}
}

// extractParameters turns literal/identifier/expression segments into
// candidate parameters. Identifier-shaped diffs reuse the reference's
// token as the name; everything else gets a positional name.
func (a *Analyzer) extractParameters(result *types.AlignmentResult, group *types.DuplicateGroup) {
	used := make(map[string]bool)
	positional := 0

	nextPositional := func() string {
		for {
			positional++
			name := fmt.Sprintf("param%d", positional)
			if !used[name] {
				return name
			}
		}
	}

	claim := func(name string) string {
		if name == "" || used[name] || !identifierRe.MatchString(name) {
			name = nextPositional()
		}
		used[name] = true
		return name
	}

	for _, seg := range result.Segments {
		if seg.Same {
			continue
		}
		switch seg.Kind {
		case types.VariationLiteral, types.VariationIdentifier:
			refTokens := tokenize(seg.Values[0])
			instTokens := make([][]string, len(seg.Values)-1)
			comparable := true
			for n, v := range seg.Values[1:] {
				instTokens[n] = tokenize(v)
				if len(instTokens[n]) != len(refTokens) {
					comparable = false
					break
				}
			}
			if !comparable {
				// classify already vetted shape; be defensive anyway and
				// fall through to a whole-segment parameter
				result.Parameters = append(result.Parameters, types.ParameterInfo{
					Name:         claim(""),
					InferredType: inferTypeFromValues(seg.Values),
					Values:       seg.Values,
				})
				continue
			}

			for col := range refTokens {
				differs := false
				for n := range instTokens {
					if instTokens[n][col] != refTokens[col] {
						differs = true
						break
					}
				}
				if !differs {
					continue
				}

				values := make([]string, len(seg.Values))
				values[0] = refTokens[col]
				for n := range instTokens {
					values[n+1] = instTokens[n][col]
				}

				name := ""
				if seg.Kind == types.VariationIdentifier && identifierRe.MatchString(refTokens[col]) {
					name = refTokens[col]
				}
				result.Parameters = append(result.Parameters, types.ParameterInfo{
					Name:         claim(name),
					InferredType: inferTypeFromValues(values),
					Values:       values,
				})
			}

		case types.VariationExpression:
			result.Parameters = append(result.Parameters, types.ParameterInfo{
				Name:         claim(""),
				InferredType: inferTypeFromValues(seg.Values),
				Values:       seg.Values,
			})
		}
	}
}

// applyASTNames renames positional parameters after matcher metavariables
// whose per-instance values coincide with the parameter's values.
func (a *Analyzer) applyASTNames(result *types.AlignmentResult, group *types.DuplicateGroup) {
	vars := metaVariables(group)
	if len(vars) == 0 {
		return
	}

	used := make(map[string]bool)
	for i := range result.Parameters {
		used[result.Parameters[i].Name] = true
	}

	for i := range result.Parameters {
		p := &result.Parameters[i]
		if !strings.HasPrefix(p.Name, "param") {
			continue
		}
		for name, values := range vars {
			lower := strings.ToLower(name)
			if used[lower] || !sameValues(p.Values, values) {
				continue
			}
			delete(used, p.Name)
			p.Name = lower
			used[lower] = true
			break
		}
	}
}

// metaVariables collects matcher AST metavariables present on every
// instance, keyed by variable name with per-instance values.
func metaVariables(group *types.DuplicateGroup) map[string][]string {
	for n := range group.Instances {
		if group.Instances[n].AST == "" {
			return nil
		}
	}

	vars := make(map[string][]string)
	first := gjson.Get(group.Instances[0].AST, "single")
	if !first.Exists() {
		return nil
	}

	var names []string
	first.ForEach(func(key, _ gjson.Result) bool {
		names = append(names, key.String())
		return true
	})
	sort.Strings(names)

	for _, name := range names {
		values := make([]string, len(group.Instances))
		complete := true
		for n := range group.Instances {
			v := gjson.Get(group.Instances[n].AST, "single."+name+".text")
			if !v.Exists() {
				complete = false
				break
			}
			values[n] = v.String()
		}
		if complete {
			vars[name] = values
		}
	}
	return vars
}

// complexity computes the 0-10 extraction complexity score.
func (a *Analyzer) complexity(result *types.AlignmentResult, lineCount int) float64 {
	score := float64(len(result.Parameters))*a.weights.Parameters +
		float64(len(result.ImportDiffs))*a.weights.Imports +
		float64(result.ConditionalCount)*a.weights.Conditionals +
		float64(result.NestingDepth)*a.weights.Nesting +
		float64(lineCount)/10.0*a.weights.Lines

	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}

// nestingDepth estimates the maximum nesting of the reference from
// indentation (tabs count as one level, four spaces as one level).
func nestingDepth(lines []string) int {
	maxDepth := 0
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		depth := 0
		spaces := 0
		for _, r := range line {
			if r == '\t' {
				depth++
			} else if r == ' ' {
				spaces++
				if spaces == 4 {
					depth++
					spaces = 0
				}
			} else {
				break
			}
		}
		if depth > maxDepth {
			maxDepth = depth
		}
	}
	return maxDepth
}

// trimmedLines trims surrounding whitespace per line so indentation shifts
// do not break alignment.
func trimmedLines(lines []string) []string {
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = strings.TrimSpace(line)
	}
	return out
}

// sameValues reports element-wise equality after whitespace trimming.
func sameValues(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if strings.TrimSpace(a[i]) != strings.TrimSpace(b[i]) {
			return false
		}
	}
	return true
}

// distinctNonEmpty returns the distinct non-empty strings, preserving order.
func distinctNonEmpty(values []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, v := range values {
		for _, line := range strings.Split(v, "\n") {
			line = strings.TrimSpace(line)
			if line == "" || seen[line] {
				continue
			}
			seen[line] = true
			out = append(out, line)
		}
	}
	return out
}
