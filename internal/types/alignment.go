package types

import "fmt"

// VariationKind categorizes how instances in a group differ at one aligned
// segment.
type VariationKind string

const (
	// VariationLiteral: constant values differ (string, number, bool)
	VariationLiteral VariationKind = "literal"
	// VariationIdentifier: variable/function names differ
	VariationIdentifier VariationKind = "identifier"
	// VariationExpression: a sub-expression differs beyond a single token
	VariationExpression VariationKind = "expression"
	// VariationConditional: branch structure differs (complexity driver)
	VariationConditional VariationKind = "conditional"
	// VariationImport: import/require statements differ; tracked separately
	// for import-list reconciliation, never parameterized
	VariationImport VariationKind = "import"
)

// IsValid checks if the variation kind is valid
func (k VariationKind) IsValid() bool {
	switch k {
	case VariationLiteral, VariationIdentifier, VariationExpression,
		VariationConditional, VariationImport:
		return true
	}
	return false
}

// Severity grades how much a variation complicates extraction
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Segment is one aligned region across every instance of a group.
type Segment struct {
	// Same is true when all instances agree on this region
	Same bool `json:"same"`

	// Text is the shared content for same segments, and the reference
	// instance's content for differing ones
	Text string `json:"text"`

	// Values holds each instance's concrete content for differing
	// segments, indexed in group instance order. Empty for same segments.
	Values []string `json:"values,omitempty"`

	// Kind and Severity classify differing segments
	Kind     VariationKind `json:"kind,omitempty"`
	Severity Severity      `json:"severity,omitempty"`
}

// ParameterInfo describes one extracted parameter of the merged
// implementation. Owned by the refactoring plan once generated.
type ParameterInfo struct {
	// Name is the parameter name, reused from the source identifier when
	// the variation is identifier-shaped, positional otherwise
	Name string `json:"name"`

	// InferredType is the per-language type annotation ("str", "number",
	// "string", ...); empty for dynamically untyped targets
	InferredType string `json:"inferred_type,omitempty"`

	// Values holds the concrete per-instance value, in group instance order
	Values []string `json:"values"`
}

// AlignmentResult is the PatternAnalyzer's output for one group: the diff
// tree over aligned segments plus everything derived from it.
type AlignmentResult struct {
	GroupID string `json:"group_id"`

	// Segments in source order; concatenating the same-segments plus one
	// instance's differing values reproduces that instance's normalized text
	Segments []Segment `json:"segments"`

	// Parameters extracted from literal/identifier variations
	Parameters []ParameterInfo `json:"parameters"`

	// ImportDiffs holds per-instance import lines that differ, for later
	// import reconciliation at the call sites
	ImportDiffs []string `json:"import_diffs,omitempty"`

	// ConditionalCount is the number of conditional variations; any value
	// above zero flags the group as risky for automatic extraction
	ConditionalCount int `json:"conditional_count"`

	// NestingDepth is the maximum brace/indent nesting of the reference
	NestingDepth int `json:"nesting_depth"`

	// Complexity is the 0-10 extraction complexity score
	Complexity float64 `json:"complexity"`
}

// Blocked reports whether the group should not be auto-extracted.
// Conditional variations change control flow between instances, which the
// generator cannot parameterize safely.
func (a *AlignmentResult) Blocked() bool {
	return a.ConditionalCount > 0
}

// Validate checks structural consistency of the alignment
func (a *AlignmentResult) Validate() error {
	if a.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if a.Complexity < 0 || a.Complexity > 10 {
		return fmt.Errorf("complexity must be in [0,10] (got %f)", a.Complexity)
	}
	for n, seg := range a.Segments {
		if !seg.Same && !seg.Kind.IsValid() {
			return fmt.Errorf("segment %d: differing segment has invalid kind %q", n, seg.Kind)
		}
	}
	return nil
}
