package types

import (
	"fmt"
	"time"
)

// Language identifies the target language of a scan or refactoring plan.
type Language string

const (
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
)

// IsValid checks if the language value is supported
func (l Language) IsValid() bool {
	switch l {
	case LangPython, LangJavaScript, LangTypeScript, LangGo:
		return true
	}
	return false
}

// FileExtension returns the canonical source extension for the language.
func (l Language) FileExtension() string {
	switch l {
	case LangPython:
		return ".py"
	case LangJavaScript:
		return ".js"
	case LangTypeScript:
		return ".ts"
	case LangGo:
		return ".go"
	}
	return ""
}

// ConstructKind categorizes the kind of code construct being scanned for
type ConstructKind string

const (
	ConstructFunction ConstructKind = "function"
	ConstructClass    ConstructKind = "class"
	ConstructMethod   ConstructKind = "method"
)

// IsValid checks if the construct kind is valid
func (k ConstructKind) IsValid() bool {
	switch k {
	case ConstructFunction, ConstructClass, ConstructMethod:
		return true
	}
	return false
}

// DuplicateInstance is one occurrence of a duplicated construct.
// Instances are immutable once created and scoped to a single scan.
type DuplicateInstance struct {
	// FilePath is relative to the project root
	FilePath string `json:"file_path"`

	// StartLine and EndLine are 1-indexed and inclusive
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`

	// Text is the raw construct source, exactly as read from disk
	Text string `json:"text"`

	// ContentHash is a fast fingerprint of the normalized text, used for
	// exact-duplicate short-circuiting and bucket lookups
	ContentHash string `json:"content_hash"`

	// AST is the matcher-provided node tree (JSON), empty when the matcher
	// only produced textual matches
	AST string `json:"ast,omitempty"`
}

// LineCount returns the number of source lines the instance spans.
func (i *DuplicateInstance) LineCount() int {
	if i.EndLine < i.StartLine {
		return 0
	}
	return i.EndLine - i.StartLine + 1
}

// Location formats the instance as path:start-end for display
func (i *DuplicateInstance) Location() string {
	return fmt.Sprintf("%s:%d-%d", i.FilePath, i.StartLine, i.EndLine)
}

// Validate checks if the instance has valid field values
func (i *DuplicateInstance) Validate() error {
	if i.FilePath == "" {
		return fmt.Errorf("file_path is required")
	}
	if i.StartLine < 1 {
		return fmt.Errorf("start_line must be >= 1 (got %d)", i.StartLine)
	}
	if i.EndLine < i.StartLine {
		return fmt.Errorf("end_line (%d) must be >= start_line (%d)", i.EndLine, i.StartLine)
	}
	if i.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// CloneType classifies how closely the instances in a group match
type CloneType string

const (
	// CloneIdentical: byte-identical after whitespace/comment normalization
	CloneIdentical CloneType = "identical"
	// CloneRenamed: same structure with different identifiers or literals
	CloneRenamed CloneType = "renamed"
	// CloneNearMiss: similar structure with small edits beyond renames
	CloneNearMiss CloneType = "near-miss"
)

// DuplicateGroup is a cluster of instances judged similar enough to merge
// into one parameterized implementation. Groups are scoped to one scan
// result; the ID is not persisted across scans.
type DuplicateGroup struct {
	// ID is unique within one scan result (e.g., "dup-001")
	ID string `json:"id"`

	// SimilarityScore is the minimum pairwise similarity observed within
	// the group, in [0,1]. The grouping is a transitive closure, so this
	// can be below the scan threshold only between non-adjacent members —
	// never below it for the edges that formed the group.
	SimilarityScore float64 `json:"similarity_score"`

	// CloneType summarizes the variation mix (identical/renamed/near-miss)
	CloneType CloneType `json:"clone_type"`

	// Instances is ordered by (file path, start line); always >= 2
	Instances []DuplicateInstance `json:"instances"`
}

// Validate checks if the group has valid field values
func (g *DuplicateGroup) Validate() error {
	if g.ID == "" {
		return fmt.Errorf("group id is required")
	}
	if g.SimilarityScore < 0 || g.SimilarityScore > 1 {
		return fmt.Errorf("similarity_score must be in [0,1] (got %f)", g.SimilarityScore)
	}
	if len(g.Instances) < 2 {
		return fmt.Errorf("group must have at least 2 instances (got %d)", len(g.Instances))
	}
	for n := range g.Instances {
		if err := g.Instances[n].Validate(); err != nil {
			return fmt.Errorf("instance %d: %w", n, err)
		}
	}
	return nil
}

// TotalLines returns the combined line count across all instances.
func (g *DuplicateGroup) TotalLines() int {
	total := 0
	for n := range g.Instances {
		total += g.Instances[n].LineCount()
	}
	return total
}

// LinesPerInstance returns the average instance size in lines.
func (g *DuplicateGroup) LinesPerInstance() int {
	if len(g.Instances) == 0 {
		return 0
	}
	return g.TotalLines() / len(g.Instances)
}

// ScanResult is the Detector's output for one scan call.
type ScanResult struct {
	ProjectRoot    string           `json:"project_root"`
	Language       Language         `json:"language"`
	ConstructKind  ConstructKind    `json:"construct_kind"`
	MinSimilarity  float64          `json:"min_similarity"`
	Groups         []DuplicateGroup `json:"groups"`
	ConstructCount int              `json:"construct_count"`
	Truncated      bool             `json:"truncated"` // MaxConstructs cap was hit
	ScannedAt      time.Time        `json:"scanned_at"`
	Duration       time.Duration    `json:"duration"`
}
