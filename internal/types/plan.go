package types

import (
	"fmt"
	"time"
)

// Strategy selects how the duplicated logic is merged
type Strategy string

const (
	StrategyExtractFunction Strategy = "extract_function"
	StrategyExtractClass    Strategy = "extract_class"
)

// IsValid checks if the strategy is valid
func (s Strategy) IsValid() bool {
	return s == StrategyExtractFunction || s == StrategyExtractClass
}

// ReturnShape describes what the extracted definition returns
type ReturnShape string

const (
	// ReturnNone: instances produce no value
	ReturnNone ReturnShape = "none"
	// ReturnSingle: instances produce one value
	ReturnSingle ReturnShape = "single"
	// ReturnTuple: instances produce several diverging values, aggregated
	// into a tuple-like result
	ReturnTuple ReturnShape = "tuple"
)

// EditOp is the kind of file operation in a plan's edit list
type EditOp string

const (
	// EditReplace rewrites a line range of an existing file
	EditReplace EditOp = "replace"
	// EditCreate writes a new file (with directory scaffolding)
	EditCreate EditOp = "create"
)

// FileEdit is one file operation the Applicator performs.
type FileEdit struct {
	// Op is replace or create
	Op EditOp `json:"op"`

	// Path is relative to the project root
	Path string `json:"path"`

	// StartLine/EndLine bound the replaced range (1-indexed, inclusive)
	// for replace edits; zero for create edits
	StartLine int `json:"start_line,omitempty"`
	EndLine   int `json:"end_line,omitempty"`

	// NewText is the replacement content or the created file's content
	NewText string `json:"new_text"`
}

// Validate checks if the edit has valid field values
func (e *FileEdit) Validate() error {
	if e.Path == "" {
		return fmt.Errorf("path is required")
	}
	switch e.Op {
	case EditReplace:
		if e.StartLine < 1 {
			return fmt.Errorf("replace edit start_line must be >= 1 (got %d)", e.StartLine)
		}
		if e.EndLine < e.StartLine {
			return fmt.Errorf("replace edit end_line (%d) must be >= start_line (%d)",
				e.EndLine, e.StartLine)
		}
	case EditCreate:
		if e.NewText == "" {
			return fmt.Errorf("create edit requires new_text")
		}
	default:
		return fmt.Errorf("invalid edit op: %q", e.Op)
	}
	return nil
}

// ImportEdit records an import line to add or remove at one file.
type ImportEdit struct {
	Path      string `json:"path"`
	Statement string `json:"statement"`
	Remove    bool   `json:"remove,omitempty"`
}

// RefactoringPlan is the CodeGenerator's complete output for one group:
// the merged definition plus the exact file edits that apply it. Plans are
// constructed once, consumed once by the Applicator, and never mutated.
type RefactoringPlan struct {
	GroupID  string   `json:"group_id"`
	Language Language `json:"language"`
	Strategy Strategy `json:"strategy"`

	// Name of the extracted function or class
	Name string `json:"name"`

	// GeneratedCode is the full extracted definition
	GeneratedCode string `json:"generated_code"`

	// Parameters in signature order
	Parameters []ParameterInfo `json:"parameters"`

	ReturnShape ReturnShape `json:"return_shape"`

	// Edits in application order; create edits precede replaces so call
	// sites never reference a definition that does not exist yet
	Edits []FileEdit `json:"edits"`

	// ImportEdits reconcile imports at the definition site and call sites
	ImportEdits []ImportEdit `json:"import_edits,omitempty"`
}

// Validate checks the plan is structurally complete. Deliberately does not
// touch the filesystem: file existence is resolved during apply, not here.
func (p *RefactoringPlan) Validate() error {
	if p.GroupID == "" {
		return fmt.Errorf("group_id is required")
	}
	if !p.Language.IsValid() {
		return fmt.Errorf("invalid language: %q", p.Language)
	}
	if !p.Strategy.IsValid() {
		return fmt.Errorf("invalid strategy: %q", p.Strategy)
	}
	if p.GeneratedCode == "" {
		return fmt.Errorf("generated_code is required")
	}
	if len(p.Edits) == 0 {
		return fmt.Errorf("edit list is empty")
	}
	for n := range p.Edits {
		if err := p.Edits[n].Validate(); err != nil {
			return fmt.Errorf("edit %d: %w", n, err)
		}
	}
	return nil
}

// TouchedPaths returns the distinct relative paths the plan writes to,
// in first-seen order.
func (p *RefactoringPlan) TouchedPaths() []string {
	seen := make(map[string]bool, len(p.Edits))
	var paths []string
	for n := range p.Edits {
		if !seen[p.Edits[n].Path] {
			seen[p.Edits[n].Path] = true
			paths = append(paths, p.Edits[n].Path)
		}
	}
	return paths
}

// ApplyStatus is the terminal state of one Applicator invocation
type ApplyStatus string

const (
	StatusPreview    ApplyStatus = "preview"
	StatusSuccess    ApplyStatus = "success"
	StatusRolledBack ApplyStatus = "rolled_back"
	StatusFailed     ApplyStatus = "failed"
)

// ValidationReport is the syntax validator's verdict for one file or snippet.
type ValidationReport struct {
	Path   string   `json:"path,omitempty"`
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// ApplyResult is returned from every Applicator invocation, terminal or not.
// BackupID is always populated once a backup exists, even on error paths,
// so the caller can verify or retry rollback manually.
type ApplyResult struct {
	Status        ApplyStatus        `json:"status"`
	BackupID      string             `json:"backup_id,omitempty"`
	ModifiedFiles []string           `json:"modified_files,omitempty"`
	CreatedFiles  []string           `json:"created_files,omitempty"`
	Diffs         map[string]string  `json:"diffs,omitempty"` // path -> unified diff (preview only)
	PreReports    []ValidationReport `json:"pre_validation,omitempty"`
	PostReports   []ValidationReport `json:"post_validation,omitempty"`
	Error         string             `json:"error,omitempty"`
}

// BackupFile records one original file captured in a backup.
type BackupFile struct {
	// Path is relative to the project root
	Path string `json:"path"`

	// Hash is the SHA-256 of the original bytes
	Hash string `json:"hash"`
}

// BackupMetadata describes one backup snapshot. Written to the backup
// directory before any mutation; rollback trusts this file, not the
// registry.
type BackupMetadata struct {
	BackupID    string       `json:"backup_id"`
	CreatedAt   time.Time    `json:"created_at"`
	GroupID     string       `json:"duplicate_group_id"`
	Files       []BackupFile `json:"files"`
	PlanSummary string       `json:"plan_summary,omitempty"`
}

// Validate checks if the metadata has valid field values
func (m *BackupMetadata) Validate() error {
	if m.BackupID == "" {
		return fmt.Errorf("backup_id is required")
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("backup must record at least one file")
	}
	for n, f := range m.Files {
		// Hash may be empty: that marks a file the plan created, which
		// rollback removes rather than restores
		if f.Path == "" {
			return fmt.Errorf("file %d: path is required", n)
		}
	}
	return nil
}
