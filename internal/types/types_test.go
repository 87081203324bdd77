package types

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validInstance() DuplicateInstance {
	return DuplicateInstance{
		FilePath:  "src/app.py",
		StartLine: 10,
		EndLine:   14,
		Text:      "def greet():\n    pass",
	}
}

func validGroup() DuplicateGroup {
	a := validInstance()
	b := validInstance()
	b.FilePath = "src/other.py"
	return DuplicateGroup{
		ID:              "dup-001",
		SimilarityScore: 0.95,
		CloneType:       CloneRenamed,
		Instances:       []DuplicateInstance{a, b},
	}
}

func TestInstanceValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DuplicateInstance)
		wantErr bool
	}{
		{"valid", func(*DuplicateInstance) {}, false},
		{"missing path", func(i *DuplicateInstance) { i.FilePath = "" }, true},
		{"zero start line", func(i *DuplicateInstance) { i.StartLine = 0 }, true},
		{"end before start", func(i *DuplicateInstance) { i.EndLine = i.StartLine - 1 }, true},
		{"empty text", func(i *DuplicateInstance) { i.Text = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst := validInstance()
			tt.mutate(&inst)
			err := inst.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestInstanceLineCount(t *testing.T) {
	inst := validInstance()
	if got := inst.LineCount(); got != 5 {
		t.Errorf("LineCount() = %d, want 5", got)
	}
	inst.EndLine = inst.StartLine
	if got := inst.LineCount(); got != 1 {
		t.Errorf("single-line LineCount() = %d, want 1", got)
	}
	inst.EndLine = 0
	if got := inst.LineCount(); got != 0 {
		t.Errorf("inverted range LineCount() = %d, want 0", got)
	}
}

func TestInstanceLocation(t *testing.T) {
	inst := validInstance()
	if got := inst.Location(); got != "src/app.py:10-14" {
		t.Errorf("Location() = %q", got)
	}
}

func TestGroupValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*DuplicateGroup)
		wantErr bool
	}{
		{"valid", func(*DuplicateGroup) {}, false},
		{"missing id", func(g *DuplicateGroup) { g.ID = "" }, true},
		{"score above 1", func(g *DuplicateGroup) { g.SimilarityScore = 1.1 }, true},
		{"negative score", func(g *DuplicateGroup) { g.SimilarityScore = -0.1 }, true},
		{"single instance", func(g *DuplicateGroup) { g.Instances = g.Instances[:1] }, true},
		{"bad instance", func(g *DuplicateGroup) { g.Instances[1].Text = "" }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGroup()
			tt.mutate(&g)
			err := g.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestGroupLineArithmetic(t *testing.T) {
	g := validGroup()
	if got := g.TotalLines(); got != 10 {
		t.Errorf("TotalLines() = %d, want 10", got)
	}
	if got := g.LinesPerInstance(); got != 5 {
		t.Errorf("LinesPerInstance() = %d, want 5", got)
	}

	empty := DuplicateGroup{}
	if got := empty.LinesPerInstance(); got != 0 {
		t.Errorf("empty group LinesPerInstance() = %d, want 0", got)
	}
}

func validPlan() RefactoringPlan {
	return RefactoringPlan{
		GroupID:       "dup-001",
		Language:      LangPython,
		Strategy:      StrategyExtractFunction,
		Name:          "emit_greeting",
		GeneratedCode: "def emit_greeting():\n    pass",
		ReturnShape:   ReturnNone,
		Edits: []FileEdit{
			{Op: EditCreate, Path: "shared.py", NewText: "def emit_greeting():\n    pass"},
			{Op: EditReplace, Path: "a.py", StartLine: 1, EndLine: 4, NewText: "emit_greeting()"},
			{Op: EditReplace, Path: "b.py", StartLine: 1, EndLine: 4, NewText: "emit_greeting()"},
		},
	}
}

func TestPlanValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RefactoringPlan)
		wantErr bool
	}{
		{"valid", func(*RefactoringPlan) {}, false},
		{"missing group", func(p *RefactoringPlan) { p.GroupID = "" }, true},
		{"bad language", func(p *RefactoringPlan) { p.Language = "ruby" }, true},
		{"bad strategy", func(p *RefactoringPlan) { p.Strategy = "inline" }, true},
		{"no generated code", func(p *RefactoringPlan) { p.GeneratedCode = "" }, true},
		{"no edits", func(p *RefactoringPlan) { p.Edits = nil }, true},
		{"bad edit", func(p *RefactoringPlan) { p.Edits[1].StartLine = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validPlan()
			tt.mutate(&p)
			err := p.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFileEditValidate(t *testing.T) {
	tests := []struct {
		name    string
		edit    FileEdit
		wantErr bool
	}{
		{"valid replace", FileEdit{Op: EditReplace, Path: "a.py", StartLine: 1, EndLine: 4, NewText: "x"}, false},
		{"valid create", FileEdit{Op: EditCreate, Path: "new.py", NewText: "x"}, false},
		{"missing path", FileEdit{Op: EditCreate, NewText: "x"}, true},
		{"replace without range", FileEdit{Op: EditReplace, Path: "a.py", NewText: "x"}, true},
		{"replace inverted range", FileEdit{Op: EditReplace, Path: "a.py", StartLine: 5, EndLine: 3}, true},
		{"create without content", FileEdit{Op: EditCreate, Path: "new.py"}, true},
		{"unknown op", FileEdit{Op: "append", Path: "a.py", NewText: "x"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.edit.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestPlanTouchedPaths(t *testing.T) {
	p := validPlan()
	p.Edits = append(p.Edits, FileEdit{Op: EditReplace, Path: "a.py", StartLine: 9, EndLine: 9, NewText: "y"})

	got := p.TouchedPaths()
	want := []string{"shared.py", "a.py", "b.py"}
	if len(got) != len(want) {
		t.Fatalf("TouchedPaths() = %v, want %v", got, want)
	}
	for n := range want {
		if got[n] != want[n] {
			t.Errorf("TouchedPaths()[%d] = %q, want %q", n, got[n], want[n])
		}
	}
}

func TestBackupMetadataValidate(t *testing.T) {
	meta := BackupMetadata{
		BackupID: "bk-1",
		Files: []BackupFile{
			{Path: "a.py", Hash: "abc"},
			{Path: "shared.py"}, // created by the plan, no original bytes
		},
	}
	if err := meta.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	meta.BackupID = ""
	if meta.Validate() == nil {
		t.Error("missing backup_id accepted")
	}

	meta.BackupID = "bk-1"
	meta.Files = nil
	if meta.Validate() == nil {
		t.Error("empty file list accepted")
	}

	meta.Files = []BackupFile{{Hash: "abc"}}
	if meta.Validate() == nil {
		t.Error("file without path accepted")
	}
}

func TestAlignmentValidate(t *testing.T) {
	a := AlignmentResult{
		GroupID: "dup-001",
		Segments: []Segment{
			{Same: true, Text: "def greet():"},
			{Same: false, Text: `"hello"`, Kind: VariationLiteral, Severity: SeverityLow},
		},
		Complexity: 2.5,
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	a.Complexity = 11
	if a.Validate() == nil {
		t.Error("out-of-range complexity accepted")
	}

	a.Complexity = 2.5
	a.Segments[1].Kind = ""
	if a.Validate() == nil {
		t.Error("differing segment without kind accepted")
	}
}

func TestAlignmentBlocked(t *testing.T) {
	a := AlignmentResult{GroupID: "dup-001"}
	if a.Blocked() {
		t.Error("no conditional variations should not block")
	}
	a.ConditionalCount = 1
	if !a.Blocked() {
		t.Error("conditional variation must block")
	}
}

func TestEnumValidity(t *testing.T) {
	for _, lang := range []Language{LangPython, LangJavaScript, LangTypeScript, LangGo} {
		if !lang.IsValid() {
			t.Errorf("%s should be valid", lang)
		}
	}
	if Language("ruby").IsValid() {
		t.Error("unknown language accepted")
	}

	for _, kind := range []ConstructKind{ConstructFunction, ConstructClass, ConstructMethod} {
		if !kind.IsValid() {
			t.Errorf("%s should be valid", kind)
		}
	}
	if ConstructKind("module").IsValid() {
		t.Error("unknown construct kind accepted")
	}

	if !StrategyExtractFunction.IsValid() || !StrategyExtractClass.IsValid() {
		t.Error("stock strategies should be valid")
	}
	if Strategy("inline").IsValid() {
		t.Error("unknown strategy accepted")
	}
}

func TestLanguageFileExtension(t *testing.T) {
	tests := []struct {
		lang Language
		want string
	}{
		{LangPython, ".py"},
		{LangJavaScript, ".js"},
		{LangTypeScript, ".ts"},
		{LangGo, ".go"},
		{Language("ruby"), ""},
	}
	for _, tt := range tests {
		if got := tt.lang.FileExtension(); got != tt.want {
			t.Errorf("%s.FileExtension() = %q, want %q", tt.lang, got, tt.want)
		}
	}
}

func TestErrorUnwrapChains(t *testing.T) {
	cause := fmt.Errorf("disk full")

	tests := []struct {
		name string
		err  error
	}{
		{"validation", &ValidationError{Reason: "bad plan", Err: cause}},
		{"backup", &BackupError{Path: "a.py", Err: cause}},
		{"apply", &ApplyError{Path: "a.py", BackupID: "bk-1", Err: cause}},
		{"rollback", &RollbackError{BackupID: "bk-1", Path: "a.py", Err: cause}},
		{"collaborator", &CollaboratorError{Collaborator: "matcher", Err: cause}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !errors.Is(tt.err, cause) {
				t.Errorf("%v does not unwrap to its cause", tt.err)
			}
			if tt.err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestErrorMessagesCarryContext(t *testing.T) {
	post := &PostValidationError{BackupID: "bk-1", Paths: []string{"a.py", "b.py"}}
	msg := post.Error()
	if !strings.Contains(msg, "bk-1") || !strings.Contains(msg, "2 file(s)") {
		t.Errorf("PostValidationError message = %q", msg)
	}

	apply := &ApplyError{Path: "b.py", BackupID: "bk-1", Err: fmt.Errorf("short write")}
	if !strings.Contains(apply.Error(), "b.py") || !strings.Contains(apply.Error(), "bk-1") {
		t.Errorf("ApplyError message = %q", apply.Error())
	}
}
