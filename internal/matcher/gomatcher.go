package matcher

import (
	"context"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aledlie/dedup/internal/types"
)

// GoMatcher enumerates Go constructs with the standard parser, so Go
// projects work without the ast-grep binary installed. Only handles Go;
// other languages go through AstGrepMatcher.
type GoMatcher struct{}

// NewGoMatcher creates a Go AST matcher.
func NewGoMatcher() *GoMatcher { return &GoMatcher{} }

// Name implements Matcher.
func (m *GoMatcher) Name() string { return "go-ast" }

// Enumerate implements Matcher.
func (m *GoMatcher) Enumerate(ctx context.Context, req Request, fn MatchFunc) error {
	if err := req.validate(); err != nil {
		return collabErr(err)
	}
	if req.Language != types.LangGo {
		return collabErr(fmt.Errorf("go matcher cannot enumerate %s", req.Language))
	}

	err := filepath.WalkDir(req.ProjectRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			name := d.Name()
			if name == "vendor" || name == "testdata" || strings.HasPrefix(name, ".") && name != "." {
				if path != req.ProjectRoot {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		return m.enumerateFile(path, req, fn)
	})

	if err != nil {
		if err == ErrStopEnumeration {
			return nil
		}
		if _, ok := err.(*types.CollaboratorError); ok {
			return err
		}
		return collabErr(err)
	}
	return nil
}

// enumerateFile parses one file and streams its matching declarations.
func (m *GoMatcher) enumerateFile(path string, req Request, fn MatchFunc) error {
	src, err := os.ReadFile(path)
	if err != nil {
		// Unreadable files are skipped, not fatal: partial enumeration is
		// more useful than none
		return nil
	}

	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, src, 0)
	if err != nil {
		// Files that do not parse cannot contain extractable duplicates
		return nil
	}

	rel, err := filepath.Rel(req.ProjectRoot, path)
	if err != nil {
		rel = path
	}

	lines := strings.Split(string(src), "\n")

	emit := func(start, end token.Pos) error {
		startLine := fset.Position(start).Line
		endLine := fset.Position(end).Line
		if startLine < 1 || endLine > len(lines) {
			return nil
		}
		return fn(Match{
			FilePath:  rel,
			StartLine: startLine,
			EndLine:   endLine,
			Text:      strings.Join(lines[startLine-1:endLine], "\n"),
		})
	}

	for _, decl := range file.Decls {
		switch d := decl.(type) {
		case *ast.FuncDecl:
			isMethod := d.Recv != nil
			if req.Kind == types.ConstructFunction && isMethod {
				continue
			}
			if req.Kind == types.ConstructMethod && !isMethod {
				continue
			}
			if req.Kind == types.ConstructClass {
				continue
			}
			if err := emit(d.Pos(), d.End()); err != nil {
				return err
			}
		case *ast.GenDecl:
			if req.Kind != types.ConstructClass || d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				if _, ok := ts.Type.(*ast.StructType); !ok {
					continue
				}
				if err := emit(d.Pos(), d.End()); err != nil {
					return err
				}
			}
		}
	}

	return nil
}
