package matcher

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/sync/semaphore"

	"github.com/aledlie/dedup/internal/types"
)

// AstGrepMatcher enumerates constructs by shelling out to the ast-grep CLI
// and decoding its streamed JSON output. One subprocess runs per Enumerate
// call; a semaphore bounds how many run at once across concurrent scans.
type AstGrepMatcher struct {
	binPath string
	sem     *semaphore.Weighted
}

// NewAstGrepMatcher locates the ast-grep binary and verifies it runs.
// maxConcurrent bounds simultaneous subprocesses (min 1).
func NewAstGrepMatcher(ctx context.Context, maxConcurrent int) (*AstGrepMatcher, error) {
	binPath, err := exec.LookPath("ast-grep")
	if err != nil {
		// Homebrew installs it as "sg" on some systems
		binPath, err = exec.LookPath("sg")
		if err != nil {
			return nil, collabErr(fmt.Errorf("ast-grep not found in PATH: %w", err))
		}
	}

	cmd := exec.CommandContext(ctx, binPath, "--version")
	if err := cmd.Run(); err != nil {
		return nil, collabErr(fmt.Errorf("ast-grep failed to run: %w", err))
	}

	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &AstGrepMatcher{
		binPath: binPath,
		sem:     semaphore.NewWeighted(int64(maxConcurrent)),
	}, nil
}

// Name implements Matcher.
func (m *AstGrepMatcher) Name() string { return "ast-grep" }

// constructPatterns maps (language, kind) to the ast-grep pattern that
// enumerates that construct. Adding a language is a table entry.
var constructPatterns = map[types.Language]map[types.ConstructKind]string{
	types.LangPython: {
		types.ConstructFunction: "def $NAME($$$ARGS): $$$BODY",
		types.ConstructClass:    "class $NAME: $$$BODY",
		types.ConstructMethod:   "def $NAME(self, $$$ARGS): $$$BODY",
	},
	types.LangJavaScript: {
		types.ConstructFunction: "function $NAME($$$ARGS) { $$$BODY }",
		types.ConstructClass:    "class $NAME { $$$BODY }",
		types.ConstructMethod:   "$NAME($$$ARGS) { $$$BODY }",
	},
	types.LangTypeScript: {
		types.ConstructFunction: "function $NAME($$$ARGS) { $$$BODY }",
		types.ConstructClass:    "class $NAME { $$$BODY }",
		types.ConstructMethod:   "$NAME($$$ARGS) { $$$BODY }",
	},
	types.LangGo: {
		types.ConstructFunction: "func $NAME($$$ARGS) $$$RET { $$$BODY }",
		types.ConstructClass:    "type $NAME struct { $$$FIELDS }",
		types.ConstructMethod:   "func ($RECV) $NAME($$$ARGS) $$$RET { $$$BODY }",
	},
}

// Enumerate implements Matcher.
func (m *AstGrepMatcher) Enumerate(ctx context.Context, req Request, fn MatchFunc) error {
	if err := req.validate(); err != nil {
		return collabErr(err)
	}

	pattern, ok := constructPatterns[req.Language][req.Kind]
	if !ok {
		return collabErr(fmt.Errorf("no pattern for %s %s", req.Language, req.Kind))
	}

	if err := m.sem.Acquire(ctx, 1); err != nil {
		return collabErr(fmt.Errorf("acquiring matcher slot: %w", err))
	}
	defer m.sem.Release(1)

	// --json=stream emits one JSON object per line as matches are found,
	// so large projects never buffer the full match set in the subprocess.
	cmd := exec.CommandContext(ctx, m.binPath, "run",
		"--pattern", pattern,
		"--lang", string(req.Language),
		"--json=stream",
		req.ProjectRoot)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return collabErr(fmt.Errorf("attaching to ast-grep output: %w", err))
	}
	if err := cmd.Start(); err != nil {
		return collabErr(fmt.Errorf("starting ast-grep: %w", err))
	}

	stopped := false
	scanner := bufio.NewScanner(stdout)
	// Constructs can be large; default 64K token limit is not enough
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !gjson.Valid(line) {
			continue
		}

		match, ok := parseAstGrepMatch(line, req.ProjectRoot)
		if !ok {
			continue
		}

		if err := fn(match); err != nil {
			stopped = true
			_ = cmd.Process.Kill()
			if err == ErrStopEnumeration {
				break
			}
			_ = cmd.Wait()
			return err
		}
	}

	if err := scanner.Err(); err != nil && !stopped {
		_ = cmd.Wait()
		return collabErr(fmt.Errorf("reading ast-grep output: %w", err))
	}

	if err := cmd.Wait(); err != nil && !stopped {
		// Exit code 1 with no output means "no matches" for some versions;
		// anything else is a real failure.
		if exitErr, ok := err.(*exec.ExitError); ok && exitErr.ExitCode() == 1 {
			return nil
		}
		return collabErr(fmt.Errorf("ast-grep exited: %w", err))
	}

	return nil
}

// parseAstGrepMatch decodes one streamed JSON match record.
func parseAstGrepMatch(line, projectRoot string) (Match, bool) {
	file := gjson.Get(line, "file").String()
	text := gjson.Get(line, "text").String()
	if file == "" || text == "" {
		return Match{}, false
	}

	// ast-grep line numbers are 0-indexed in the JSON output
	start := int(gjson.Get(line, "range.start.line").Int()) + 1
	end := int(gjson.Get(line, "range.end.line").Int()) + 1

	rel := file
	if strings.HasPrefix(rel, projectRoot) {
		rel = strings.TrimPrefix(rel, projectRoot)
		rel = strings.TrimPrefix(rel, "/")
	}

	ast := ""
	if meta := gjson.Get(line, "metaVariables"); meta.Exists() {
		ast = meta.Raw
	}

	return Match{
		FilePath:  rel,
		StartLine: start,
		EndLine:   end,
		Text:      text,
		AST:       ast,
	}, true
}
