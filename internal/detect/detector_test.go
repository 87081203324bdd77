package detect

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/aledlie/dedup/internal/matcher"
	"github.com/aledlie/dedup/internal/types"
)

// fakeMatcher streams a fixed match list, optionally failing afterwards.
type fakeMatcher struct {
	matches []matcher.Match
	err     error
}

func (f *fakeMatcher) Enumerate(_ context.Context, _ matcher.Request, fn matcher.MatchFunc) error {
	for _, m := range f.matches {
		if err := fn(m); err != nil {
			if errors.Is(err, matcher.ErrStopEnumeration) {
				return nil
			}
			return err
		}
	}
	if f.err != nil {
		return &types.CollaboratorError{Collaborator: "matcher", Err: f.err}
	}
	return nil
}

func (f *fakeMatcher) Name() string { return "fake" }

const orderFunc = `def process_order(order):
    total = 0
    for item in order.items:
        total += item.price * item.quantity
    if order.coupon:
        total -= order.coupon.value
    tax = total * 0.08
    total += tax
    order.total = total
    return total`

func match(path string, start int, text string) matcher.Match {
	lines := strings.Count(text, "\n")
	return matcher.Match{
		FilePath:  path,
		StartLine: start,
		EndLine:   start + lines,
		Text:      text,
	}
}

func testConfig() Config {
	return Config{
		MinSimilarity: 0.8,
		MinLines:      5,
		BucketSpread:  1,
		Workers:       2,
	}
}

func scan(t *testing.T, cfg Config, m matcher.Matcher) (*types.ScanResult, error) {
	t.Helper()
	d, err := New(cfg, m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d.Scan(context.Background(), "/proj", types.LangPython, types.ConstructFunction)
}

func TestScanIdenticalPair(t *testing.T) {
	fm := &fakeMatcher{matches: []matcher.Match{
		match("billing/orders.py", 10, orderFunc),
		match("reports/summary.py", 42, orderFunc),
	}}

	result, err := scan(t, testConfig(), fm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(result.Groups))
	}
	group := result.Groups[0]
	if len(group.Instances) != 2 {
		t.Errorf("expected 2 instances, got %d", len(group.Instances))
	}
	if group.SimilarityScore != 1.0 {
		t.Errorf("expected similarity 1.0, got %f", group.SimilarityScore)
	}
	if group.CloneType != types.CloneIdentical {
		t.Errorf("expected identical clone type, got %s", group.CloneType)
	}
	if group.ID != "dup-001" {
		t.Errorf("expected id dup-001, got %s", group.ID)
	}
	// Instances ordered by file path
	if group.Instances[0].FilePath != "billing/orders.py" {
		t.Errorf("instances not ordered by path: %s first", group.Instances[0].FilePath)
	}
}

func TestScanIgnoresFormattingDifferences(t *testing.T) {
	reformatted := "\n" + orderFunc + "\n\n    # recompute each time\n"
	fm := &fakeMatcher{matches: []matcher.Match{
		match("a.py", 1, orderFunc),
		match("b.py", 1, reformatted),
	}}

	result, err := scan(t, testConfig(), fm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(result.Groups))
	}
	if result.Groups[0].SimilarityScore != 1.0 {
		t.Errorf("whitespace and comments should not lower similarity, got %f",
			result.Groups[0].SimilarityScore)
	}
}

func TestScanTransitiveGrouping(t *testing.T) {
	// Three near-copies differing only in one identifier; each pair clears
	// the threshold, so they collapse into one group
	variants := []string{
		orderFunc,
		strings.ReplaceAll(orderFunc, "total", "amount"),
		strings.ReplaceAll(orderFunc, "total", "subtotal"),
	}
	var matches []matcher.Match
	for i, text := range variants {
		matches = append(matches, match(fmt.Sprintf("f%d.py", i), 1, text))
	}

	result, err := scan(t, testConfig(), &fakeMatcher{matches: matches})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Groups) != 1 {
		t.Fatalf("expected 1 transitive group, got %d", len(result.Groups))
	}
	group := result.Groups[0]
	if len(group.Instances) != 3 {
		t.Errorf("expected 3 instances, got %d", len(group.Instances))
	}
	if group.SimilarityScore >= 1.0 || group.SimilarityScore < 0.8 {
		t.Errorf("group score should be the minimum pairwise similarity in [0.8,1), got %f",
			group.SimilarityScore)
	}
	if group.CloneType == types.CloneIdentical {
		t.Error("renamed variants must not classify as identical")
	}
}

func TestScanMinLinesFilter(t *testing.T) {
	short := "def f():\n    return 1"
	fm := &fakeMatcher{matches: []matcher.Match{
		match("a.py", 1, short),
		match("b.py", 1, short),
	}}

	result, err := scan(t, testConfig(), fm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.ConstructCount != 0 {
		t.Errorf("short constructs should be filtered, counted %d", result.ConstructCount)
	}
	if len(result.Groups) != 0 {
		t.Errorf("expected no groups, got %d", len(result.Groups))
	}
}

func TestScanExcludePatterns(t *testing.T) {
	cfg := testConfig()
	cfg.ExcludePatterns = []string{"vendor/**"}

	fm := &fakeMatcher{matches: []matcher.Match{
		match("app/a.py", 1, orderFunc),
		match("vendor/lib/b.py", 1, orderFunc),
	}}

	result, err := scan(t, cfg, fm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if result.ConstructCount != 1 {
		t.Errorf("expected vendored file excluded, counted %d constructs", result.ConstructCount)
	}
	if len(result.Groups) != 0 {
		t.Errorf("a single surviving instance cannot form a group, got %d", len(result.Groups))
	}
}

func TestScanMaxConstructsTruncates(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConstructs = 2

	var matches []matcher.Match
	for i := 0; i < 5; i++ {
		matches = append(matches, match(fmt.Sprintf("f%d.py", i), 1, orderFunc))
	}

	result, err := scan(t, cfg, &fakeMatcher{matches: matches})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !result.Truncated {
		t.Error("expected truncated result")
	}
	if result.ConstructCount != 2 {
		t.Errorf("expected enumeration capped at 2, got %d", result.ConstructCount)
	}
}

func TestScanPartialResultsOnMatcherFailure(t *testing.T) {
	fm := &fakeMatcher{
		matches: []matcher.Match{
			match("a.py", 1, orderFunc),
			match("b.py", 1, orderFunc),
		},
		err: errors.New("ast-grep crashed"),
	}

	result, err := scan(t, testConfig(), fm)
	if err == nil {
		t.Fatal("expected collaborator error")
	}
	var collab *types.CollaboratorError
	if !errors.As(err, &collab) {
		t.Fatalf("expected *types.CollaboratorError, got %T", err)
	}
	if result == nil {
		t.Fatal("partial results must accompany the error")
	}
	if len(result.Groups) != 1 {
		t.Errorf("expected 1 group from the partial stream, got %d", len(result.Groups))
	}
}

func TestScanDistinctGroupsStayApart(t *testing.T) {
	other := `def render_header(doc):
    lines = []
    lines.append(doc.title)
    lines.append("=" * len(doc.title))
    for tag in doc.tags:
        lines.append("#" + tag)
    lines.append(doc.author)
    lines.append(doc.date)
    lines.append("")
    return "\n".join(lines)`

	fm := &fakeMatcher{matches: []matcher.Match{
		match("a.py", 1, orderFunc),
		match("b.py", 1, orderFunc),
		match("c.py", 1, other),
		match("d.py", 1, other),
	}}

	result, err := scan(t, testConfig(), fm)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(result.Groups) != 2 {
		t.Fatalf("expected 2 distinct groups, got %d", len(result.Groups))
	}
	for _, g := range result.Groups {
		if len(g.Instances) != 2 {
			t.Errorf("group %s: expected 2 instances, got %d", g.ID, len(g.Instances))
		}
	}
}

func TestClassifyClone(t *testing.T) {
	same := types.DuplicateInstance{ContentHash: "aaaa"}
	diff := types.DuplicateInstance{ContentHash: "bbbb"}

	tests := []struct {
		name      string
		score     float64
		instances []types.DuplicateInstance
		want      types.CloneType
	}{
		{"all hashes equal", 1.0, []types.DuplicateInstance{same, same}, types.CloneIdentical},
		{"high score renamed", 0.95, []types.DuplicateInstance{same, diff}, types.CloneRenamed},
		{"boundary renamed", 0.9, []types.DuplicateInstance{same, diff}, types.CloneRenamed},
		{"near miss", 0.85, []types.DuplicateInstance{same, diff}, types.CloneNearMiss},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyClone(tt.score, tt.instances); got != tt.want {
				t.Errorf("classifyClone(%f) = %s, want %s", tt.score, got, tt.want)
			}
		})
	}
}

func TestCandidatePairsBucketing(t *testing.T) {
	d, err := New(Config{MinSimilarity: 0.8, BucketSpread: 1, Workers: 1}, &fakeMatcher{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mk := func(lines int) types.DuplicateInstance {
		return types.DuplicateInstance{FilePath: "f.py", StartLine: 1, EndLine: lines}
	}
	// Sizes 5, 7 (bucket 1), 12 (bucket 2), 40 (bucket 8)
	instances := []types.DuplicateInstance{mk(5), mk(7), mk(12), mk(40)}

	pairs := d.candidatePairs(instances)

	seen := make(map[[2]int]bool)
	for _, p := range pairs {
		if seen[p] {
			t.Errorf("pair %v generated twice", p)
		}
		seen[p] = true
	}
	if !seen[[2]int{0, 1}] {
		t.Error("same-bucket pair (0,1) missing")
	}
	if !seen[[2]int{0, 2}] && !seen[[2]int{2, 0}] {
		t.Error("adjacent-bucket pair (0,2) missing")
	}
	for p := range seen {
		if (p[0] == 3 || p[1] == 3) && p[0] != p[1] {
			t.Errorf("far-bucket instance must never be compared, got pair %v", p)
		}
	}
}
