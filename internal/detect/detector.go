// Package detect implements duplicate-construct detection: enumeration via
// the pattern matcher, size bucketing, pairwise similarity across a worker
// pool, and union-find clustering into duplicate groups.
package detect

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/aledlie/dedup/internal/config"
	"github.com/aledlie/dedup/internal/matcher"
	"github.com/aledlie/dedup/internal/types"
)

// bucketWidth is the line-count granularity for candidate bucketing.
// Constructs whose sizes differ by more than BucketSpread buckets are never
// compared; at the default 0.8 threshold they could not pass anyway.
const bucketWidth = 5

// Detector finds groups of near-duplicate constructs in one project.
// A Detector owns its instances and groups only for the lifetime of one
// Scan call; nothing is cached across calls.
type Detector struct {
	cfg Config
	m   matcher.Matcher
}

// Config holds the detection knobs, usually derived from the engine config.
type Config struct {
	// MinSimilarity is the clustering threshold in [0,1]
	MinSimilarity float64

	// MinLines filters out constructs shorter than this
	MinLines int

	// MaxConstructs caps enumeration; 0 = unlimited
	MaxConstructs int

	// ExcludePatterns are doublestar globs over project-relative paths
	ExcludePatterns []string

	// BucketSpread is how many adjacent size buckets to compare across
	BucketSpread int

	// Workers sizes the similarity pool; 0 = GOMAXPROCS
	Workers int
}

// FromEngineConfig projects the engine-wide config onto detection.
func FromEngineConfig(c config.Config) Config {
	return Config{
		MinSimilarity:   c.MinSimilarity,
		MinLines:        c.MinLines,
		MaxConstructs:   c.MaxConstructs,
		ExcludePatterns: c.ExcludePatterns,
		BucketSpread:    c.BucketSpread,
		Workers:         c.Workers,
	}
}

// New creates a Detector. The matcher is required: detection without an
// enumerator has nothing to cluster.
func New(cfg Config, m matcher.Matcher) (*Detector, error) {
	if m == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if cfg.MinSimilarity < 0 || cfg.MinSimilarity > 1 {
		return nil, fmt.Errorf("min similarity must be in [0,1] (got %f)", cfg.MinSimilarity)
	}
	if cfg.MinLines < 1 {
		cfg.MinLines = 1
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	return &Detector{cfg: cfg, m: m}, nil
}

// Scan enumerates constructs and clusters them into duplicate groups.
//
// On matcher failure mid-stream, Scan returns the groups built from
// whatever was enumerated before the failure alongside the
// *types.CollaboratorError — callers decide whether partial results are
// usable. The result is never nil when any construct was enumerated.
func (d *Detector) Scan(ctx context.Context, projectRoot string, lang types.Language, kind types.ConstructKind) (*types.ScanResult, error) {
	start := time.Now()

	result := &types.ScanResult{
		ProjectRoot:   projectRoot,
		Language:      lang,
		ConstructKind: kind,
		MinSimilarity: d.cfg.MinSimilarity,
		ScannedAt:     start,
	}

	instances, truncated, enumErr := d.enumerate(ctx, projectRoot, lang, kind)
	result.ConstructCount = len(instances)
	result.Truncated = truncated

	if len(instances) >= 2 {
		groups, err := d.cluster(ctx, instances)
		if err != nil {
			return result, err
		}
		result.Groups = groups
	}
	result.Duration = time.Since(start)

	if enumErr != nil {
		// Partial results ride along with the typed failure
		return result, enumErr
	}
	return result, nil
}

// enumerate streams matcher output into instances, applying the exclude
// patterns, minimum size, and construct cap.
func (d *Detector) enumerate(ctx context.Context, projectRoot string, lang types.Language, kind types.ConstructKind) ([]types.DuplicateInstance, bool, error) {
	var instances []types.DuplicateInstance
	truncated := false

	err := d.m.Enumerate(ctx, matcher.Request{
		ProjectRoot: projectRoot,
		Language:    lang,
		Kind:        kind,
	}, func(m matcher.Match) error {
		if d.excluded(m.FilePath) {
			return nil
		}
		if m.EndLine-m.StartLine+1 < d.cfg.MinLines {
			return nil
		}

		normalized := normalizeText(m.Text)
		if normalized == "" {
			return nil
		}

		instances = append(instances, types.DuplicateInstance{
			FilePath:    m.FilePath,
			StartLine:   m.StartLine,
			EndLine:     m.EndLine,
			Text:        m.Text,
			ContentHash: fingerprint(normalized),
			AST:         m.AST,
		})

		if d.cfg.MaxConstructs > 0 && len(instances) >= d.cfg.MaxConstructs {
			truncated = true
			return matcher.ErrStopEnumeration
		}
		return nil
	})

	return instances, truncated, err
}

// excluded reports whether a project-relative path matches any exclude glob.
func (d *Detector) excluded(relPath string) bool {
	for _, pattern := range d.cfg.ExcludePatterns {
		if ok, err := doublestar.Match(pattern, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// edge is one above-threshold similarity between two instances.
type edge struct {
	a, b int
	sim  float64
}

// cluster computes pairwise similarity within size buckets and merges
// above-threshold pairs into transitive-closed groups.
func (d *Detector) cluster(ctx context.Context, instances []types.DuplicateInstance) ([]types.DuplicateGroup, error) {
	normalized := make([]string, len(instances))
	for i := range instances {
		normalized[i] = normalizeText(instances[i].Text)
	}

	pairs := d.candidatePairs(instances)

	edges, err := d.scorePairs(ctx, pairs, instances, normalized)
	if err != nil {
		return nil, err
	}

	uf := newUnionFind(len(instances))
	for _, e := range edges {
		uf.union(e.a, e.b)
	}

	// Reported group score is the minimum pairwise similarity observed
	// within the component
	minSim := make(map[int]float64)
	for _, e := range edges {
		root := uf.find(e.a)
		if cur, ok := minSim[root]; !ok || e.sim < cur {
			minSim[root] = e.sim
		}
	}

	members := make(map[int][]int)
	for i := range instances {
		root := uf.find(i)
		members[root] = append(members[root], i)
	}

	var groups []types.DuplicateGroup
	var roots []int
	for root, idxs := range members {
		if len(idxs) >= 2 {
			roots = append(roots, root)
		}
	}
	// Deterministic group order: by first member's position
	sort.Slice(roots, func(i, j int) bool {
		a, b := members[roots[i]][0], members[roots[j]][0]
		return lessInstance(instances[a], instances[b])
	})

	for n, root := range roots {
		idxs := members[root]
		sort.Slice(idxs, func(i, j int) bool {
			return lessInstance(instances[idxs[i]], instances[idxs[j]])
		})

		group := types.DuplicateGroup{
			ID:              fmt.Sprintf("dup-%03d", n+1),
			SimilarityScore: minSim[root],
		}
		for _, idx := range idxs {
			group.Instances = append(group.Instances, instances[idx])
		}
		group.CloneType = classifyClone(group.SimilarityScore, group.Instances)
		groups = append(groups, group)
	}

	return groups, nil
}

// candidatePairs builds the comparison worklist: all pairs within a size
// bucket, plus pairs across up to BucketSpread adjacent buckets. This keeps
// the comparison count far below all-pairs on real projects, where sizes
// spread widely.
func (d *Detector) candidatePairs(instances []types.DuplicateInstance) [][2]int {
	buckets := make(map[int][]int)
	for i := range instances {
		key := instances[i].LineCount() / bucketWidth
		buckets[key] = append(buckets[key], i)
	}

	var pairs [][2]int
	for key, idxs := range buckets {
		// Within-bucket pairs
		for i := 0; i < len(idxs); i++ {
			for j := i + 1; j < len(idxs); j++ {
				pairs = append(pairs, [2]int{idxs[i], idxs[j]})
			}
		}
		// Cross-bucket pairs against higher-keyed neighbors only, so each
		// cross pair is generated exactly once
		for spread := 1; spread <= d.cfg.BucketSpread; spread++ {
			for _, i := range idxs {
				for _, j := range buckets[key+spread] {
					pairs = append(pairs, [2]int{i, j})
				}
			}
		}
	}
	return pairs
}

// scorePairs runs the similarity computation across the worker pool.
// Source files are read-only during this phase, so only the shared edge
// accumulator needs synchronization.
func (d *Detector) scorePairs(ctx context.Context, pairs [][2]int, instances []types.DuplicateInstance, normalized []string) ([]edge, error) {
	var (
		mu    sync.Mutex
		edges []edge
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(d.cfg.Workers)

	chunk := (len(pairs) + d.cfg.Workers - 1) / d.cfg.Workers
	if chunk < 1 {
		chunk = 1
	}

	for lo := 0; lo < len(pairs); lo += chunk {
		hi := lo + chunk
		if hi > len(pairs) {
			hi = len(pairs)
		}
		part := pairs[lo:hi]

		g.Go(func() error {
			local := make([]edge, 0, len(part))
			for _, p := range part {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				a, b := p[0], p[1]
				var sim float64
				switch {
				case instances[a].ContentHash == instances[b].ContentHash:
					sim = 1.0
				case lengthRatioUpperBound(len(normalized[a]), len(normalized[b])) < d.cfg.MinSimilarity:
					continue
				default:
					sim = similarityRatio(normalized[a], normalized[b])
				}

				if sim >= d.cfg.MinSimilarity {
					local = append(local, edge{a: a, b: b, sim: sim})
				}
			}

			mu.Lock()
			edges = append(edges, local...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return edges, nil
}

// classifyClone grades a group by its score and content-hash mix.
func classifyClone(score float64, instances []types.DuplicateInstance) types.CloneType {
	allSame := true
	for i := 1; i < len(instances); i++ {
		if instances[i].ContentHash != instances[0].ContentHash {
			allSame = false
			break
		}
	}
	switch {
	case allSame:
		return types.CloneIdentical
	case score >= 0.9:
		return types.CloneRenamed
	default:
		return types.CloneNearMiss
	}
}

// lessInstance orders instances by (file path, start line).
func lessInstance(a, b types.DuplicateInstance) bool {
	if a.FilePath != b.FilePath {
		return a.FilePath < b.FilePath
	}
	return a.StartLine < b.StartLine
}
