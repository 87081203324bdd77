// Package rank scores duplicate groups by expected savings, extraction
// ease, and safety, producing a prioritized candidate list.
package rank

import (
	"context"
	"fmt"
	"sort"

	"github.com/aledlie/dedup/internal/config"
	"github.com/aledlie/dedup/internal/types"
)

// CoverageDetector is the test-coverage collaborator. Covered reports
// whether the file has test coverage; its answer feeds the safety term.
type CoverageDetector interface {
	Covered(ctx context.Context, filePath, projectRoot string, lang types.Language) (bool, error)
}

// RiskSignal optionally grades how risky changing a file is (0 = safe,
// 1 = maximally risky), e.g. from dependency fan-in. Nil means no signal.
type RiskSignal interface {
	Risk(ctx context.Context, filePath string) (float64, error)
}

// Candidate is one ranked refactoring opportunity.
type Candidate struct {
	Group     types.DuplicateGroup   `json:"group"`
	Alignment *types.AlignmentResult `json:"alignment"`

	// Priority is the blended 0-100 score
	Priority float64 `json:"priority"`

	// The three normalized terms, kept for explainability
	Savings float64 `json:"savings"`
	Ease    float64 `json:"ease"`
	Safety  float64 `json:"safety"`

	// CoveredByTests mirrors the coverage collaborator's verdict
	CoveredByTests bool `json:"covered_by_tests"`
}

// Config holds the ranking weights and caps.
type Config struct {
	// SavingsWeight, EaseWeight, SafetyWeight must sum to 1.0
	SavingsWeight float64
	EaseWeight    float64
	SafetyWeight  float64

	// SavingsCeiling is the saved-line count mapping to savings=100
	SavingsCeiling int

	// MaxCandidates caps the returned list
	MaxCandidates int
}

// FromEngineConfig projects the engine-wide config onto ranking.
func FromEngineConfig(c config.Config) Config {
	return Config{
		SavingsWeight:  c.RankSavingsWeight,
		EaseWeight:     c.RankEaseWeight,
		SafetyWeight:   c.RankSafetyWeight,
		SavingsCeiling: c.SavingsCeiling,
		MaxCandidates:  c.MaxCandidates,
	}
}

// Ranker prioritizes analyzed groups. The coverage detector is optional:
// without one, the safety term is zero for every group and ranking falls
// back to savings and ease.
type Ranker struct {
	cfg      Config
	coverage CoverageDetector
	risk     RiskSignal
}

// New creates a Ranker. coverage and risk may be nil.
func New(cfg Config, coverage CoverageDetector, risk RiskSignal) (*Ranker, error) {
	sum := cfg.SavingsWeight + cfg.EaseWeight + cfg.SafetyWeight
	if sum < 0.999 || sum > 1.001 {
		return nil, fmt.Errorf("rank weights must sum to 1.0 (got %f)", sum)
	}
	if cfg.SavingsCeiling < 1 {
		return nil, fmt.Errorf("savings ceiling must be >= 1 (got %d)", cfg.SavingsCeiling)
	}
	if cfg.MaxCandidates < 1 {
		return nil, fmt.Errorf("max candidates must be >= 1 (got %d)", cfg.MaxCandidates)
	}
	return &Ranker{cfg: cfg, coverage: coverage, risk: risk}, nil
}

// Rank scores each group/alignment pair and returns candidates in
// descending priority, capped at MaxCandidates. Ties break toward more
// instances, then lower complexity. A coverage collaborator failure is
// surfaced as a *types.CollaboratorError rather than silently scored as
// uncovered.
func (r *Ranker) Rank(ctx context.Context, projectRoot string, lang types.Language, groups []types.DuplicateGroup, alignments map[string]*types.AlignmentResult) ([]Candidate, error) {
	candidates := make([]Candidate, 0, len(groups))

	for n := range groups {
		group := groups[n]
		alignment, ok := alignments[group.ID]
		if !ok {
			return nil, fmt.Errorf("no alignment for group %s", group.ID)
		}

		savings := r.savingsScore(&group)
		ease := easeScore(alignment.Complexity)

		safety, covered, err := r.safetyScore(ctx, &group, projectRoot, lang)
		if err != nil {
			return nil, err
		}

		candidates = append(candidates, Candidate{
			Group:          group,
			Alignment:      alignment,
			Savings:        savings,
			Ease:           ease,
			Safety:         safety,
			CoveredByTests: covered,
			Priority: r.cfg.SavingsWeight*savings +
				r.cfg.EaseWeight*ease +
				r.cfg.SafetyWeight*safety,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Priority != candidates[j].Priority {
			return candidates[i].Priority > candidates[j].Priority
		}
		if len(candidates[i].Group.Instances) != len(candidates[j].Group.Instances) {
			return len(candidates[i].Group.Instances) > len(candidates[j].Group.Instances)
		}
		return candidates[i].Alignment.Complexity < candidates[j].Alignment.Complexity
	})

	if len(candidates) > r.cfg.MaxCandidates {
		candidates = candidates[:r.cfg.MaxCandidates]
	}
	return candidates, nil
}

// savingsScore maps (instances-1) * linesPerInstance onto 0-100 against
// the configured ceiling.
func (r *Ranker) savingsScore(group *types.DuplicateGroup) float64 {
	saved := float64(len(group.Instances)-1) * float64(group.LinesPerInstance())
	score := saved / float64(r.cfg.SavingsCeiling) * 100
	if score > 100 {
		return 100
	}
	return score
}

// easeScore maps complexity 0-10 onto 100-0.
func easeScore(complexity float64) float64 {
	score := 100 - complexity*10
	if score < 0 {
		return 0
	}
	return score
}

// safetyScore is 100 when every instance's file is covered by tests, else
// 0, blended down by the dependency-risk signal when one is wired.
func (r *Ranker) safetyScore(ctx context.Context, group *types.DuplicateGroup, projectRoot string, lang types.Language) (score float64, covered bool, err error) {
	if r.coverage == nil {
		return 0, false, nil
	}

	covered = true
	for n := range group.Instances {
		ok, err := r.coverage.Covered(ctx, group.Instances[n].FilePath, projectRoot, lang)
		if err != nil {
			return 0, false, &types.CollaboratorError{Collaborator: "coverage", Err: err}
		}
		if !ok {
			covered = false
			break
		}
	}

	if !covered {
		return 0, false, nil
	}

	score = 100
	if r.risk != nil {
		worst := 0.0
		for n := range group.Instances {
			risk, err := r.risk.Risk(ctx, group.Instances[n].FilePath)
			if err != nil {
				return 0, covered, &types.CollaboratorError{Collaborator: "risk", Err: err}
			}
			if risk > worst {
				worst = risk
			}
		}
		score = 100 * (1 - worst)
	}
	return score, covered, nil
}
