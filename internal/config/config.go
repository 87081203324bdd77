package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Config holds the tunable knobs of the deduplication pipeline. Values are
// resolved in order: defaults, then DEDUP_* environment variables, then an
// optional .dedup.yaml overlay at the project root.
type Config struct {
	// MinSimilarity is the minimum pairwise similarity (0.0-1.0) for two
	// constructs to be clustered into the same duplicate group.
	// Higher values = fewer, tighter groups. Default: 0.8
	MinSimilarity float64 `yaml:"min_similarity"`

	// MinLines is the minimum construct size to consider. Constructs
	// shorter than this are noise (getters, one-line wrappers).
	// Default: 5
	MinLines int `yaml:"min_lines"`

	// MaxConstructs caps how many constructs a scan materializes.
	// 0 = unlimited. Large projects should set this to bound memory;
	// matcher output is streamed and enumeration stops at the cap.
	// Default: 0
	MaxConstructs int `yaml:"max_constructs"`

	// ExcludePatterns are doublestar globs (relative to the project root)
	// skipped during scanning. Defaults cover generated and vendored code.
	ExcludePatterns []string `yaml:"exclude_patterns"`

	// BucketSpread is how many adjacent size buckets to compare across.
	// Buckets group constructs by line count so similarity is not computed
	// all-pairs over the whole project. 0 compares only within a bucket.
	// Default: 1
	BucketSpread int `yaml:"bucket_spread"`

	// Workers is the size of the pairwise-similarity worker pool.
	// 0 = GOMAXPROCS. Default: 0
	Workers int `yaml:"workers"`

	// MatcherConcurrency bounds concurrent matcher subprocesses.
	// Default: 2
	MatcherConcurrency int `yaml:"matcher_concurrency"`

	// Complexity score weights. The score is the clamped-to-[0,10] sum of
	// each count multiplied by its weight. These are empirically tuned
	// defaults, not contracts.
	WeightParameters   float64 `yaml:"weight_parameters"`    // per extracted parameter. Default: 0.8
	WeightImports      float64 `yaml:"weight_imports"`       // per import difference. Default: 0.5
	WeightConditionals float64 `yaml:"weight_conditionals"`  // per conditional variation. Default: 2.0
	WeightNesting      float64 `yaml:"weight_nesting"`       // per nesting level. Default: 0.5
	WeightLines        float64 `yaml:"weight_lines"`         // per 10 lines. Default: 0.3

	// Ranker term weights; must sum to 1.0.
	RankSavingsWeight float64 `yaml:"rank_savings_weight"` // Default: 0.4
	RankEaseWeight    float64 `yaml:"rank_ease_weight"`    // Default: 0.3
	RankSafetyWeight  float64 `yaml:"rank_safety_weight"`  // Default: 0.3

	// SavingsCeiling is the saved-line count that maps to a savings score
	// of 100; larger savings are clamped. Default: 200
	SavingsCeiling int `yaml:"savings_ceiling"`

	// MaxCandidates caps the ranked candidate list. Default: 20
	MaxCandidates int `yaml:"max_candidates"`

	// BackupDir is the hidden project-relative directory holding backup
	// snapshots and the registry database. Default: ".dedup"
	BackupDir string `yaml:"backup_dir"`

	// BackupRetention is how long backups are kept before `dedup cleanup`
	// removes them. Default: 720h (30 days)
	BackupRetention time.Duration `yaml:"backup_retention"`
}

// DefaultConfig returns the default pipeline configuration
//
// These defaults are chosen to:
// - Catch real duplication without drowning in near-matches (0.8 threshold)
// - Ignore trivial constructs (5 line minimum)
// - Keep conditionals expensive (they block safe extraction)
// - Retain backups long enough to survive a review cycle (30 days)
func DefaultConfig() Config {
	return Config{
		MinSimilarity: 0.8,
		MinLines:      5,
		MaxConstructs: 0,
		ExcludePatterns: []string{
			"**/vendor/**",
			"**/.git/**",
			"**/node_modules/**",
			"**/testdata/**",
			"**/*.pb.go",
			"**/*.gen.go",
			"**/*_pb2.py",
			"**/dist/**",
			"**/.dedup/**",
		},
		BucketSpread:       1,
		Workers:            0,
		MatcherConcurrency: 2,
		WeightParameters:   0.8,
		WeightImports:      0.5,
		WeightConditionals: 2.0,
		WeightNesting:      0.5,
		WeightLines:        0.3,
		RankSavingsWeight:  0.4,
		RankEaseWeight:     0.3,
		RankSafetyWeight:   0.3,
		SavingsCeiling:     200,
		MaxCandidates:      20,
		BackupDir:          ".dedup",
		BackupRetention:    30 * 24 * time.Hour,
	}
}

// ConfigFromEnv builds a Config from defaults overridden by DEDUP_*
// environment variables. Invalid values are errors, not silent fallbacks.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()

	if v := os.Getenv("DEDUP_MIN_SIMILARITY"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_MIN_SIMILARITY %q: %w", v, err)
		}
		cfg.MinSimilarity = f
	}
	if v := os.Getenv("DEDUP_MIN_LINES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_MIN_LINES %q: %w", v, err)
		}
		cfg.MinLines = n
	}
	if v := os.Getenv("DEDUP_MAX_CONSTRUCTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_MAX_CONSTRUCTS %q: %w", v, err)
		}
		cfg.MaxConstructs = n
	}
	if v := os.Getenv("DEDUP_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_WORKERS %q: %w", v, err)
		}
		cfg.Workers = n
	}
	if v := os.Getenv("DEDUP_MAX_CANDIDATES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_MAX_CANDIDATES %q: %w", v, err)
		}
		cfg.MaxCandidates = n
	}
	if v := os.Getenv("DEDUP_BACKUP_DIR"); v != "" {
		cfg.BackupDir = v
	}
	if v := os.Getenv("DEDUP_BACKUP_RETENTION"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid DEDUP_BACKUP_RETENTION %q: %w", v, err)
		}
		cfg.BackupRetention = d
	}

	return cfg, nil
}

// LoadFile overlays a YAML config file onto c. A missing file is not an
// error; a malformed one is.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.MinSimilarity < 0 || c.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity must be between 0 and 1 (got %f)", c.MinSimilarity)
	}
	if c.MinLines < 1 {
		return fmt.Errorf("min_lines must be >= 1 (got %d)", c.MinLines)
	}
	if c.MaxConstructs < 0 {
		return fmt.Errorf("max_constructs cannot be negative (got %d)", c.MaxConstructs)
	}
	if c.BucketSpread < 0 || c.BucketSpread > 10 {
		return fmt.Errorf("bucket_spread must be between 0 and 10 (got %d)", c.BucketSpread)
	}
	for _, pattern := range c.ExcludePatterns {
		// A malformed glob would otherwise match nothing, silently
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers cannot be negative (got %d)", c.Workers)
	}
	if c.MatcherConcurrency < 1 {
		return fmt.Errorf("matcher_concurrency must be >= 1 (got %d)", c.MatcherConcurrency)
	}
	sum := c.RankSavingsWeight + c.RankEaseWeight + c.RankSafetyWeight
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("rank weights must sum to 1.0 (got %f)", sum)
	}
	if c.SavingsCeiling < 1 {
		return fmt.Errorf("savings_ceiling must be >= 1 (got %d)", c.SavingsCeiling)
	}
	if c.MaxCandidates < 1 {
		return fmt.Errorf("max_candidates must be >= 1 (got %d)", c.MaxCandidates)
	}
	if c.BackupDir == "" {
		return fmt.Errorf("backup_dir is required")
	}
	if c.BackupRetention < time.Hour {
		return fmt.Errorf("backup_retention must be at least 1h (got %s)", c.BackupRetention)
	}
	return nil
}
