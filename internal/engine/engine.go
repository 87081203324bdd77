// Package engine exposes the refactoring pipeline as plain, directly
// callable functions: detect, rank, plan, apply, rollback, cleanup. It has
// zero protocol coupling — any CLI or server layer is a thin adapter over
// an Engine value, and all collaborators are explicit fields rather than
// process-wide singletons.
package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aledlie/dedup/internal/align"
	"github.com/aledlie/dedup/internal/apply"
	"github.com/aledlie/dedup/internal/codegen"
	"github.com/aledlie/dedup/internal/config"
	"github.com/aledlie/dedup/internal/detect"
	"github.com/aledlie/dedup/internal/matcher"
	"github.com/aledlie/dedup/internal/rank"
	"github.com/aledlie/dedup/internal/storage"
	"github.com/aledlie/dedup/internal/types"
	"github.com/aledlie/dedup/internal/validate"
)

// Engine wires the pipeline components for one project. Construct with
// New; every dependency is explicit so tests can substitute fakes at any
// boundary.
type Engine struct {
	cfg         config.Config
	projectRoot string

	matcher   matcher.Matcher
	analyzer  *align.Analyzer
	ranker    *rank.Ranker
	generator *codegen.Generator
	applier   *apply.Applicator
	store     *storage.Store // nil disables history recording
}

// Option customizes Engine construction.
type Option func(*options)

type options struct {
	matcher   matcher.Matcher
	validator validate.Validator
	coverage  rank.CoverageDetector
	risk      rank.RiskSignal
	noStore   bool
}

// WithMatcher overrides the construct matcher.
func WithMatcher(m matcher.Matcher) Option {
	return func(o *options) { o.matcher = m }
}

// WithValidator overrides the syntax validator.
func WithValidator(v validate.Validator) Option {
	return func(o *options) { o.validator = v }
}

// WithCoverage overrides the coverage detector.
func WithCoverage(c rank.CoverageDetector) Option {
	return func(o *options) { o.coverage = c }
}

// WithRiskSignal supplies a dependency-risk signal for ranking.
func WithRiskSignal(r rank.RiskSignal) Option {
	return func(o *options) { o.risk = r }
}

// WithoutHistory disables the registry database.
func WithoutHistory() Option {
	return func(o *options) { o.noStore = true }
}

// New builds an Engine for projectRoot with the given config. Default
// collaborators: ast-grep matcher with the native Go matcher for Go
// projects, the stock validator registry, and the heuristic coverage
// detector.
func New(ctx context.Context, projectRoot string, cfg config.Config, lang types.Language, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.matcher == nil {
		if lang == types.LangGo {
			o.matcher = matcher.NewGoMatcher()
		} else {
			m, err := matcher.NewAstGrepMatcher(ctx, cfg.MatcherConcurrency)
			if err != nil {
				return nil, err
			}
			o.matcher = m
		}
	}
	if o.validator == nil {
		o.validator = validate.NewRegistry()
	}
	if o.coverage == nil {
		o.coverage = rank.NewFileCoverageDetector()
	}

	ranker, err := rank.New(rank.FromEngineConfig(cfg), o.coverage, o.risk)
	if err != nil {
		return nil, err
	}

	generator, err := codegen.New(o.validator)
	if err != nil {
		return nil, err
	}

	applier, err := apply.New(projectRoot, cfg.BackupDir, o.validator)
	if err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg:         cfg,
		projectRoot: projectRoot,
		matcher:     o.matcher,
		analyzer:    align.New(align.FromEngineConfig(cfg)),
		ranker:      ranker,
		generator:   generator,
		applier:     applier,
	}

	if !o.noStore {
		store, err := storage.New(filepath.Join(projectRoot, cfg.BackupDir, "dedup.db"))
		if err != nil {
			return nil, err
		}
		eng.store = store
	}

	return eng, nil
}

// Close releases the engine's registry handle.
func (e *Engine) Close() error {
	if e.store != nil {
		return e.store.Close()
	}
	return nil
}

// Detect scans the project for duplicate groups. Matcher failure returns
// partial results alongside the typed error; the scan record is written
// only for complete scans.
func (e *Engine) Detect(ctx context.Context, lang types.Language, kind types.ConstructKind) (*types.ScanResult, error) {
	detector, err := detect.New(detect.FromEngineConfig(e.cfg), e.matcher)
	if err != nil {
		return nil, err
	}

	result, err := detector.Scan(ctx, e.projectRoot, lang, kind)
	if err != nil {
		return result, err
	}

	if e.store != nil {
		if recErr := e.store.RecordScan(ctx, result); recErr != nil {
			// History is advisory; a registry write failure does not fail
			// the scan
			return result, nil
		}
	}
	return result, nil
}

// Analyze aligns every group of a scan result concurrently. Alignment is
// independent per group, so groups fan out across the worker pool.
func (e *Engine) Analyze(ctx context.Context, result *types.ScanResult) (map[string]*types.AlignmentResult, error) {
	var mu sync.Mutex
	alignments := make(map[string]*types.AlignmentResult, len(result.Groups))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(e.workers())

	for n := range result.Groups {
		group := &result.Groups[n]
		g.Go(func() error {
			alignment, err := e.analyzer.Analyze(group)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", group.ID, err)
			}
			mu.Lock()
			alignments[group.ID] = alignment
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return alignments, nil
}

// Rank runs detect + analyze + rank and returns the prioritized
// candidates.
func (e *Engine) Rank(ctx context.Context, lang types.Language, kind types.ConstructKind) ([]rank.Candidate, error) {
	result, err := e.Detect(ctx, lang, kind)
	if err != nil {
		return nil, err
	}

	alignments, err := e.Analyze(ctx, result)
	if err != nil {
		return nil, err
	}

	return e.ranker.Rank(ctx, e.projectRoot, lang, result.Groups, alignments)
}

// Plan generates the refactoring plan for one group.
func (e *Engine) Plan(ctx context.Context, group *types.DuplicateGroup, alignment *types.AlignmentResult, lang types.Language, opts codegen.Options) (*types.RefactoringPlan, error) {
	return e.generator.Generate(ctx, e.projectRoot, group, alignment, lang, opts)
}

// Apply runs a plan through the applicator, recording the backup in the
// registry on success.
func (e *Engine) Apply(ctx context.Context, plan *types.RefactoringPlan, dryRun, keepBackup bool) (*types.ApplyResult, error) {
	result, err := e.applier.Apply(ctx, plan, apply.Options{DryRun: dryRun, KeepBackup: keepBackup})

	if result != nil && result.BackupID != "" && e.store != nil {
		if meta, loadErr := e.applier.Backups().Load(result.BackupID); loadErr == nil {
			_ = e.store.RecordBackup(ctx, meta)
		}
		if result.Status == types.StatusRolledBack {
			_ = e.store.SetBackupStatus(ctx, result.BackupID, storage.BackupRolledBack)
		}
	}

	return result, err
}

// Rollback restores the files recorded in a backup.
func (e *Engine) Rollback(ctx context.Context, backupID string) ([]string, error) {
	restored, err := e.applier.Rollback(ctx, backupID)
	if err == nil && e.store != nil {
		_ = e.store.SetBackupStatus(ctx, backupID, storage.BackupRolledBack)
	}
	return restored, err
}

// Backups lists on-disk backup metadata, newest first.
func (e *Engine) Backups() ([]*types.BackupMetadata, error) {
	return e.applier.Backups().List()
}

// RecentScans returns the newest scan records from the project registry.
func (e *Engine) RecentScans(ctx context.Context, limit int) ([]storage.ScanRecord, error) {
	if e.store == nil {
		return nil, nil
	}
	return e.store.RecentScans(ctx, limit)
}

// Cleanup deletes backups older than the retention window and marks their
// registry rows cleaned. Returns the deleted backup ids.
func (e *Engine) Cleanup(ctx context.Context, retention time.Duration) ([]string, error) {
	if retention <= 0 {
		retention = e.cfg.BackupRetention
	}
	cutoff := time.Now().Add(-retention)

	metas, err := e.applier.Backups().List()
	if err != nil {
		return nil, err
	}

	var deleted []string
	for _, meta := range metas {
		if meta.CreatedAt.After(cutoff) {
			continue
		}
		if err := e.applier.Backups().Delete(meta.BackupID); err != nil {
			return deleted, err
		}
		if e.store != nil {
			_ = e.store.SetBackupStatus(ctx, meta.BackupID, storage.BackupCleaned)
		}
		deleted = append(deleted, meta.BackupID)
	}
	return deleted, nil
}

// workers returns the effective pool size.
func (e *Engine) workers() int {
	if e.cfg.Workers > 0 {
		return e.cfg.Workers
	}
	return 4
}
