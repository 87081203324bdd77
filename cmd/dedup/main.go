// Command dedup finds duplicated code constructs in a project, ranks them
// by refactoring value, and extracts the best candidates into shared
// helpers with transactional, reversible file edits.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/aledlie/dedup/internal/config"
	"github.com/aledlie/dedup/internal/engine"
	"github.com/aledlie/dedup/internal/storage"
	"github.com/aledlie/dedup/internal/types"
)

var (
	flagRoot     string
	flagConfig   string
	flagLang     string
	flagKind     string
	flagMinSim   float64
	flagMinLines int
)

var rootCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Duplicate code detection and extraction",
	Long: `dedup scans a project for duplicated functions, classes, and methods,
ranks the duplicate groups by estimated refactoring value, and can extract
a group into a shared helper with all call sites rewritten.

Every apply takes a backup first and rolls itself back if the edited files
fail post-validation, so the working tree is never left half-refactored.`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagRoot, "root", ".", "Project root to operate on")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a dedup config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&flagLang, "lang", "python", "Source language (python, javascript, typescript, go)")
	rootCmd.PersistentFlags().StringVar(&flagKind, "kind", "function", "Construct kind to scan (function, class, method)")
	rootCmd.PersistentFlags().Float64Var(&flagMinSim, "min-similarity", 0, "Override minimum similarity threshold (0.0-1.0)")
	rootCmd.PersistentFlags().IntVar(&flagMinLines, "min-lines", 0, "Override minimum construct line count")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// fatal prints an error the way every subcommand reports failure and
// exits nonzero.
func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// loadConfig layers defaults, the optional config file, environment
// variables, then command-line overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.ConfigFromEnv()
	if err != nil {
		return cfg, err
	}

	path := flagConfig
	if path == "" {
		path = filepath.Join(flagRoot, ".dedup.yaml")
	}
	if err := cfg.LoadFile(path); err != nil {
		return cfg, fmt.Errorf("loading config %s: %w", path, err)
	}

	if flagMinSim > 0 {
		cfg.MinSimilarity = flagMinSim
	}
	if flagMinLines > 0 {
		cfg.MinLines = flagMinLines
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// parseTarget resolves the --lang and --kind flags.
func parseTarget() (types.Language, types.ConstructKind, error) {
	lang := types.Language(flagLang)
	if !lang.IsValid() {
		return "", "", fmt.Errorf("unsupported language %q", flagLang)
	}
	kind := types.ConstructKind(flagKind)
	if !kind.IsValid() {
		return "", "", fmt.Errorf("unsupported construct kind %q", flagKind)
	}
	return lang, kind, nil
}

// newEngine builds the engine for the flag-selected project root.
func newEngine(ctx context.Context) (*engine.Engine, types.Language, types.ConstructKind, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, "", "", err
	}
	lang, kind, err := parseTarget()
	if err != nil {
		return nil, "", "", err
	}
	root, err := filepath.Abs(flagRoot)
	if err != nil {
		return nil, "", "", fmt.Errorf("resolving project root: %w", err)
	}
	eng, err := engine.New(ctx, root, cfg, lang)
	if err != nil {
		return nil, "", "", err
	}
	return eng, lang, kind, nil
}

// withProcessLock runs fn while holding the project's mutation lock.
// Detect-only commands skip this; anything that writes files must not
// race a concurrent dedup run in the same tree.
func withProcessLock(cfg config.Config, fn func() error) error {
	root, err := filepath.Abs(flagRoot)
	if err != nil {
		return err
	}
	lockPath, err := storage.AcquireProcessLock(root, cfg.BackupDir)
	if err != nil {
		return err
	}
	defer storage.ReleaseProcessLock(lockPath)
	return fn()
}
