package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aledlie/dedup/internal/codegen"
	"github.com/aledlie/dedup/internal/engine"
	"github.com/aledlie/dedup/internal/types"
)

var previewCmd = &cobra.Command{
	Use:   "preview <group-id>",
	Short: "Preview the refactoring for a duplicate group",
	Long: `Generate the extraction plan for a duplicate group and show the file
diffs that applying it would produce. Nothing on disk is touched.

Examples:
  dedup preview dup-001
  dedup preview dup-001 --strategy extract_class
  dedup preview dup-001 --name parse_config`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		strategy, _ := cmd.Flags().GetString("strategy")
		name, _ := cmd.Flags().GetString("name")

		ctx := context.Background()
		eng, lang, kind, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		plan, err := buildPlan(ctx, eng, args[0], lang, kind, strategy, name)
		if err != nil {
			fatal("%v", err)
		}

		result, err := eng.Apply(ctx, plan, true, false)
		if err != nil {
			fatal("%v", err)
		}

		fmt.Printf("Plan for %s: extract %s into %s\n\n",
			color.CyanString(plan.GroupID), plan.Name, definitionPath(plan))
		for _, path := range plan.TouchedPaths() {
			if diff := result.Diffs[path]; diff != "" {
				fmt.Print(diff)
				fmt.Println()
			}
		}
		fmt.Printf("%d file(s) would change. Run 'dedup apply %s' to apply.\n",
			len(plan.TouchedPaths()), plan.GroupID)
	},
}

var applyCmd = &cobra.Command{
	Use:   "apply <group-id>",
	Short: "Apply the refactoring for a duplicate group",
	Long: `Generate the extraction plan for a duplicate group and apply it.

Every touched file is backed up before the first write. If any write
fails or the edited files fail syntax validation afterwards, the backup
is restored automatically and the working tree is left exactly as it
was.

Examples:
  dedup apply dup-001
  dedup apply dup-001 --no-backup     # In-memory snapshot only
  dedup apply dup-001 --name shared_validate`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		strategy, _ := cmd.Flags().GetString("strategy")
		name, _ := cmd.Flags().GetString("name")
		noBackup, _ := cmd.Flags().GetBool("no-backup")

		ctx := context.Background()
		eng, lang, kind, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		cfg, err := loadConfig()
		if err != nil {
			fatal("%v", err)
		}

		// The exit happens outside the locked section so the process lock is
		// always released first
		var applyErr error
		runErr := withProcessLock(cfg, func() error {
			plan, err := buildPlan(ctx, eng, args[0], lang, kind, strategy, name)
			if err != nil {
				return err
			}

			result, err := eng.Apply(ctx, plan, false, !noBackup)
			printApplyResult(result, err)
			applyErr = err
			return nil
		})
		if runErr != nil {
			fatal("%v", runErr)
		}
		if applyErr != nil {
			os.Exit(1)
		}
	},
}

func init() {
	for _, cmd := range []*cobra.Command{previewCmd, applyCmd} {
		cmd.Flags().String("strategy", string(types.StrategyExtractFunction),
			"Extraction strategy (extract_function, extract_class)")
		cmd.Flags().String("name", "", "Name for the extracted helper (derived if empty)")
	}
	applyCmd.Flags().Bool("no-backup", false, "Skip the persisted backup (rollback still works within the run)")
	rootCmd.AddCommand(previewCmd)
	rootCmd.AddCommand(applyCmd)
}

// buildPlan re-scans the project, finds the named group, and generates
// its refactoring plan. Groups are re-derived rather than cached so the
// plan always reflects the current tree.
func buildPlan(ctx context.Context, eng *engine.Engine, groupID string, lang types.Language, kind types.ConstructKind, strategy, name string) (*types.RefactoringPlan, error) {
	result, err := eng.Detect(ctx, lang, kind)
	if err != nil {
		return nil, err
	}

	var group *types.DuplicateGroup
	for n := range result.Groups {
		if result.Groups[n].ID == groupID {
			group = &result.Groups[n]
			break
		}
	}
	if group == nil {
		return nil, fmt.Errorf("no duplicate group %q in the current scan (run 'dedup detect' to list groups)", groupID)
	}

	alignments, err := eng.Analyze(ctx, result)
	if err != nil {
		return nil, err
	}

	opts := codegen.Options{
		Strategy: types.Strategy(strategy),
		Name:     name,
	}
	plan, err := eng.Plan(ctx, group, alignments[group.ID], lang, opts)
	if err != nil {
		var syntaxErr *codegen.SyntaxError
		if errors.As(err, &syntaxErr) && syntaxErr.Suggestion != "" {
			return nil, fmt.Errorf("%w\nSuggestion: %s", err, syntaxErr.Suggestion)
		}
		return nil, err
	}
	return plan, nil
}

// definitionPath returns the path of the plan's create edit, the file the
// extracted helper lands in.
func definitionPath(plan *types.RefactoringPlan) string {
	for n := range plan.Edits {
		if plan.Edits[n].Op == types.EditCreate {
			return plan.Edits[n].Path
		}
	}
	if len(plan.Edits) > 0 {
		return plan.Edits[0].Path
	}
	return ""
}

func printApplyResult(result *types.ApplyResult, err error) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	if result == nil {
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		}
		return
	}

	switch result.Status {
	case types.StatusSuccess:
		changed := len(result.ModifiedFiles) + len(result.CreatedFiles)
		fmt.Printf("%s Applied: %d file(s) changed\n", green("✓"), changed)
		for _, path := range result.CreatedFiles {
			fmt.Printf("    %s (new)\n", path)
		}
		for _, path := range result.ModifiedFiles {
			fmt.Printf("    %s\n", path)
		}
		if result.BackupID != "" {
			fmt.Printf("Backup %s (rollback with 'dedup rollback %s')\n",
				color.CyanString(result.BackupID), result.BackupID)
		}
	case types.StatusRolledBack:
		fmt.Fprintf(os.Stderr, "%s Apply failed, all files restored: %v\n", yellow("⚠"), err)
	case types.StatusFailed:
		fmt.Fprintf(os.Stderr, "%s Apply failed and rollback failed: %v\n", red("✗"), err)
		if result.BackupID != "" {
			fmt.Fprintf(os.Stderr, "Backup %s is intact; run 'dedup rollback %s' to retry the restore\n",
				result.BackupID, result.BackupID)
		}
	default:
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", red("✗"), err)
		}
	}
}
