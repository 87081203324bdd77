package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aledlie/dedup/internal/rank"
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank duplicate groups by refactoring value",
	Long: `Scan for duplicates, analyze each group's variation pattern, and rank
the groups by a blend of estimated line savings, extraction ease, and
test-coverage safety.

The top-ranked candidate is the one to extract first: big, simple, and
covered by tests.

Examples:
  dedup rank                   # Top candidates for the current project
  dedup rank --top 5           # Only the first five
  dedup rank --json            # Machine-readable output`,
	Run: func(cmd *cobra.Command, args []string) {
		top, _ := cmd.Flags().GetInt("top")
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, lang, kind, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		candidates, err := eng.Rank(ctx, lang, kind)
		if err != nil {
			fatal("%v", err)
		}
		if top > 0 && top < len(candidates) {
			candidates = candidates[:top]
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(candidates); err != nil {
				fatal("encoding candidates: %v", err)
			}
			return
		}

		printCandidates(candidates)
	},
}

func init() {
	rankCmd.Flags().Int("top", 0, "Show only the top N candidates")
	rankCmd.Flags().Bool("json", false, "Emit candidates as JSON")
	rootCmd.AddCommand(rankCmd)
}

func printCandidates(candidates []rank.Candidate) {
	green := color.New(color.FgGreen).SprintFunc()

	if len(candidates) == 0 {
		fmt.Printf("%s Nothing to refactor\n", green("✓"))
		return
	}

	fmt.Printf("%-10s %8s %8s %6s %6s %8s  %s\n",
		"GROUP", "PRIORITY", "SAVINGS", "EASE", "SAFE", "TESTED", "LOCATION")
	for _, c := range candidates {
		tested := color.RedString("no")
		if c.CoveredByTests {
			tested = green("yes")
		}
		location := ""
		if len(c.Group.Instances) > 0 {
			location = c.Group.Instances[0].Location()
		}
		fmt.Printf("%-10s %8.1f %8.1f %6.1f %6.1f %8s  %s\n",
			color.CyanString(c.Group.ID), c.Priority, c.Savings, c.Ease, c.Safety,
			tested, location)
	}
}
