package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/aledlie/dedup/internal/types"
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Scan the project for duplicate code",
	Long: `Scan the project for duplicated constructs of the selected kind.

Constructs are compared after normalization (whitespace and comments
stripped), so formatting-only differences do not defeat detection. Groups
are transitive: if A matches B and B matches C, all three land in one
group even when A and C fall just under the threshold.

Examples:
  dedup detect                          # Python functions, default threshold
  dedup detect --lang go --kind method  # Go methods
  dedup detect --min-similarity 0.9     # Stricter matching
  dedup detect --json                   # Machine-readable output`,
	Run: func(cmd *cobra.Command, args []string) {
		asJSON, _ := cmd.Flags().GetBool("json")

		ctx := context.Background()
		eng, lang, kind, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		result, err := eng.Detect(ctx, lang, kind)
		if err != nil {
			var collab *types.CollaboratorError
			if errors.As(err, &collab) && result != nil {
				fmt.Fprintf(os.Stderr, "%s %v (results are partial)\n", color.YellowString("⚠"), err)
			} else {
				fatal("%v", err)
			}
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				fatal("encoding results: %v", err)
			}
			return
		}

		printScanResult(result)
	},
}

func init() {
	detectCmd.Flags().Bool("json", false, "Emit the scan result as JSON")
	rootCmd.AddCommand(detectCmd)
}

func printScanResult(result *types.ScanResult) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Printf("Scanned %d %ss in %s\n", result.ConstructCount, result.ConstructKind, result.Duration.Round(time.Millisecond))
	if result.Truncated {
		fmt.Printf("%s construct cap reached, scan truncated\n", yellow("⚠"))
	}

	if len(result.Groups) == 0 {
		fmt.Printf("%s No duplicates found\n", green("✓"))
		return
	}

	fmt.Printf("\nFound %d duplicate group(s):\n\n", len(result.Groups))
	for _, group := range result.Groups {
		fmt.Printf("%s  similarity %.2f  %s  %d instances, ~%d lines each\n",
			color.CyanString(group.ID), group.SimilarityScore, group.CloneType,
			len(group.Instances), group.LinesPerInstance())
		for _, inst := range group.Instances {
			fmt.Printf("    %s\n", inst.Location())
		}
		fmt.Println()
	}
}
