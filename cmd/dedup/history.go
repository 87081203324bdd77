package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent scans for this project",
	Long: `Show the scan history recorded in the project registry: when each scan
ran, what it looked for, and how many duplicate groups it found.`,
	Run: func(cmd *cobra.Command, args []string) {
		limit, _ := cmd.Flags().GetInt("limit")

		ctx := context.Background()
		eng, _, _, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		scans, err := eng.RecentScans(ctx, limit)
		if err != nil {
			fatal("%v", err)
		}

		if len(scans) == 0 {
			fmt.Println("No recorded scans")
			return
		}

		fmt.Printf("%-20s %-12s %-10s %10s %8s %10s\n",
			"SCANNED", "LANGUAGE", "KIND", "CONSTRUCTS", "GROUPS", "DURATION")
		for _, s := range scans {
			fmt.Printf("%-20s %-12s %-10s %10d %8d %10s\n",
				s.ScannedAt.Local().Format("2006-01-02 15:04:05"),
				s.Language, s.ConstructKind, s.ConstructCount, s.GroupCount,
				s.Duration.Round(time.Millisecond))
		}
	},
}

func init() {
	historyCmd.Flags().Int("limit", 10, "Maximum number of scans to show")
	rootCmd.AddCommand(historyCmd)
}
