package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete old backups",
	Long: `Delete backups older than the retention window and mark them cleaned
in the project registry.

The default retention comes from configuration (720h unless overridden).

Examples:
  dedup cleanup                       # Apply the configured retention
  dedup cleanup --older-than 168h     # Delete backups older than a week
  dedup cleanup --dry-run             # Preview what would be deleted`,
	Run: func(cmd *cobra.Command, args []string) {
		olderThan, _ := cmd.Flags().GetDuration("older-than")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		ctx := context.Background()
		eng, _, _, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		cfg, err := loadConfig()
		if err != nil {
			fatal("%v", err)
		}
		retention := olderThan
		if retention <= 0 {
			retention = cfg.BackupRetention
		}

		green := color.New(color.FgGreen).SprintFunc()

		if dryRun {
			fmt.Printf("%s\n", color.YellowString("DRY RUN MODE - No backups will be deleted"))
			cutoff := time.Now().Add(-retention)
			metas, err := eng.Backups()
			if err != nil {
				fatal("%v", err)
			}
			count := 0
			for _, meta := range metas {
				if meta.CreatedAt.After(cutoff) {
					continue
				}
				fmt.Printf("  would delete %s (created %s)\n",
					meta.BackupID, meta.CreatedAt.Local().Format("2006-01-02 15:04"))
				count++
			}
			fmt.Printf("\nWould delete %d backup(s)\n", count)
			return
		}

		runErr := withProcessLock(cfg, func() error {
			deleted, err := eng.Cleanup(ctx, retention)
			if err != nil {
				return err
			}
			fmt.Printf("%s Deleted %d backup(s) older than %s\n", green("✓"), len(deleted), retention)
			for _, id := range deleted {
				fmt.Printf("    %s\n", id)
			}
			return nil
		})
		if runErr != nil {
			fatal("%v", runErr)
		}
	},
}

func init() {
	cleanupCmd.Flags().Duration("older-than", 0, "Delete backups older than this duration (default: configured retention)")
	cleanupCmd.Flags().Bool("dry-run", false, "Preview deletions without committing")
	rootCmd.AddCommand(cleanupCmd)
}
