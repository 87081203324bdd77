package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <backup-id>",
	Short: "Restore the files recorded in a backup",
	Long: `Restore every file captured in a backup to its pre-apply contents.

Each backup copy is verified against its recorded SHA-256 before anything
is written, so a damaged backup is reported instead of half-restored.
Files the apply created (and the backup therefore has no copy of) are
removed.

Examples:
  dedup rollback 20260830T142212-1a2b3c4d
  dedup backups                 # List available backup ids`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
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

		runErr := withProcessLock(cfg, func() error {
			restored, err := eng.Rollback(ctx, args[0])
			if err != nil {
				return err
			}
			green := color.New(color.FgGreen).SprintFunc()
			fmt.Printf("%s Restored %d file(s) from %s\n", green("✓"), len(restored), args[0])
			for _, path := range restored {
				fmt.Printf("    %s\n", path)
			}
			return nil
		})
		if runErr != nil {
			fatal("%v", runErr)
		}
	},
}

func init() {
	rootCmd.AddCommand(rollbackCmd)
}
