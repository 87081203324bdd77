package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var backupsCmd = &cobra.Command{
	Use:   "backups",
	Short: "List backups for this project",
	Long: `List every backup recorded under the project's hidden dedup directory,
newest first, with the duplicate group each one was taken for.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		eng, _, _, err := newEngine(ctx)
		if err != nil {
			fatal("%v", err)
		}
		defer eng.Close()

		metas, err := eng.Backups()
		if err != nil {
			fatal("%v", err)
		}

		if len(metas) == 0 {
			fmt.Println("No backups")
			return
		}

		fmt.Printf("%-26s %-10s %6s  %s\n", "BACKUP", "GROUP", "FILES", "CREATED")
		for _, meta := range metas {
			fmt.Printf("%-26s %-10s %6d  %s\n",
				color.CyanString(meta.BackupID), meta.GroupID, len(meta.Files),
				meta.CreatedAt.Local().Format("2006-01-02 15:04:05"))
		}
	},
}

func init() {
	rootCmd.AddCommand(backupsCmd)
}
