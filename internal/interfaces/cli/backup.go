package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newBackupCommand(h *serviceHandle) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Inspect plugin backups",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list <plugin-id>",
		Short: "List backups for a plugin, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(renderBackups(h.get().Service.ListBackups(args[0])))
			return nil
		},
	})
	return cmd
}

func newRollbackCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "rollback <plugin-id> <backup-path>",
		Short: "Restore a plugin tree from a backup",
		Long: `Restore every file recorded in a backup over the live plugin tree.

A new safety backup of the current state is captured first, so the
rollback itself can be undone.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			result := h.get().Service.Rollback(cmd.Context(), args[0], args[1])
			for _, f := range result.AppliedFiles {
				fmt.Printf("  %s %s\n", okStyle.Render("restored"), f)
			}
			for _, f := range result.SkippedFiles {
				fmt.Printf("  %s %s\n", errStyle.Render("skipped"), f)
			}
			if result.BackupPath != "" {
				fmt.Println(dimStyle.Render("pre-rollback state saved to: " + result.BackupPath))
			}
			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		},
	}
}
