package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUpdateCommand(h *serviceHandle) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Check for and apply plugin updates",
	}
	cmd.AddCommand(newUpdateCheckCommand(h))
	cmd.AddCommand(newUpdateApplyCommand(h))
	return cmd
}

func newUpdateCheckCommand(h *serviceHandle) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "check <plugin-id>",
		Short: "Check a plugin for upstream changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := h.get().Service.CheckForUpdates(cmd.Context(), args[0], token)
			if err != nil {
				return err
			}
			fmt.Print(renderReport(report))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token for private repositories")
	return cmd
}

func newUpdateApplyCommand(h *serviceHandle) *cobra.Command {
	var token string
	var files []string
	var noBackup bool

	cmd := &cobra.Command{
		Use:   "apply <plugin-id>",
		Short: "Apply selected upstream changes to the local tree",
		Long: `Apply upstream file versions into the local plugin tree.

By default a full backup of the plugin is captured first; pass --no-backup
to skip it. Without --files, every changed file from a fresh check is
applied.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc := h.get().Service
			selected := files
			if len(selected) == 0 {
				report, err := svc.CheckForUpdates(cmd.Context(), args[0], token)
				if err != nil {
					return err
				}
				if !report.HasUpdate {
					fmt.Println(okStyle.Render("nothing to apply"))
					return nil
				}
				for _, f := range report.AllFiles() {
					selected = append(selected, f.Path)
				}
			}

			result := svc.ApplyUpdates(cmd.Context(), args[0], selected, !noBackup, token)
			for _, f := range result.AppliedFiles {
				fmt.Printf("  %s %s\n", okStyle.Render("applied"), f)
			}
			for _, f := range result.SkippedFiles {
				fmt.Printf("  %s %s\n", errStyle.Render("skipped"), f)
			}
			if result.BackupPath != "" {
				fmt.Println(dimStyle.Render("backup: " + result.BackupPath))
			}
			if !result.Success {
				return fmt.Errorf("%s", result.Error)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token for private repositories")
	cmd.Flags().StringSliceVar(&files, "files", nil, "Relative paths to apply (default: all changed files)")
	cmd.Flags().BoolVar(&noBackup, "no-backup", false, "Skip the backup before applying")
	return cmd
}

func newDiffCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <plugin-id> <path>",
		Short: "Show the diff of one file against upstream",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			diff, ok := h.get().Service.FileDiff(cmd.Context(), args[0], args[1])
			if !ok {
				fmt.Println(dimStyle.Render("no diff available"))
				return nil
			}
			fmt.Println(diff)
			return nil
		},
	}
}
