package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	plugindomain "github.com/plugsmith/plugsmith/internal/core/domain/plugin"
	"github.com/plugsmith/plugsmith/internal/application/services"
)

func newListCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed plugins",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println(renderInstalled(h.get().Service.ListInstalled()))
			return nil
		},
	}
}

func newInstallCommand(h *serviceHandle) *cobra.Command {
	var token string
	var symlink bool
	var local bool

	cmd := &cobra.Command{
		Use:   "install <source>",
		Short: "Install a plugin from a repository or local directory",
		Long: `Install a plugin bundle.

The source is either a repository locator (git@host:owner/repo or
https://host/owner/repo) or, with --local, a directory containing a
plugin.yaml manifest.

Examples:
  plugsmith install https://github.com/acme/skills-pack
  plugsmith install --local ./my-plugin --symlink`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := services.InstallRequest{
				Source: args[0],
				Kind:   plugindomain.SourceRemote,
				Token:  token,
			}
			if local {
				req.Kind = plugindomain.SourceLocal
				if symlink {
					req.LinkMode = plugindomain.LinkModeSymlink
				} else {
					req.LinkMode = plugindomain.LinkModeCopy
				}
			}

			result := runInstallWithProgress(cmd.Context(), h.get().Service, req)
			if !result.Success {
				return fmt.Errorf("install failed: %s", result.Error)
			}
			fmt.Printf("installed %s %s\n", idStyle.Render(result.Plugin.ID), result.Plugin.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Access token for private repositories")
	cmd.Flags().BoolVar(&local, "local", false, "Install from a local directory")
	cmd.Flags().BoolVar(&symlink, "symlink", false, "Link instead of copy (local installs only)")
	return cmd
}

func newUninstallCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "uninstall <plugin-id>",
		Short: "Remove an installed plugin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := h.get().Service.Uninstall(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				fmt.Println(dimStyle.Render(fmt.Sprintf("plugin %s is not installed", args[0])))
				return nil
			}
			fmt.Printf("uninstalled %s\n", args[0])
			return nil
		},
	}
}
