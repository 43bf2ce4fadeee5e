package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/plugsmith/plugsmith/internal/interfaces/di"
)

// NewRootCommand builds the plugsmith command tree. The container is
// constructed once here and threaded into every subcommand.
func NewRootCommand(version, commit, date string) *cobra.Command {
	var logLevel string
	var container *di.Container

	rootCmd := &cobra.Command{
		Use:   "plugsmith",
		Short: "Plugsmith - versioned content plugin manager",
		Long: `Plugsmith manages versioned content plugin bundles on the local filesystem:
installing them from git repositories or local directories, tracking what is
installed, detecting drift against upstream, and applying selective updates
with backup and rollback.`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			c, err := di.NewContainer(logLevel)
			if err != nil {
				return err
			}
			container = c
			return c.Service.Initialize(cmd.Context())
		},
	}
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (trace, debug, info, warn, error)")

	svc := func() *serviceHandle { return &serviceHandle{container: &container} }

	rootCmd.AddCommand(newListCommand(svc()))
	rootCmd.AddCommand(newInstallCommand(svc()))
	rootCmd.AddCommand(newUninstallCommand(svc()))
	rootCmd.AddCommand(newUpdateCommand(svc()))
	rootCmd.AddCommand(newDiffCommand(svc()))
	rootCmd.AddCommand(newBackupCommand(svc()))
	rootCmd.AddCommand(newRollbackCommand(svc()))
	rootCmd.AddCommand(newAuthCommand(svc()))

	return rootCmd
}

// serviceHandle defers container access until after PersistentPreRunE has
// populated it.
type serviceHandle struct {
	container **di.Container
}

func (h *serviceHandle) get() *di.Container {
	return *h.container
}
