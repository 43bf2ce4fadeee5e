package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/plugsmith/plugsmith/internal/infrastructure/gitremote"
)

func newAuthCommand(h *serviceHandle) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage and verify remote access",
	}
	cmd.AddCommand(newAuthLoginCommand(h))
	cmd.AddCommand(newAuthLogoutCommand(h))
	cmd.AddCommand(newAuthValidateCommand(h))
	cmd.AddCommand(newAuthAccessCommand(h))
	cmd.AddCommand(newAuthStatusCommand(h))
	return cmd
}

func newAuthLoginCommand(h *serviceHandle) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Validate and store an access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			check, err := h.get().Service.StoreCredential(cmd.Context(), token)
			if err != nil {
				return err
			}
			if !check.Valid {
				return fmt.Errorf("credential rejected: %s", check.Message)
			}
			fmt.Printf("logged in as %s\n", idStyle.Render(check.Login))
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Access token to store")
	return cmd
}

func newAuthLogoutCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Clear the stored access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := h.get().Service.ClearCredential(); err != nil {
				return err
			}
			fmt.Println("credential cleared")
			return nil
		},
	}
}

func newAuthValidateCommand(h *serviceHandle) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a credential against the identity endpoint",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			check, err := h.get().Service.ValidateCredential(cmd.Context(), token)
			if err != nil {
				return err
			}
			if check.Valid {
				fmt.Printf("%s authenticated as %s\n", okStyle.Render("valid:"), check.Login)
			} else {
				fmt.Printf("%s %s\n", errStyle.Render("invalid:"), check.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to validate (default: stored credential)")
	return cmd
}

func newAuthAccessCommand(h *serviceHandle) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "access <owner/repo>",
		Short: "Check repository reachability and visibility",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parts := strings.SplitN(args[0], "/", 2)
			if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
				return fmt.Errorf("expected owner/repo, got %q", args[0])
			}
			access, err := h.get().Service.CheckRepositoryAccess(cmd.Context(), token, parts[0], parts[1])
			if err != nil {
				return err
			}
			switch access.State {
			case gitremote.AccessOK:
				visibility := "public"
				if access.Private {
					visibility = "private"
				}
				fmt.Printf("%s %s repository is reachable\n", okStyle.Render("ok:"), visibility)
			default:
				fmt.Printf("%s %s\n", errStyle.Render(string(access.State)+":"), access.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "Token to check with (default: stored credential)")
	return cmd
}

func newAuthStatusCommand(h *serviceHandle) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report git client availability",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			avail := h.get().Service.CheckGitAvailability(cmd.Context())
			switch {
			case !avail.Available:
				fmt.Printf("%s %s\n", errStyle.Render("unavailable:"), avail.Message)
			case !avail.MeetsMinimum:
				fmt.Printf("%s git %s (%s)\n", errStyle.Render("outdated:"), avail.Version, avail.Message)
			default:
				fmt.Printf("%s git %s\n", okStyle.Render("ok:"), avail.Version)
			}
			return nil
		},
	}
}
