package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/takeoff-app/takeoff/dashboard"
)

func newLoginCmd(ctx *Context) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a backend bearer token after checking it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if token == "" {
				return fmt.Errorf("--token is required")
			}
			api, _, err := ctx.client()
			if err != nil {
				return err
			}
			u, err := api.Me(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("login: %w", err)
			}
			creds := &Credentials{Token: token, UserID: u.UserID, Email: u.Email, Name: u.FullName}
			if err := creds.Save(ctx.CredentialsPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", u.FullName, u.Email)
			if !u.HasCompletedOnboarding {
				fmt.Fprintln(cmd.OutOrStdout(), "Onboarding is not finished yet; complete the assessment in the web app.")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "backend bearer token")
	return cmd
}

func newLogoutCmd(ctx *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			existed, err := RemoveCredentials(ctx.CredentialsPath)
			if err != nil {
				return err
			}
			if existed {
				fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
			}
			return nil
		},
	}
}

func newWhoamiCmd(ctx *Context) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the profile and pillar levels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := ctx.session()
			if err != nil {
				return err
			}
			u, err := s.api.Me(cmd.Context(), s.creds.Token)
			if err != nil {
				return err
			}
			total, avg, pillars := dashboard.Stats(u)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s <%s>\n", u.FullName, u.Email)
			fmt.Fprintf(out, "Total XP: %d  Average level: %d\n", total, avg)
			for _, p := range pillars {
				fmt.Fprintf(out, "  %s %-16s Lv %-3d %5d XP\n", p.Icon, p.Label, p.Level, p.XP)
			}
			return nil
		},
	}
}
