package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/psu-rc/rcops/internal/domain"
)

func newAuthCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage Globus credentials per profile",
	}

	cmd.AddCommand(newAuthLoginCmd(app), newAuthLogoutCmd(app))

	return cmd
}

func newAuthLoginCmd(app *app) *cobra.Command {
	var profileName string
	var force bool
	var callback bool

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authorize a profile's Globus app and cache its refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := app.loadProfile(cmd.Context(), profileName)
			if err != nil {
				return err
			}

			auth, closeAuth, err := app.authService(cmd, profile, callback)
			if err != nil {
				return err
			}
			defer closeAuth()

			_, state, err := auth.Login(cmd.Context(), transferScopes(), force)
			if err != nil {
				return fmt.Errorf("login profile %s: %w", profile.Name, err)
			}

			if state == domain.AuthStateTokenLoaded {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s is already authorized (use --force to log in again)\n", profile.Name)
				return nil
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Authenticated profile %s\n", profile.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	cmd.Flags().BoolVar(&force, "force", false, "Discard the cached token and log in again")
	cmd.Flags().BoolVar(&callback, "callback", false, "Receive the code on a loopback redirect instead of pasting it")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func newAuthLogoutCmd(app *app) *cobra.Command {
	var profileName string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Delete a profile's cached token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := app.loadProfile(cmd.Context(), profileName)
			if err != nil {
				return err
			}

			auth, closeAuth, err := app.authService(cmd, profile, false)
			if err != nil {
				return err
			}
			defer closeAuth()

			if err := auth.Logout(cmd.Context()); err != nil {
				return fmt.Errorf("logout profile %s: %w", profile.Name, err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged out profile %s\n", profile.Name)
			return nil
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}
