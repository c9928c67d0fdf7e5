package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/psu-rc/rcops/internal/domain"
)

func newProfileCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage transfer profiles",
	}

	cmd.AddCommand(newProfileListCmd(app), newProfileShowCmd(app), newProfileInitCmd(app))

	return cmd
}

func newProfileListCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List transfer profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profiles, err := app.profiles.List(cmd.Context())
			if err != nil {
				return err
			}

			source := ""
			if len(profiles) == 0 {
				profiles = domain.BuiltinProfiles()
				source = "\t(built-in)"
			}
			for _, profile := range profiles {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s%s\n", profile.Name, profile.Label, source)
			}
			return nil
		},
	}
}

func newProfileShowCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show NAME",
		Short: "Show one transfer profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := app.loadProfile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			writeProfile(cmd.OutOrStdout(), profile)
			return nil
		},
	}
}

func newProfileInitCmd(app *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the built-in transfer jobs to the profiles file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, profile := range domain.BuiltinProfiles() {
				_, err := app.profiles.GetByName(cmd.Context(), profile.Name)
				switch {
				case err == nil && !force:
					_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Kept existing profile %s\n", profile.Name)
					continue
				case err != nil && !errors.Is(err, domain.ErrProfileNotFound):
					return err
				}

				if err := app.profiles.Save(cmd.Context(), profile); err != nil {
					return fmt.Errorf("save profile %s: %w", profile.Name, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote profile %s\n", profile.Name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite profiles that already exist")

	return cmd
}

func writeProfile(w io.Writer, profile domain.TransferProfile) {
	_, _ = fmt.Fprintf(w, "name: %s\n", profile.Name)
	_, _ = fmt.Fprintf(w, "client_id: %s\n", profile.ClientID)
	_, _ = fmt.Fprintf(w, "source: %s\n", profile.SourceEndpointID)
	if profile.DestEndpointID != "" {
		_, _ = fmt.Fprintf(w, "destination: %s\n", profile.DestEndpointID)
	}
	if profile.Label != "" {
		_, _ = fmt.Fprintf(w, "label: %s\n", profile.Label)
	}
	if profile.SyncLevel != "" {
		_, _ = fmt.Fprintf(w, "sync_level: %s\n", profile.SyncLevel)
	}
	_, _ = fmt.Fprintf(w, "credential_key: %s\n", profile.CredentialKey)
	_, _ = fmt.Fprintf(w, "wait: %t\n", profile.Wait)
	if profile.RequiresArgs() {
		_, _ = fmt.Fprintln(w, "arguments: DATA_LOCATION TODAY")
	}

	for _, item := range profile.Items {
		recursive := ""
		if item.Recursive {
			recursive = " (recursive)"
		}
		_, _ = fmt.Fprintf(w, "item: %s -> %s%s\n", item.Source, item.Dest, recursive)
	}
	for _, rule := range profile.FilterRules {
		_, _ = fmt.Fprintf(w, "filter: %s %s %s\n", rule.Method, rule.Type, strings.TrimSpace(rule.Name))
	}
}
