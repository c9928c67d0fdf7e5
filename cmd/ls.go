package cmd

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	statusadapter "github.com/psu-rc/rcops/internal/adapters/render/status"
	"github.com/psu-rc/rcops/internal/domain"
)

func newLsCmd(app *app) *cobra.Command {
	var profileName string
	var endpoint string
	var dir string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List a directory on one of a profile's collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := app.loadProfile(cmd.Context(), profileName)
			if err != nil {
				return err
			}

			endpointID, err := resolveEndpoint(profile, endpoint)
			if err != nil {
				return err
			}

			tokens, err := app.authorize(cmd, profile, transferScopes())
			if err != nil {
				return err
			}

			entries, err := app.transferService(cmd, tokens).List(cmd.Context(), endpointID, dir)
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, toEntryOutputs(entries))
			}

			rendered, err := statusadapter.RenderListing(endpointID, dir, entries, statusadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render listing: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	cmd.Flags().StringVar(&endpoint, "endpoint", "source", "Collection to list: source, dest or a collection UUID")
	cmd.Flags().StringVar(&dir, "path", "~/", "Directory path on the collection")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func resolveEndpoint(profile domain.TransferProfile, raw string) (string, error) {
	var id string
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "source", "src":
		id = profile.SourceEndpointID
	case "dest", "destination", "dst":
		id = profile.DestEndpointID
		if id == "" {
			return "", fmt.Errorf("profile %s has no destination collection", profile.Name)
		}
	default:
		id = strings.TrimSpace(raw)
	}

	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("collection id %q is not a uuid", id)
	}
	return id, nil
}
