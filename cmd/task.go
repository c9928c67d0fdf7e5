package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	statusadapter "github.com/psu-rc/rcops/internal/adapters/render/status"
)

func newTaskCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect the local transfer task history",
	}

	cmd.AddCommand(newTaskListCmd(app))

	return cmd
}

func newTaskListCmd(app *app) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List submitted transfer tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := app.tasks.List(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, toRecordOutputs(records))
			}

			rendered, err := statusadapter.RenderHistory(records, statusadapter.RenderOptions{Now: app.now()})
			if err != nil {
				return fmt.Errorf("render task history: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")

	return cmd
}
