package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/psu-rc/rcops/internal/version"
)

func newVersionCmd(app *app) *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			if !verbose {
				_, err := fmt.Fprintln(out, version.Version)
				return err
			}

			configFile := app.cfg.ConfigFileUsed()
			if configFile == "" {
				configFile = "(none)"
			}
			_, err := fmt.Fprintf(out, "rcops %s\ngo: %s %s/%s\nconfig: %s\n",
				version.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH, configFile)
			return err
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print the Go runtime and config file in use")
	return cmd
}
