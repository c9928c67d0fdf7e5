package cmd

import (
	"context"

	"github.com/spf13/cobra"
)

// Execute runs the root command under ctx; cancelling ctx stops any poll or
// login in progress.
func Execute(ctx context.Context) error {
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	app := newApp()

	rootCmd := &cobra.Command{
		Use:           "rcops",
		Short:         "Research computing ops: Slurm accounting pulls and Globus transfers",
		Long:          "rcops pulls last month's Slurm accounting records for an account and runs the group's Globus transfer jobs (login, submit, wait, list) from the terminal.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return app.wire(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.configFile, "config", "", "Config file (default ~/.rcops/config.toml)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug|info|warn|error)")
	_ = app.cfg.BindPFlag(keyLogLevel, rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(
		newVersionCmd(app),
		newAccountingCmd(app),
		newAuthCmd(app),
		newLsCmd(app),
		newTransferCmd(app),
		newTaskCmd(app),
		newProfileCmd(app),
	)

	return rootCmd
}
