package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/psu-rc/rcops/internal/application"
	"github.com/psu-rc/rcops/internal/domain"
)

func newAccountingCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounting",
		Short: "Slurm accounting exports",
	}

	cmd.AddCommand(newAccountingPullCmd(app))

	return cmd
}

func newAccountingPullCmd(app *app) *cobra.Command {
	var account string
	var date string
	var outputDir string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Export the prior month's job records for an account to CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("account") {
				account = app.cfg.GetString(keyAccountingAccount)
			}
			if !cmd.Flags().Changed("output-dir") {
				outputDir = app.cfg.GetString(keyAccountingOutput)
			}

			var reference time.Time
			if date != "" {
				parsed, err := domain.ParseDate(date)
				if err != nil {
					return err
				}
				reference = parsed
			}

			report, err := app.accountingService().PullPriorMonth(cmd.Context(), application.AccountingRequest{
				Account:   account,
				Reference: reference,
				OutputDir: outputDir,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Running accounting records for %s\n", report.Window.Label())
			_, _ = fmt.Fprintf(out, "%d records written to file %s\n", report.Records, report.OutputPath)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "pches", "Slurm account to export")
	cmd.Flags().StringVar(&date, "date", "", "Reference date YYYY-MM-DD (default today); the month before it is exported")
	cmd.Flags().StringVar(&outputDir, "output-dir", ".", "Directory for the CSV file")

	return cmd
}
