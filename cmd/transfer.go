package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	statusadapter "github.com/psu-rc/rcops/internal/adapters/render/status"
	"github.com/psu-rc/rcops/internal/application"
	"github.com/psu-rc/rcops/internal/domain"
)

var (
	errConsentRequired = errors.New("transfer not submitted: consent required (rerun with --consent-login)")
	errTransferFailed  = errors.New("transfer failed, check the Globus dashboard for details")
)

type pollFlags struct {
	interval time.Duration
	timeout  time.Duration
	maxPolls int
}

func (f *pollFlags) register(cmd *cobra.Command) {
	cmd.Flags().DurationVar(&f.interval, "poll-interval", application.DefaultPollInterval, "Delay between status polls")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	cmd.Flags().IntVar(&f.maxPolls, "max-polls", 0, "Give up after this many polls (0 is unlimited)")
}

func (f pollFlags) options(cmd *cobra.Command, app *app) application.PollOptions {
	opts := application.PollOptions{
		Interval: f.interval,
		Timeout:  f.timeout,
		MaxPolls: f.maxPolls,
	}
	if !cmd.Flags().Changed("poll-interval") {
		opts.Interval = app.cfg.GetDuration(keyPollInterval)
	}
	if !cmd.Flags().Changed("timeout") {
		opts.Timeout = app.cfg.GetDuration(keyPollTimeout)
	}
	return opts
}

func newTransferCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Submit and follow Globus transfer tasks",
	}

	cmd.AddCommand(newTransferSubmitCmd(app), newTransferStatusCmd(app), newTransferWaitCmd(app))

	return cmd
}

func newTransferSubmitCmd(app *app) *cobra.Command {
	var profileName string
	var wait bool
	var dryRun bool
	var consentLogin bool
	var poll pollFlags

	cmd := &cobra.Command{
		Use:   "submit [DATA_LOCATION TODAY]",
		Short: "Submit a profile's transfer job",
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("expected DATA_LOCATION and TODAY together, got %d argument(s)", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			profile, err := app.loadProfile(cmd.Context(), profileName)
			if err != nil {
				return err
			}

			var transferArgs domain.TransferArgs
			if len(args) == 2 {
				transferArgs = domain.TransferArgs{Location: args[0], Today: args[1]}
			}
			req, err := profile.Expand(transferArgs)
			if err != nil {
				return err
			}
			if err := req.Validate(); err != nil {
				return err
			}

			tokens, err := app.authorize(cmd, profile, transferScopes())
			if err != nil {
				return err
			}
			svc := app.transferService(cmd, tokens)

			if err := svc.VerifyEndpoints(cmd.Context(), req); err != nil {
				return err
			}

			if dryRun {
				return runFilterPreview(cmd, svc, req)
			}

			result, err := svc.Submit(cmd.Context(), profile.Name, req)
			if err != nil {
				return fmt.Errorf("submit transfer: %w", err)
			}
			if result.Consent != nil {
				if !consentLogin {
					return errConsentRequired
				}
				svc, result, err = resubmitAfterConsent(cmd, app, profile, req, result.Consent)
				if err != nil {
					return err
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "submitted transfer, task_id=%s\n", result.TaskID)

			if !cmd.Flags().Changed("wait") {
				wait = profile.Wait
			}
			if !wait {
				return nil
			}
			return awaitTask(cmd, app, svc, result.TaskID, poll.options(cmd, app))
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the task to finish (default from the profile)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Preview which source entries the filter rules keep without submitting")
	cmd.Flags().BoolVar(&consentLogin, "consent-login", false, "On a consent error, log in again with the required scopes and resubmit once")
	poll.register(cmd)
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

// resubmitAfterConsent drops the cached grant, logs in again asking for the
// scopes the service named, and submits the same request one more time.
func resubmitAfterConsent(
	cmd *cobra.Command,
	app *app,
	profile domain.TransferProfile,
	req domain.TransferRequest,
	consent *domain.ConsentRequiredError,
) (*application.TransferService, application.SubmitResult, error) {
	scopes := consent.RequiredScopes
	if len(scopes) == 0 {
		scopes = transferScopes()
	}

	auth, closeAuth, err := app.authService(cmd, profile, false)
	if err != nil {
		return nil, application.SubmitResult{}, err
	}
	defer closeAuth()

	tokens, _, err := auth.Login(cmd.Context(), scopes, true)
	if err != nil {
		return nil, application.SubmitResult{}, fmt.Errorf("consent login for profile %s: %w", profile.Name, err)
	}

	svc := app.transferService(cmd, tokens)
	result, err := svc.Submit(cmd.Context(), profile.Name, req)
	if err != nil {
		return nil, application.SubmitResult{}, fmt.Errorf("submit transfer: %w", err)
	}
	if result.Consent != nil {
		return nil, application.SubmitResult{}, fmt.Errorf("transfer not submitted after consent login: %w", result.Consent)
	}
	return svc, result, nil
}

func runFilterPreview(cmd *cobra.Command, svc *application.TransferService, req domain.TransferRequest) error {
	decisions, err := svc.PreviewFilters(cmd.Context(), req)
	if err != nil {
		return err
	}

	rendered, err := statusadapter.RenderFilterPreview(decisions)
	if err != nil {
		return fmt.Errorf("render filter preview: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}

func newTransferStatusCmd(app *app) *cobra.Command {
	var profileName string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status TASK_ID",
		Short: "Show a transfer task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := profileTransferService(cmd, app, profileName)
			if err != nil {
				return err
			}

			task, err := svc.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return writeTask(cmd, app, task, asJSON)
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON")
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func newTransferWaitCmd(app *app) *cobra.Command {
	var profileName string
	var poll pollFlags

	cmd := &cobra.Command{
		Use:   "wait TASK_ID",
		Short: "Poll a transfer task until it succeeds or fails",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := profileTransferService(cmd, app, profileName)
			if err != nil {
				return err
			}
			return awaitTask(cmd, app, svc, args[0], poll.options(cmd, app))
		},
	}

	cmd.Flags().StringVar(&profileName, "profile", "", "Transfer profile name")
	poll.register(cmd)
	_ = cmd.MarkFlagRequired("profile")

	return cmd
}

func profileTransferService(cmd *cobra.Command, app *app, profileName string) (*application.TransferService, error) {
	profile, err := app.loadProfile(cmd.Context(), profileName)
	if err != nil {
		return nil, err
	}

	tokens, err := app.authorize(cmd, profile, transferScopes())
	if err != nil {
		return nil, err
	}
	return app.transferService(cmd, tokens), nil
}

// awaitTask shows a spinner on a terminal and plain status lines otherwise.
func awaitTask(cmd *cobra.Command, app *app, svc *application.TransferService, taskID string, opts application.PollOptions) error {
	out := cmd.OutOrStdout()

	var task domain.TransferTask
	var err error
	if isTerminal(out) {
		task, err = runWaitSpinner(cmd.Context(), out, taskID, func(ctx context.Context, onPoll func(domain.TransferTask)) (domain.TransferTask, error) {
			opts.OnPoll = onPoll
			return svc.AwaitCompletion(ctx, taskID, opts)
		})
	} else {
		_, _ = fmt.Fprintf(out, "Waiting for transfer to complete with task_id: %s\n", taskID)
		opts.OnPoll = func(task domain.TransferTask) {
			if !task.Status.Terminal() {
				_, _ = fmt.Fprintf(out, "Transfer status: %s. Waiting %s...\n", task.Status, opts.Interval)
			}
		}
		task, err = svc.AwaitCompletion(cmd.Context(), taskID, opts)
	}
	if err != nil {
		return err
	}

	if err := writeTask(cmd, app, task, false); err != nil {
		return err
	}
	if task.Status == domain.TaskFailed {
		return fmt.Errorf("task %s: %w", taskID, errTransferFailed)
	}
	_, _ = fmt.Fprintln(out, "Transfer completed successfully.")
	return nil
}

func writeTask(cmd *cobra.Command, app *app, task domain.TransferTask, asJSON bool) error {
	if asJSON {
		return writeJSON(cmd, toTaskOutput(task))
	}

	rendered, err := statusadapter.RenderTask(task, statusadapter.RenderOptions{Now: app.now()})
	if err != nil {
		return fmt.Errorf("render task: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
	return err
}
