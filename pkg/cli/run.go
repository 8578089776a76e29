package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/pixperk/flockq/pkg/queue"
	"github.com/spf13/cobra"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Timeout       time.Duration
	MaxExecutions int
	PerPeriod     time.Duration
	ActivityLog   bool
	SyncRemoval   bool
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run -- <command> [args...]",
		Short: "Wait for a turn in the queue, then run a command",
		Long: `Join the named queue and run the command once every earlier contender
has finished. Exits 3 if --timeout passes before the turn comes, otherwise
with the command's exit code.

Example:
  flockq run -n deploy -- ./deploy.sh
  flockq run -n api --timeout 30s --max-executions 5 --per-period 1s -- curl -s https://example.com`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInQueue(cmd, opts, args)
		},
	}

	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 0, "maximum wait for the turn (0 waits forever)")
	cmd.Flags().IntVar(&opts.MaxExecutions, "max-executions", 0, "rate limit: turns allowed per --per-period")
	cmd.Flags().DurationVar(&opts.PerPeriod, "per-period", 0, "rate limit: period for --max-executions")
	cmd.Flags().BoolVar(&opts.ActivityLog, "activity-log", false, "append lifecycle events to <dir>/<name>.log")
	cmd.Flags().BoolVar(&opts.SyncRemoval, "sync-removal", false, "remove the ticket before exiting the turn")

	return cmd
}

func runInQueue(cmd *cobra.Command, opts *RunOptions, args []string) error {
	flags := cmd.Flags()
	q, err := opts.openQueue(func(qc *queue.Config) {
		if flags.Changed("max-executions") || flags.Changed("per-period") {
			qc.MaxExecutions = opts.MaxExecutions
			qc.PerPeriod = opts.PerPeriod
		}
		if flags.Changed("activity-log") {
			qc.ActivityLog = opts.ActivityLog
		}
		if flags.Changed("sync-removal") {
			qc.SyncRemoval = opts.SyncRemoval
		}
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := q.Close(); closeErr != nil {
			opts.logger.Error("error closing queue", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts.logger.Debug("joining queue", "queue", q.Name(), "holder", q.Holder(), "timeout", opts.Timeout)

	passed, err := q.Enter(ctx, opts.Timeout, func() error {
		child := exec.CommandContext(context.WithoutCancel(ctx), args[0], args[1:]...)
		child.Stdin = cmd.InOrStdin()
		child.Stdout = cmd.OutOrStdout()
		child.Stderr = cmd.ErrOrStderr()
		return child.Run()
	})

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		return NewExitError(exitErr.ExitCode(), fmt.Sprintf("%s exited with status %d", args[0], exitErr.ExitCode()))
	case err != nil:
		return WrapExitError(ExitFailure, "turn failed", err)
	case !passed:
		return NewExitError(ExitTimeout, fmt.Sprintf("timed out after %s waiting for queue %s", opts.Timeout, q.Name()))
	}
	return nil
}
