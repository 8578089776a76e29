package cli

import (
	"github.com/spf13/cobra"
)

func NewStatusCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List queued tickets, head first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.openQueue(nil)
			if err != nil {
				return err
			}
			defer q.Close()

			tickets, err := q.Snapshot(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to read queue", err)
			}
			return WriteStatus(cmd.OutOrStdout(), opts.Format, NewQueueStatus(q.Name(), q.Path(), tickets))
		},
	}
}

func NewClearCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Drop every queued ticket",
		Long: `Empty the queue file. Waiting contenders rejoin at the tail on their next
poll, so clearing recovers from tickets left behind by killed processes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := opts.openQueue(nil)
			if err != nil {
				return err
			}
			defer q.Close()

			if err := q.Clear(cmd.Context()); err != nil {
				return WrapExitError(ExitCommandError, "failed to clear queue", err)
			}
			opts.logger.Info("queue cleared", "queue", q.Name())
			return nil
		},
	}
}
