package cli

import (
	"fmt"
	"slices"

	"github.com/pixperk/flockq/pkg/config"
	"github.com/pixperk/flockq/pkg/logger"
	"github.com/pixperk/flockq/pkg/queue"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Name    string
	Dir     string
	Verbose bool
	Format  string // "text" | "json" | "yaml"

	cfg    *config.Config
	logger logger.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the flockq CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flockq",
		Short: "flockq - FIFO critical sections over a shared file",
		Long: `Serialize commands across processes in strict arrival order.

Every contender appends a ticket to <dir>/<name>.queue and runs once its
ticket reaches the head. Configuration comes from FLOCKQ_* environment
variables (a .env file is honoured) and can be overridden with flags.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return opts.load()
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.Name, "name", "n", "", "queue name (required)")
	cmd.PersistentFlags().StringVar(&opts.Dir, "dir", "", "queue directory (overrides FLOCKQ_DIR)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")
	_ = cmd.MarkPersistentFlagRequired("name")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))

	return cmd
}

func (o *RootOptions) load() error {
	cfg, err := config.Load()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load configuration", err)
	}
	if o.Dir != "" {
		cfg.Queue.Dir = o.Dir
	}

	level := cfg.Log.Level
	if o.Verbose {
		level = "debug"
	}

	o.cfg = cfg
	o.logger = logger.New(level, cfg.Log.Encoding)
	return nil
}

// opens the queue selected by the global flags
func (o *RootOptions) openQueue(mutate func(*queue.Config)) (*queue.Queue, error) {
	qc := o.cfg.QueueConfig(o.Name, o.logger)
	if mutate != nil {
		mutate(&qc)
	}
	q, err := queue.New(qc)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return q, nil
}
