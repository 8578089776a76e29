package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/pixperk/flockq/pkg/fsm"
	"github.com/pixperk/flockq/pkg/types"
	"gopkg.in/yaml.v3"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Command ran in its turn and failed
	ExitCommandError = 2 // Bad flags, unreadable queue, etc.
	ExitTimeout      = 3 // Turn not reached before --timeout
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// queue listing as printed by status
type QueueStatus struct {
	Queue   string        `json:"queue" yaml:"queue"`
	Path    string        `json:"path" yaml:"path"`
	Next    uint64        `json:"next_ticket" yaml:"next_ticket"`
	Tickets []TicketEntry `json:"tickets" yaml:"tickets"`
}

type TicketEntry struct {
	Position int    `json:"position" yaml:"position"`
	Number   uint64 `json:"number" yaml:"number"`
	Holder   string `json:"holder" yaml:"holder"`
}

func NewQueueStatus(name, path string, tickets types.Tickets) QueueStatus {
	stats := fsm.NewFSM(tickets).Stats()
	st := QueueStatus{Queue: name, Path: path, Next: stats.MaxNumber + 1, Tickets: []TicketEntry{}}
	if stats.Tickets == 0 {
		st.Next = fsm.FirstTicket
	}
	for i, tk := range tickets {
		st.Tickets = append(st.Tickets, TicketEntry{Position: i, Number: tk.Number, Holder: tk.Holder})
	}
	return st
}

// writes the status in the requested format
func WriteStatus(w io.Writer, format string, st QueueStatus) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(st)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(st); err != nil {
			return err
		}
		return enc.Close()
	default:
		if len(st.Tickets) == 0 {
			_, err := fmt.Fprintf(w, "queue %s is empty\n", st.Queue)
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POS\tTICKET\tHOLDER")
		for _, e := range st.Tickets {
			fmt.Fprintf(tw, "%d\t%d\t%s\n", e.Position, e.Number, e.Holder)
		}
		return tw.Flush()
	}
}
