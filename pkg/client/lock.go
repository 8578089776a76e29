package client

import (
	"context"
	"sync"

	"github.com/pixperk/flockq/pkg/types"
)

type Lock struct {
	ticket   types.Ticket
	acquired chan types.Ticket
	release  chan struct{}
	once     sync.Once
	done     chan struct{}
	err      error
}

// ticket number this turn was served under
// numbers restart at 1 whenever the queue drains, so they only order turns
// that overlapped in the queue
func (l *Lock) Token() uint64 {
	return l.ticket.Number
}

// ends the turn; safe to call more than once
func (l *Lock) Release(ctx context.Context) error {
	l.once.Do(func() { close(l.release) })

	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
