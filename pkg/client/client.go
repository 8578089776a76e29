package client

import (
	"context"
	"fmt"
	"time"

	"github.com/pixperk/flockq/pkg/queue"
	"github.com/pixperk/flockq/pkg/types"
)

// Client exposes a queue as acquire/release instead of a callback
type Client struct {
	queue *queue.Queue
}

func NewClient(cfg queue.Config) (*Client, error) {
	q, err := queue.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open queue: %w", err)
	}
	return &Client{queue: q}, nil
}

func (c *Client) Queue() *queue.Queue { return c.queue }

// Acquire waits for this client's turn and returns the held lock.
// It fails with types.ErrTurnTimeout when timeout passes first; zero waits
// forever. The turn lasts until Release.
func (c *Client) Acquire(ctx context.Context, timeout time.Duration) (*Lock, error) {
	l := &Lock{
		acquired: make(chan types.Ticket, 1),
		release:  make(chan struct{}),
		done:     make(chan struct{}),
	}

	go func() {
		defer close(l.done)
		passed, err := c.queue.EnterTicket(ctx, timeout, func(tk types.Ticket) error {
			l.acquired <- tk
			<-l.release
			return nil
		})
		if err == nil && !passed {
			err = types.ErrTurnTimeout
		}
		l.err = err
	}()

	select {
	case tk := <-l.acquired:
		l.ticket = tk
		return l, nil
	case <-l.done:
		return nil, fmt.Errorf("acquire lock: %w", l.err)
	}
}

// waits for pending ticket removals
func (c *Client) Wait() error {
	return c.queue.Wait()
}

func (c *Client) Stop() error {
	return c.queue.Close()
}
