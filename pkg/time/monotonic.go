package time

import (
	"context"
	"time"
)

// clock provides monotonic time since the clock was created
// time.Since uses the monotonic reading under the hood, so deadlines
// computed here survive wall clock jumps
type Clock struct {
	startTime time.Time
}

func NewClock() *Clock {
	return &Clock{
		startTime: time.Now(),
	}
}

// duration since clock creation, always moves forward
func (c *Clock) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

// returns the deadline for a wait of d starting now
// a zero or negative d means no deadline (ok is false)
func (c *Clock) Deadline(d time.Duration) (deadline time.Duration, ok bool) {
	if d <= 0 {
		return 0, false
	}
	return c.Elapsed() + d, true
}

// remaining time until deadline, never negative
func (c *Clock) Remaining(deadline time.Duration) time.Duration {
	if r := deadline - c.Elapsed(); r > 0 {
		return r
	}
	return 0
}

// sleeps for d or until ctx is done
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
