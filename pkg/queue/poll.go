package queue

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/pixperk/flockq/pkg/fsm"
	"github.com/pixperk/flockq/pkg/lock"
	"github.com/pixperk/flockq/pkg/metrics"
	clock "github.com/pixperk/flockq/pkg/time"
	"github.com/pixperk/flockq/pkg/types"
)

// a turn that became due, the lock span is still held
type dueTurn struct {
	span     *lock.Span
	snapshot types.Tickets //ticket list read when the turn became due
	ticket   types.Ticket
}

// polls until our ticket is at the head (WAITING -> DUE) or the deadline
// passes (WAITING -> TIMED_OUT, nil turn and nil error)
// on DUE the lock stays held and is handed to the caller
func (q *Queue) await(s *slot, ticket types.Ticket, deadline time.Duration, hasDeadline bool) (*dueTurn, error) {
	ctx := s.ctx
	start := q.clock.Elapsed()
	defer func() {
		metrics.WaitDuration.WithLabelValues(q.cfg.Name).Observe((q.clock.Elapsed() - start).Seconds())
	}()

	for {
		metrics.PollTotal.WithLabelValues(q.cfg.Name).Inc()

		if err := ctx.Err(); err != nil {
			return nil, q.abandon(s, err)
		}

		span, err := q.coord.Acquire(ctx)
		if err != nil {
			return nil, q.abandon(s, err)
		}

		tickets, err := q.store.ReadAll()
		if err != nil {
			return nil, errors.Join(err, q.withdraw(span, nil))
		}

		m := fsm.NewFSM(tickets)

		if _, queued := tickets.Find(q.holder); !queued {
			//our ticket is gone (queue cleared or recovered from corruption):
			//there is no head we can wait behind, rejoin at the tail
			result, err := m.Apply(types.AdmitCmd{Holder: q.holder})
			if err == nil {
				err = q.store.WriteAll(m.Tickets())
			}
			if err != nil {
				span.Release()
				return nil, fmt.Errorf("failed to rejoin queue: %w", err)
			}
			ticket = result.(fsm.AdmitResponse).Ticket
			q.logger.Warn("ticket missing from queue, rejoined", "ticket", ticket.Number)
			q.record(types.EventQueued)
		}

		if m.IsHead(q.holder) {
			metrics.TurnTotal.WithLabelValues(q.cfg.Name, "passed").Inc()
			return &dueTurn{
				span:     span,
				snapshot: m.Tickets(),
				ticket:   ticket,
			}, nil
		}

		if hasDeadline && q.clock.Elapsed() >= deadline {
			if err := q.withdraw(span, m); err != nil {
				return nil, err
			}
			q.record(types.EventTimeout)
			metrics.TurnTotal.WithLabelValues(q.cfg.Name, "timeout").Inc()
			q.logger.Debug("timed out waiting for turn", "ticket", ticket.Number)
			return nil, nil
		}

		distance, _ := m.Distance(q.holder)
		if err := span.Release(); err != nil {
			return nil, q.abandon(s, err)
		}

		wait := q.backoff(distance)
		if hasDeadline {
			wait = min(wait, q.clock.Remaining(deadline))
		}
		if err := clock.Sleep(ctx, wait); err != nil {
			return nil, q.abandon(s, err)
		}
	}
}

// max(PollFloor, PollStep * distance), capped at PollMax
func (q *Queue) backoff(distance uint64) time.Duration {
	step := q.cfg.PollStep
	if distance > 0 && uint64(step) > math.MaxInt64/distance {
		return q.cfg.PollMax
	}
	wait := time.Duration(distance) * step
	if wait < q.cfg.PollFloor {
		wait = q.cfg.PollFloor
	}
	if wait > q.cfg.PollMax {
		wait = q.cfg.PollMax
	}
	return wait
}

// removes our ticket from the list read under span, writes it back and
// releases the span; a nil m re-reads the store
func (q *Queue) withdraw(span *lock.Span, m *fsm.FSM) error {
	defer span.Release() //no-op once released below

	if m == nil {
		tickets, err := q.store.ReadAll()
		if err != nil {
			return err
		}
		m = fsm.NewFSM(tickets)
	}

	result, err := m.Apply(types.RemoveCmd{Holder: q.holder})
	if err != nil {
		return err
	}
	if !result.(fsm.RemoveResponse).Removed {
		return nil
	}
	if err := q.store.WriteAll(m.Tickets()); err != nil {
		return fmt.Errorf("failed to withdraw ticket: %w", err)
	}
	return span.Release()
}

// withdraws our ticket after waiting ended outside the lock: the timeout
// passed, the caller cancelled, or the lock could not be taken
// a timeout is reported as nil. When the lock is busy the withdrawal
// finishes in the background and keeps the turn slot until it has, so the
// next Enter of this holder never sees the stale ticket
func (q *Queue) abandon(s *slot, cause error) error {
	timeout := timedOut(s.ctx)
	if timeout {
		cause = nil
	}

	span, ok, err := q.coord.TryAcquire()
	if err != nil {
		q.logger.Warn("failed to try lock for withdrawal", "error", err)
	}
	if ok {
		if err := q.forget(span, timeout); err != nil {
			return errors.Join(cause, err)
		}
		return cause
	}

	s.kept = true
	q.tasks.Add(1)
	go func() {
		defer q.tasks.Done()
		defer s.free()

		span, err := q.coord.Acquire(context.WithoutCancel(s.ctx))
		if err == nil {
			err = q.forget(span, timeout)
		}
		if err != nil {
			q.mu.Lock()
			q.errs = append(q.errs, err)
			q.mu.Unlock()
		}
	}()
	return cause
}

// removes our ticket under span and logs TIMEOUT
func (q *Queue) forget(span *lock.Span, timeout bool) error {
	if err := q.withdraw(span, nil); err != nil {
		metrics.BookkeepingErrorTotal.WithLabelValues(q.cfg.Name).Inc()
		q.logger.Error("failed to withdraw ticket", "error", err)
		return fmt.Errorf("withdraw ticket: %w", err)
	}

	outcome := "cancelled"
	if timeout {
		outcome = "timeout"
	}
	q.record(types.EventTimeout)
	metrics.TurnTotal.WithLabelValues(q.cfg.Name, outcome).Inc()
	q.logger.Debug("stopped waiting for turn", "outcome", outcome)
	return nil
}
