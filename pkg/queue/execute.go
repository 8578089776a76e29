package queue

import (
	"errors"
	"fmt"
	"time"

	"github.com/pixperk/flockq/pkg/fsm"
	"github.com/pixperk/flockq/pkg/metrics"
	"github.com/pixperk/flockq/pkg/types"
)

// runs the critical section of a due turn and hands the lock span to the
// bookkeeping path
func execute[T any](q *Queue, turn *dueTurn, fn func(types.Ticket) (T, error)) (T, bool, error) {
	q.record(types.EventPassed)
	q.logger.Debug("turn passed", "ticket", turn.ticket.Number)

	result, recovered, err := invoke(func() (T, error) { return fn(turn.ticket) })
	if err != nil {
		err = fmt.Errorf("critical section: %w", err)
	}

	passed, finishErr := q.finish(turn)
	if recovered != nil {
		panic(recovered)
	}
	if finishErr != nil {
		return result, passed, errors.Join(err, finishErr)
	}
	return result, passed, err
}

// calls fn, turning a panic into a value so the span is never leaked
func invoke[T any](fn func() (T, error)) (result T, recovered any, err error) {
	defer func() {
		if r := recover(); r != nil {
			recovered = r
		}
	}()
	result, err = fn()
	return result, nil, err
}

// removes the ticket and releases the lock, in the background unless the
// queue runs in sync removal mode
// if the background task cannot be scheduled the removal happens here,
// without the rate limit delay, and the turn is reported as failed
func (q *Queue) finish(turn *dueTurn) (bool, error) {
	if q.cfg.SyncRemoval {
		return true, q.bookkeep(turn, true, "sync")
	}

	if q.spawn(turn) {
		return true, nil
	}

	err := q.bookkeep(turn, false, "sync")
	return false, errors.Join(types.ErrQueueClosed, err)
}

// starts the background bookkeeping task, false once the queue is closed
func (q *Queue) spawn(turn *dueTurn) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.tasks.Add(1)
	go func() {
		defer q.tasks.Done()
		if err := q.bookkeep(turn, true, "background"); err != nil {
			q.mu.Lock()
			q.errs = append(q.errs, err)
			q.mu.Unlock()
		}
	}()
	return true
}

// removes our ticket from the due snapshot, writes it, keeps the lock for
// the rest of the rate limit interval and releases it
func (q *Queue) bookkeep(turn *dueTurn, limit bool, mode string) error {
	start := q.clock.Elapsed()

	m := fsm.NewFSM(turn.snapshot)
	_, err := m.Apply(types.RemoveCmd{Holder: q.holder})
	if err == nil {
		err = q.store.WriteAll(m.Tickets())
	}

	end := q.clock.Elapsed()
	if err == nil && limit && q.minInterval > 0 {
		time.Sleep(max(q.minInterval-(end-start), 0))
	}

	held := turn.span.Held()
	if relErr := turn.span.Release(); relErr != nil {
		err = errors.Join(err, relErr)
	}
	metrics.HoldDuration.WithLabelValues(q.cfg.Name).Observe(held.Seconds())

	if err != nil {
		metrics.BookkeepingErrorTotal.WithLabelValues(q.cfg.Name).Inc()
		q.logger.Error("failed to remove ticket after turn",
			"ticket", turn.ticket.Number,
			"mode", mode,
			"error", err,
		)
		return fmt.Errorf("remove ticket %d: %w", turn.ticket.Number, err)
	}

	q.record(types.EventRemoved)
	metrics.RemoveTotal.WithLabelValues(q.cfg.Name, mode).Inc()
	q.logger.Debug("ticket removed", "ticket", turn.ticket.Number, "mode", mode, "held", held)
	return nil
}
