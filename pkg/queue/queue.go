// Package queue implements a cross-process FIFO mutex on top of one shared file.
//
// A contender appends a ticket to the queue file, polls until its ticket is
// at the head, runs its critical section and removes its ticket. Every read
// and rewrite of the queue file happens under an exclusive advisory lock on
// that file, which is the only consistency mechanism.
//
// Waiting is cooperative backoff polling: contenders further from the head
// sleep longer. This is adequate for low to moderate contention only.
//
// After a successful turn the ticket removal, the optional rate limit delay
// and the lock release run in a background goroutine, so Enter returns as soon
// as the callback does. Queue state is eventually consistent until that
// goroutine finishes; Wait blocks until it has.
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pixperk/flockq/pkg/activity"
	"github.com/pixperk/flockq/pkg/lock"
	"github.com/pixperk/flockq/pkg/logger"
	"github.com/pixperk/flockq/pkg/metrics"
	"github.com/pixperk/flockq/pkg/storage"
	clock "github.com/pixperk/flockq/pkg/time"
	"github.com/pixperk/flockq/pkg/types"
)

// Queue is one contender bound to one named queue file.
// It is safe for concurrent use; concurrent Enter calls on the same Queue
// take their turns one after another since they share a holder id.
type Queue struct {
	cfg         Config
	holder      string
	minInterval time.Duration

	store  *storage.Store
	coord  *lock.Coordinator
	rec    activity.Recorder
	logger logger.Logger
	clock  *clock.Clock

	turn chan struct{} //one Enter per holder at a time, see slot

	mu      sync.Mutex
	closed  bool
	stop    context.CancelFunc
	stopCtx context.Context
	calls   sync.WaitGroup //in-flight Enter calls
	tasks   sync.WaitGroup //in-flight bookkeeping goroutines
	errs    []error        //bookkeeping failures not yet reported
}

func New(cfg Config) (*Queue, error) {
	cfg, err := cfg.withDefaults()
	if err != nil {
		return nil, err
	}

	log := cfg.Logger.With("queue", cfg.Name, "holder", cfg.HolderID)

	store, err := storage.Open(cfg.Dir, cfg.Name, log)
	if err != nil {
		return nil, err
	}

	rec := activity.Nop()
	if cfg.ActivityLog {
		rec, err = activity.OpenFile(storage.LogPath(cfg.Dir, cfg.Name))
		if err != nil {
			store.Close()
			return nil, err
		}
	}

	stopCtx, stop := context.WithCancel(context.Background())

	return &Queue{
		cfg:         cfg,
		holder:      cfg.HolderID,
		minInterval: cfg.MinInterval(),
		store:       store,
		coord:       lock.NewCoordinator(store.Path()),
		rec:         rec,
		logger:      log,
		clock:       clock.NewClock(),
		turn:        make(chan struct{}, 1),
		stop:        stop,
		stopCtx:     stopCtx,
	}, nil
}

func (q *Queue) Name() string   { return q.cfg.Name }
func (q *Queue) Holder() string { return q.holder }
func (q *Queue) Path() string   { return q.store.Path() }

// Enter waits for this contender's turn and runs fn as the critical section.
//
// timeout bounds the wait for the turn, zero waits indefinitely. It returns
// (false, nil) when the timeout passed first; the ticket is already gone from
// the queue file by then. An error returned by fn is returned with passed set
// to true: the turn was taken.
func (q *Queue) Enter(ctx context.Context, timeout time.Duration, fn func() error) (bool, error) {
	if fn == nil {
		return false, types.ErrInvalidCallback
	}
	_, passed, err := EnterWithResult(ctx, q, timeout, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return passed, err
}

// EnterWithResult is Enter for callbacks that produce a value.
// The value is only meaningful when passed is true.
func EnterWithResult[T any](ctx context.Context, q *Queue, timeout time.Duration, fn func() (T, error)) (T, bool, error) {
	if fn == nil {
		var zero T
		return zero, false, types.ErrInvalidCallback
	}
	return enter(ctx, q, timeout, func(types.Ticket) (T, error) { return fn() })
}

// EnterTicket is Enter for callbacks that want the ticket they were served under.
func (q *Queue) EnterTicket(ctx context.Context, timeout time.Duration, fn func(types.Ticket) error) (bool, error) {
	if fn == nil {
		return false, types.ErrInvalidCallback
	}
	_, passed, err := enter(ctx, q, timeout, func(tk types.Ticket) (struct{}, error) {
		return struct{}{}, fn(tk)
	})
	return passed, err
}

// errTurnDeadline is the cancellation cause of a context whose Enter timeout passed
var errTurnDeadline = errors.New("turn deadline passed")

// true once ctx was cancelled by the Enter timeout rather than by the caller
func timedOut(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), errTurnDeadline)
}

// admission -> turn poller -> executor
// the timeout bounds every blocking step: the turn slot, each lock
// acquisition and the backoff sleeps
func enter[T any](ctx context.Context, q *Queue, timeout time.Duration, fn func(types.Ticket) (T, error)) (T, bool, error) {
	var zero T

	deadline, hasDeadline := q.clock.Deadline(timeout)
	if hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, timeout, errTurnDeadline)
		defer cancel()
	}

	s, err := q.begin(ctx)
	if err != nil {
		if timedOut(ctx) {
			q.countTimeout("turn slot")
			return zero, false, nil
		}
		return zero, false, err
	}
	defer s.done()

	ticket, err := q.admit(s.ctx)
	if err != nil {
		if timedOut(s.ctx) {
			q.countTimeout("admission")
			return zero, false, nil
		}
		return zero, false, q.closedErr(err)
	}

	turn, err := q.await(s, ticket, deadline, hasDeadline)
	if err != nil {
		return zero, false, q.closedErr(err)
	}
	if turn == nil {
		return zero, false, nil
	}

	return execute(q, turn, fn)
}

// slot is an Enter call's hold on the holder's turn slot
type slot struct {
	q      *Queue
	ctx    context.Context //cancelled by the caller, the timeout or Close
	cancel context.CancelFunc
	unhook func() bool
	kept   bool //a background withdrawal frees the slot instead
}

// frees the slot when Enter returns, unless a withdrawal kept it
func (s *slot) done() {
	if !s.kept {
		s.free()
	}
}

func (s *slot) free() {
	<-s.q.turn
	s.unhook()
	s.cancel()
	s.q.calls.Done()
}

// registers an Enter call and waits for this holder's turn slot
// the slot context is also cancelled by Close
func (q *Queue) begin(ctx context.Context) (*slot, error) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil, types.ErrQueueClosed
	}
	q.calls.Add(1)
	q.mu.Unlock()

	sctx, cancel := context.WithCancel(ctx)
	unhook := context.AfterFunc(q.stopCtx, cancel)

	select {
	case q.turn <- struct{}{}:
	case <-sctx.Done():
		unhook()
		cancel()
		q.calls.Done()
		return nil, q.closedErr(sctx.Err())
	}

	return &slot{q: q, ctx: sctx, cancel: cancel, unhook: unhook}, nil
}

// counts a timeout that happened before a ticket was queued
func (q *Queue) countTimeout(stage string) {
	metrics.TurnTotal.WithLabelValues(q.cfg.Name, "timeout").Inc()
	q.logger.Debug("timed out waiting for turn", "stage", stage)
}

// reports cancellation caused by Close as ErrQueueClosed
func (q *Queue) closedErr(err error) error {
	if err != nil && errors.Is(err, context.Canceled) && q.stopCtx.Err() != nil {
		return types.ErrQueueClosed
	}
	return err
}

// Snapshot reads the current ticket list under the lock
func (q *Queue) Snapshot(ctx context.Context) (types.Tickets, error) {
	var tickets types.Tickets
	err := q.coord.With(ctx, func() error {
		var err error
		tickets, err = q.store.ReadAll()
		return err
	})
	return tickets, err
}

// Clear empties the queue file. Contenders still waiting rejoin at the tail
// on their next poll.
func (q *Queue) Clear(ctx context.Context) error {
	return q.coord.With(ctx, func() error {
		return q.store.WriteAll(nil)
	})
}

// Wait blocks until every background bookkeeping task has finished and
// returns their failures, if any.
func (q *Queue) Wait() error {
	q.tasks.Wait()

	q.mu.Lock()
	defer q.mu.Unlock()
	err := errors.Join(q.errs...)
	q.errs = nil
	return err
}

// Close cancels waiting Enter calls, waits for in-flight turns and their
// bookkeeping, then closes the queue file.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()

	q.stop()
	q.calls.Wait()
	err := q.Wait()

	return errors.Join(err, q.rec.Close(), q.store.Close())
}

// writes an activity line, failures only get logged
func (q *Queue) record(event types.Event) {
	if err := q.rec.Record(q.holder, event); err != nil {
		q.logger.Warn("failed to write activity log", "event", event, "error", err)
	}
}

func (q *Queue) String() string {
	return fmt.Sprintf("queue %s (holder %s)", q.cfg.Name, q.holder)
}
