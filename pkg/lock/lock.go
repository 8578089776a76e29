// Package lock serializes access to a queue file with an OS advisory lock.
//
// Every acquisition opens its own lock handle, so spans taken by different
// goroutines of one process exclude each other the same way spans taken by
// different processes do. The lock is advisory: writers that bypass this
// package are not kept out.
package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// delay between non-blocking attempts when acquisition is bounded by a context
const DefaultRetryDelay = time.Millisecond

var ErrNotLocked = errors.New("lock was not acquired")

// Coordinator hands out exclusive lock spans on one file
type Coordinator struct {
	path       string
	retryDelay time.Duration
}

func NewCoordinator(path string) *Coordinator {
	return &Coordinator{
		path:       path,
		retryDelay: DefaultRetryDelay,
	}
}

func (c *Coordinator) Path() string { return c.path }

// Acquire blocks until the exclusive lock is granted or ctx is done.
// A context that can never be cancelled uses a blocking flock call.
func (c *Coordinator) Acquire(ctx context.Context) (*Span, error) {
	fl := flock.New(c.path)

	if ctx.Done() == nil {
		if err := fl.Lock(); err != nil {
			return nil, fmt.Errorf("failed to lock %s: %w", c.path, err)
		}
		return &Span{fl: fl, acquiredAt: time.Now()}, nil
	}

	locked, err := fl.TryLockContext(ctx, c.retryDelay)
	if err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", c.path, err)
	}
	if !locked {
		_ = fl.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", c.path, ErrNotLocked)
	}

	return &Span{fl: fl, acquiredAt: time.Now()}, nil
}

// TryAcquire takes the lock only if nobody holds it right now.
// ok is false, with a nil error, when the lock is busy.
func (c *Coordinator) TryAcquire() (span *Span, ok bool, err error) {
	fl := flock.New(c.path)

	locked, err := fl.TryLock()
	if err != nil {
		_ = fl.Close()
		return nil, false, fmt.Errorf("failed to lock %s: %w", c.path, err)
	}
	if !locked {
		_ = fl.Close()
		return nil, false, nil
	}

	return &Span{fl: fl, acquiredAt: time.Now()}, true, nil
}

// With runs fn while holding the lock and releases it on every exit path
func (c *Coordinator) With(ctx context.Context, fn func() error) (err error) {
	span, err := c.Acquire(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if relErr := span.Release(); relErr != nil && err == nil {
			err = relErr
		}
	}()

	return fn()
}

// Span is one held exclusive lock
// it can be handed from one goroutine to another, Release is idempotent
type Span struct {
	mu         sync.Mutex
	fl         *flock.Flock
	acquiredAt time.Time
	released   bool
}

// time the lock has been held
func (s *Span) Held() time.Duration {
	return time.Since(s.acquiredAt)
}

func (s *Span) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true

	//unlock also closes the lock handle
	if err := s.fl.Unlock(); err != nil {
		return fmt.Errorf("failed to unlock %s: %w", s.fl.Path(), err)
	}
	return nil
}
