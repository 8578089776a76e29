package client_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pixperk/flockq/pkg/client"
	"github.com/pixperk/flockq/pkg/queue"
	"github.com/pixperk/flockq/pkg/types"
)

func newClient(t testing.TB, dir, holder string) *client.Client {
	t.Helper()
	c, err := client.NewClient(queue.Config{
		Dir:       dir,
		Name:      "locks",
		HolderID:  holder,
		PollFloor: time.Millisecond,
		PollStep:  time.Millisecond,
		PollMax:   5 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Stop() })
	return c
}

func TestAcquireRelease(t *testing.T) {
	dir := t.TempDir()
	c := newClient(t, dir, "a")
	ctx := context.Background()

	l, err := c.Acquire(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), l.Token())

	require.NoError(t, l.Release(ctx))
	require.NoError(t, l.Release(ctx), "second release is a no-op")
	require.NoError(t, c.Wait())

	tickets, err := c.Queue().Snapshot(ctx)
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	holder := newClient(t, dir, "holder")
	l, err := holder.Acquire(ctx, time.Second)
	require.NoError(t, err)

	other := newClient(t, dir, "other")
	_, err = other.Acquire(ctx, 30*time.Millisecond)
	require.ErrorIs(t, err, types.ErrTurnTimeout)

	require.NoError(t, l.Release(ctx))
}

func TestAcquireWaitsForRelease(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var mu sync.Mutex
	var order []string
	mark := func(event string) {
		mu.Lock()
		order = append(order, event)
		mu.Unlock()
	}

	first := newClient(t, dir, "first")
	l1, err := first.Acquire(ctx, time.Second)
	require.NoError(t, err)
	mark("first acquired")

	second := newClient(t, dir, "second")
	got := make(chan *client.Lock, 1)
	go func() {
		l, err := second.Acquire(ctx, 5*time.Second)
		if err == nil {
			mark("second acquired")
			got <- l
		}
		close(got)
	}()

	select {
	case <-got:
		t.Fatal("second client acquired while the first held the turn")
	case <-time.After(50 * time.Millisecond):
	}

	mark("first released")
	require.NoError(t, l1.Release(ctx))

	l2, ok := <-got
	require.True(t, ok)
	require.NotNil(t, l2)
	require.NoError(t, l2.Release(ctx))

	assert.Equal(t, []string{"first acquired", "first released", "second acquired"}, order)
}

func TestAcquireAfterStop(t *testing.T) {
	c := newClient(t, t.TempDir(), "a")
	require.NoError(t, c.Stop())

	_, err := c.Acquire(context.Background(), time.Second)
	require.ErrorIs(t, err, types.ErrQueueClosed)
}
