package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/pixperk/flockq/pkg/fsm"
	"github.com/pixperk/flockq/pkg/lock"
	"github.com/pixperk/flockq/pkg/storage"
	"github.com/pixperk/flockq/pkg/types"
	"github.com/stretchr/testify/require"
)

const testQueue = "jobs"

// builds a queue in dir with fast polling, closed at test end
func newQueue(t *testing.T, dir string, mutate ...func(*Config)) *Queue {
	t.Helper()

	cfg := Config{
		Dir:       dir,
		Name:      testQueue,
		PollFloor: time.Millisecond,
		PollStep:  2 * time.Millisecond,
		PollMax:   10 * time.Millisecond,
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	q, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	return q
}

// reads the queue file without taking the lock
// content caught mid-write fails to decode and is reported as not ok
func peekTickets(path string) (types.Tickets, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}
	tickets, err := storage.Decode(data)
	if err != nil {
		return nil, false
	}
	return tickets, true
}

// reads the queue file under the lock
func lockedTickets(t *testing.T, dir string) types.Tickets {
	t.Helper()

	store, err := storage.Open(dir, testQueue, nil)
	require.NoError(t, err)
	defer store.Close()

	var tickets types.Tickets
	err = lock.NewCoordinator(store.Path()).With(context.Background(), func() error {
		var err error
		tickets, err = store.ReadAll()
		return err
	})
	require.NoError(t, err)
	return tickets
}

func waitForTickets(t *testing.T, dir string, n int) types.Tickets {
	t.Helper()

	var got types.Tickets
	require.Eventually(t, func() bool {
		tickets, ok := peekTickets(storage.QueuePath(dir, testQueue))
		got = tickets
		return ok && len(tickets) == n
	}, 5*time.Second, time.Millisecond, "expected %d queued tickets", n)
	return got
}

// puts a ticket for holder in the queue, as a contender that never polls
func admitRaw(t *testing.T, dir, holder string) {
	t.Helper()
	mutateRaw(t, dir, types.AdmitCmd{Holder: holder})
}

func removeRaw(t *testing.T, dir, holder string) {
	t.Helper()
	mutateRaw(t, dir, types.RemoveCmd{Holder: holder})
}

func mutateRaw(t *testing.T, dir string, cmd types.Command) {
	t.Helper()

	store, err := storage.Open(dir, testQueue, nil)
	require.NoError(t, err)
	defer store.Close()

	err = lock.NewCoordinator(store.Path()).With(context.Background(), func() error {
		tickets, err := store.ReadAll()
		if err != nil {
			return err
		}
		m := fsm.NewFSM(tickets)
		if _, err := m.Apply(cmd); err != nil {
			return err
		}
		return store.WriteAll(m.Tickets())
	})
	require.NoError(t, err)
}
