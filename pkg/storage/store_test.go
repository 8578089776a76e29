package storage

import (
	"os"
	"testing"

	"github.com/pixperk/flockq/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenCreatesQueueFile(t *testing.T) {
	dir := t.TempDir()

	store, err := Open(dir, "jobs", nil)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, QueuePath(dir, "jobs"), store.Path())
	_, err = os.Stat(store.Path())
	assert.NoError(t, err)

	tickets, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestOpenRejectsBadNames(t *testing.T) {
	for _, name := range []string{"", ".", "..", "a/b", `a\b`} {
		_, err := Open(t.TempDir(), name, nil)
		assert.ErrorIs(t, err, types.ErrInvalidQueueName, "name %q", name)
	}
}

func TestWriteAllTruncates(t *testing.T) {
	store, err := Open(t.TempDir(), "jobs", nil)
	require.NoError(t, err)
	defer store.Close()

	long := types.Tickets{
		{Number: 1, Holder: "a-very-long-holder-name"},
		{Number: 2, Holder: "another-very-long-holder-name"},
	}
	require.NoError(t, store.WriteAll(long))

	short := types.Tickets{{Number: 2, Holder: "b"}}
	require.NoError(t, store.WriteAll(short))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, int64(len(Encode(short))), info.Size())

	got, err := store.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, short, got)
}

func TestReadAllCorruptIsEmpty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(QueuePath(dir, "jobs"), []byte("not a queue \xff\xff"), 0644))

	store, err := Open(dir, "jobs", nil)
	require.NoError(t, err)
	defer store.Close()

	tickets, err := store.ReadAll()
	require.NoError(t, err)
	assert.Empty(t, tickets)
}

func TestTwoHandlesShareContent(t *testing.T) {
	dir := t.TempDir()

	a, err := Open(dir, "jobs", nil)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(dir, "jobs", nil)
	require.NoError(t, err)
	defer b.Close()

	want := types.Tickets{{Number: 1, Holder: "a"}}
	require.NoError(t, a.WriteAll(want))

	got, err := b.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestClosedStore(t *testing.T) {
	store, err := Open(t.TempDir(), "jobs", nil)
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.ReadAll()
	assert.ErrorIs(t, err, os.ErrClosed)
	assert.ErrorIs(t, store.WriteAll(nil), os.ErrClosed)
}
