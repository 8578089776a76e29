package fsm

import (
	"fmt"
	"testing"

	"github.com/pixperk/flockq/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestAdmitEmptyQueue tests that the first ticket gets the initial number
func TestAdmitEmptyQueue(t *testing.T) {
	fsm := NewFSM(nil)

	result, err := fsm.Apply(types.AdmitCmd{Holder: "100-a"})
	require.NoError(t, err)

	resp, ok := result.(AdmitResponse)
	require.True(t, ok, "expected AdmitResponse")
	assert.Equal(t, FirstTicket, resp.Ticket.Number)
	assert.Equal(t, "100-a", resp.Ticket.Holder)
	assert.True(t, fsm.IsHead("100-a"))
}

// TestTicketMonotonicity tests that ticket numbers strictly increase
func TestTicketMonotonicity(t *testing.T) {
	fsm := NewFSM(nil)

	numbers := make([]uint64, 10)
	for i := 0; i < 10; i++ {
		result, err := fsm.Apply(types.AdmitCmd{Holder: fmt.Sprintf("holder-%d", i)})
		require.NoError(t, err)
		numbers[i] = result.(AdmitResponse).Ticket.Number
	}

	for i := 1; i < len(numbers); i++ {
		assert.Greater(t, numbers[i], numbers[i-1], "ticket numbers must be strictly increasing")
	}
	assert.Equal(t, uint64(10), numbers[9])
}

// TestAdmitAfterGap tests that admission continues from the highest surviving number
func TestAdmitAfterGap(t *testing.T) {
	fsm := NewFSM(types.Tickets{
		{Number: 4, Holder: "a"},
		{Number: 7, Holder: "b"},
	})

	result, err := fsm.Apply(types.AdmitCmd{Holder: "c"})
	require.NoError(t, err)
	assert.Equal(t, uint64(8), result.(AdmitResponse).Ticket.Number)

	got := fsm.Tickets()
	require.Len(t, got, 3)
	assert.Equal(t, "c", got[2].Holder)
}

// TestAdmitRestartsWhenDrained tests that an emptied queue restarts the counter
func TestAdmitRestartsWhenDrained(t *testing.T) {
	fsm := NewFSM(nil)

	_, err := fsm.Apply(types.AdmitCmd{Holder: "a"})
	require.NoError(t, err)
	_, err = fsm.Apply(types.RemoveCmd{Holder: "a"})
	require.NoError(t, err)

	result, err := fsm.Apply(types.AdmitCmd{Holder: "b"})
	require.NoError(t, err)
	assert.Equal(t, FirstTicket, result.(AdmitResponse).Ticket.Number)
}

// TestAdmitDuplicateHolder tests the single outstanding ticket rule
func TestAdmitDuplicateHolder(t *testing.T) {
	fsm := NewFSM(nil)

	_, err := fsm.Apply(types.AdmitCmd{Holder: "a"})
	require.NoError(t, err)

	_, err = fsm.Apply(types.AdmitCmd{Holder: "a"})
	assert.ErrorIs(t, err, types.ErrHolderQueued)
	assert.Equal(t, 1, fsm.Stats().Tickets)
}

// TestRemove tests removal keeps the order of the remaining tickets
func TestRemove(t *testing.T) {
	fsm := NewFSM(types.Tickets{
		{Number: 1, Holder: "a"},
		{Number: 2, Holder: "b"},
		{Number: 3, Holder: "c"},
	})

	result, err := fsm.Apply(types.RemoveCmd{Holder: "b"})
	require.NoError(t, err)

	resp, ok := result.(RemoveResponse)
	require.True(t, ok, "expected RemoveResponse")
	assert.True(t, resp.Removed)
	assert.Equal(t, uint64(2), resp.Ticket.Number)

	assert.Equal(t, types.Tickets{
		{Number: 1, Holder: "a"},
		{Number: 3, Holder: "c"},
	}, fsm.Tickets())
}

// TestRemoveAbsent tests that removing an unknown holder is a no-op
func TestRemoveAbsent(t *testing.T) {
	fsm := NewFSM(types.Tickets{{Number: 1, Holder: "a"}})

	result, err := fsm.Apply(types.RemoveCmd{Holder: "zzz"})
	require.NoError(t, err)
	assert.False(t, result.(RemoveResponse).Removed)
	assert.Equal(t, 1, fsm.Stats().Tickets)
}

// TestNewFSMCopiesInput tests that applying commands never mutates the caller's list
func TestNewFSMCopiesInput(t *testing.T) {
	snapshot := types.Tickets{
		{Number: 1, Holder: "a"},
		{Number: 2, Holder: "b"},
	}
	fsm := NewFSM(snapshot)

	_, err := fsm.Apply(types.RemoveCmd{Holder: "a"})
	require.NoError(t, err)

	assert.Equal(t, "a", snapshot[0].Holder)
	assert.Len(t, snapshot, 2)
}

// TestDistance tests the head distance used by the poller backoff
func TestDistance(t *testing.T) {
	fsm := NewFSM(types.Tickets{
		{Number: 3, Holder: "a"},
		{Number: 5, Holder: "b"},
		{Number: 9, Holder: "c"},
	})

	d, ok := fsm.Distance("c")
	require.True(t, ok)
	assert.Equal(t, uint64(6), d)

	d, ok = fsm.Distance("a")
	require.True(t, ok)
	assert.Zero(t, d)

	_, ok = fsm.Distance("missing")
	assert.False(t, ok)

	_, ok = NewFSM(nil).Distance("a")
	assert.False(t, ok)
}

// TestUnknownCommand tests that foreign commands are rejected
func TestUnknownCommand(t *testing.T) {
	_, err := NewFSM(nil).Apply(unknownCmd{})
	assert.Error(t, err)
}

type unknownCmd struct{}

func (unknownCmd) Type() types.CommandType { return 0 }

// TestStats tests head and max reporting
func TestStats(t *testing.T) {
	fsm := NewFSM(types.Tickets{
		{Number: 2, Holder: "a"},
		{Number: 6, Holder: "b"},
	})

	stats := fsm.Stats()
	assert.Equal(t, 2, stats.Tickets)
	assert.Equal(t, uint64(2), stats.HeadNumber)
	assert.Equal(t, uint64(6), stats.MaxNumber)
}
