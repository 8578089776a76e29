package fsm

import (
	"fmt"
	"sync"

	"github.com/pixperk/flockq/pkg/types"
)

// initial ticket number handed out when the queue is empty
const FirstTicket uint64 = 1

// applies ticket commands to one in-memory copy of the queue
// critical :
// - ticket numbers must be strictly increasing in admission order
// - a holder has at most one outstanding ticket
// - list order is admission order, never re-sorted
//
// an FSM lives for one lock span: load what was read from the store,
// apply, write Tickets() back before the span is released
type FSM struct {
	mu      sync.RWMutex
	tickets types.Tickets
}

func NewFSM(tickets types.Tickets) *FSM {
	return &FSM{
		tickets: tickets.Clone(),
	}
}

// applies a command to the FSM and returns the result or error
func (f *FSM) Apply(cmd types.Command) (any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch c := cmd.(type) {
	case types.AdmitCmd:
		return f.applyAdmit(c)
	case types.RemoveCmd:
		return f.applyRemove(c)
	default:
		return nil, fmt.Errorf("unknown command type: %T", cmd)
	}
}

// returned when a ticket is admitted
type AdmitResponse struct {
	Ticket types.Ticket
}

func (f *FSM) applyAdmit(cmd types.AdmitCmd) (any, error) {
	if _, queued := f.tickets.Find(cmd.Holder); queued {
		return nil, types.ErrHolderQueued
	}

	next := FirstTicket
	if len(f.tickets) > 0 {
		next = f.tickets.MaxNumber() + 1
	}

	ticket := types.Ticket{Number: next, Holder: cmd.Holder}
	f.tickets = append(f.tickets, ticket)

	return AdmitResponse{Ticket: ticket}, nil
}

// returned when a remove command is applied
type RemoveResponse struct {
	Removed bool
	Ticket  types.Ticket
}

// removes the first ticket whose holder matches
// removing an absent holder is not an error, Removed reports it
func (f *FSM) applyRemove(cmd types.RemoveCmd) (any, error) {
	for i, tk := range f.tickets {
		if tk.Holder != cmd.Holder {
			continue
		}
		f.tickets = append(f.tickets[:i:i], f.tickets[i+1:]...)
		return RemoveResponse{Removed: true, Ticket: tk}, nil
	}
	return RemoveResponse{}, nil
}

// returns a copy of the current ticket list
func (f *FSM) Tickets() types.Tickets {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return f.tickets.Clone()
}

// returns whether holder currently owns the head ticket
func (f *FSM) IsHead(holder string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	head, ok := f.tickets.Head()
	return ok && head.Holder == holder
}

// distance in ticket numbers between holder's ticket and the head
// ok is false when the queue is empty or holder has no ticket
func (f *FSM) Distance(holder string) (uint64, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	head, ok := f.tickets.Head()
	if !ok {
		return 0, false
	}
	ours, ok := f.tickets.Find(holder)
	if !ok {
		return 0, false
	}
	return ours.Number - head.Number, true
}

// current fsm stats
type Stats struct {
	Tickets    int
	HeadNumber uint64
	MaxNumber  uint64
}

func (f *FSM) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()

	head, _ := f.tickets.Head()
	return Stats{
		Tickets:    len(f.tickets),
		HeadNumber: head.Number,
		MaxNumber:  f.tickets.MaxNumber(),
	}
}
