package types

// a ticket is a contender's place in the queue
// numbers are unique and strictly increasing in admission order
// gaps appear after removals
type Ticket struct {
	Number uint64
	Holder string //opaque contender id (pid based by default)
}

// ordered ticket list as persisted in the queue file
// slice order is admission order, index 0 is the head
type Tickets []Ticket

// returns the earliest surviving ticket
func (t Tickets) Head() (Ticket, bool) {
	if len(t) == 0 {
		return Ticket{}, false
	}
	return t[0], true
}

// returns the ticket held by holder, if any
func (t Tickets) Find(holder string) (Ticket, bool) {
	for _, tk := range t {
		if tk.Holder == holder {
			return tk, true
		}
	}
	return Ticket{}, false
}

// highest ticket number currently queued (0 if empty)
func (t Tickets) MaxNumber() uint64 {
	var max uint64
	for _, tk := range t {
		if tk.Number > max {
			max = tk.Number
		}
	}
	return max
}

// returns a copy that does not share the backing array
func (t Tickets) Clone() Tickets {
	if t == nil {
		return nil
	}
	out := make(Tickets, len(t))
	copy(out, t)
	return out
}
