package types

// type of ticket command
type CommandType uint

const (
	CommandTypeAdmit CommandType = iota + 1
	CommandTypeRemove
)

// interface all ticket commands implement
type Command interface {
	Type() CommandType
}

// appends a ticket for holder at the tail
type AdmitCmd struct {
	Holder string
}

func (c AdmitCmd) Type() CommandType { return CommandTypeAdmit }

// removes the ticket held by holder
type RemoveCmd struct {
	Holder string
}

func (c RemoveCmd) Type() CommandType { return CommandTypeRemove }
