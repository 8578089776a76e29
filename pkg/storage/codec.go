package storage

import (
	"fmt"

	"github.com/pixperk/flockq/pkg/types"
	"google.golang.org/protobuf/encoding/protowire"
)

// queue file layout, protobuf wire format without generated code:
//
//	message Queue  { repeated Ticket tickets = 1; }
//	message Ticket { uint64 number = 1; string holder = 2; }
//
// encoding is deterministic, the empty queue encodes to zero bytes
const (
	fieldQueueTicket  protowire.Number = 1
	fieldTicketNumber protowire.Number = 1
	fieldTicketHolder protowire.Number = 2
)

// serializes the ticket list in order
func Encode(tickets types.Tickets) []byte {
	var out []byte
	for _, tk := range tickets {
		var msg []byte
		msg = protowire.AppendTag(msg, fieldTicketNumber, protowire.VarintType)
		msg = protowire.AppendVarint(msg, tk.Number)
		msg = protowire.AppendTag(msg, fieldTicketHolder, protowire.BytesType)
		msg = protowire.AppendString(msg, tk.Holder)

		out = protowire.AppendTag(out, fieldQueueTicket, protowire.BytesType)
		out = protowire.AppendBytes(out, msg)
	}
	return out
}

// parses a ticket list and checks the queue invariants
// any violation is reported as types.ErrCorruptQueue
func Decode(data []byte) (types.Tickets, error) {
	var tickets types.Tickets
	holders := make(map[string]struct{})

	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		data = data[n:]

		if num != fieldQueueTicket || typ != protowire.BytesType {
			//unknown field, skip it
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, corrupt(protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}

		msg, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, corrupt(protowire.ParseError(n))
		}
		data = data[n:]

		tk, err := decodeTicket(msg)
		if err != nil {
			return nil, err
		}

		if len(tickets) > 0 && tk.Number <= tickets[len(tickets)-1].Number {
			return nil, corrupt(fmt.Errorf("ticket %d out of order", tk.Number))
		}
		if _, dup := holders[tk.Holder]; dup {
			return nil, corrupt(fmt.Errorf("holder %q queued twice", tk.Holder))
		}
		holders[tk.Holder] = struct{}{}
		tickets = append(tickets, tk)
	}

	return tickets, nil
}

func decodeTicket(msg []byte) (types.Ticket, error) {
	var tk types.Ticket
	for len(msg) > 0 {
		num, typ, n := protowire.ConsumeTag(msg)
		if n < 0 {
			return tk, corrupt(protowire.ParseError(n))
		}
		msg = msg[n:]

		switch {
		case num == fieldTicketNumber && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(msg)
			if n < 0 {
				return tk, corrupt(protowire.ParseError(n))
			}
			tk.Number = v
			msg = msg[n:]
		case num == fieldTicketHolder && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(msg)
			if n < 0 {
				return tk, corrupt(protowire.ParseError(n))
			}
			tk.Holder = string(v)
			msg = msg[n:]
		default:
			n = protowire.ConsumeFieldValue(num, typ, msg)
			if n < 0 {
				return tk, corrupt(protowire.ParseError(n))
			}
			msg = msg[n:]
		}
	}

	if tk.Number == 0 || tk.Holder == "" {
		return tk, corrupt(fmt.Errorf("incomplete ticket"))
	}
	return tk, nil
}

func corrupt(err error) error {
	return fmt.Errorf("%w: %v", types.ErrCorruptQueue, err)
}
