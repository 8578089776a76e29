package queue

import (
	"context"
	"fmt"

	"github.com/pixperk/flockq/pkg/fsm"
	"github.com/pixperk/flockq/pkg/metrics"
	"github.com/pixperk/flockq/pkg/types"
)

// appends a ticket for this holder under the lock and returns it
func (q *Queue) admit(ctx context.Context) (types.Ticket, error) {
	var ticket types.Ticket

	err := q.coord.With(ctx, func() error {
		tickets, err := q.store.ReadAll()
		if err != nil {
			return err
		}

		m := fsm.NewFSM(tickets)
		result, err := m.Apply(types.AdmitCmd{Holder: q.holder})
		if err != nil {
			return err
		}

		if err := q.store.WriteAll(m.Tickets()); err != nil {
			return err
		}
		ticket = result.(fsm.AdmitResponse).Ticket
		return nil
	})
	if err != nil {
		return ticket, fmt.Errorf("failed to admit: %w", err)
	}

	q.record(types.EventQueued)
	metrics.AdmitTotal.WithLabelValues(q.cfg.Name).Inc()
	q.logger.Debug("ticket admitted", "ticket", ticket.Number)

	return ticket, nil
}
