package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"mealdrop/internal/events"
)

// Outbox reads pending events for the publisher worker. Writes go through
// Tx.EnqueueEvent so events commit atomically with the state change that
// produced them.
type Outbox struct {
	pool *pgxpool.Pool
}

func NewOutbox(pool *pgxpool.Pool) *Outbox {
	return &Outbox{pool: pool}
}

func (o *Outbox) FetchPending(ctx context.Context, limit int) ([]events.Event, error) {
	rows, err := o.pool.Query(ctx, outboxFetchPendingSQL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var evts []events.Event
	for rows.Next() {
		var evt events.Event
		if err := rows.Scan(&evt.ID, &evt.Type, &evt.AggregateType, &evt.AggregateID, &evt.Payload, &evt.OccurredAt); err != nil {
			return nil, err
		}
		evts = append(evts, evt)
	}
	return evts, rows.Err()
}

func (o *Outbox) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := o.pool.Exec(ctx, outboxMarkPublishedSQL, ids)
	return err
}
