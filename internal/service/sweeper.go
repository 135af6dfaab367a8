package service

import (
	"context"
	"log"
	"time"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
)

const sweepNote = "Automatically cancelled due to restaurant inactivity."

// SweepTimedOutOrders cancels every order still PLACED past the timeout,
// appending a system (nil-actor) audit row per order. Idempotent: swept
// orders leave PLACED, so an immediate re-run finds nothing.
func (s *Service) SweepTimedOutOrders(ctx context.Context, timeout time.Duration) (int, error) {
	if timeout <= 0 {
		timeout = s.cfg.PlacedOrderTimeout
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	cutoff := s.now().Add(-timeout)
	orders, err := tx.TimedOutOrders(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	now := s.now()
	for _, order := range orders {
		if err := s.advanceOrder(ctx, tx, order, domain.OrderStatusCancelled, nil, sweepNote, now); err != nil {
			return 0, err
		}
		evt, err := events.NewOrderEvent(events.EventOrderCancelled, order, nil, now)
		if err != nil {
			return 0, err
		}
		if err := tx.EnqueueEvent(ctx, evt); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(orders), nil
}

// RunSweeper drives the sweep on a ticker until the context ends. Scheduling
// lives here; the sweep itself stays a plain callable.
func (s *Service) RunSweeper(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := s.SweepTimedOutOrders(ctx, s.cfg.PlacedOrderTimeout)
			if err != nil {
				log.Printf("sweep error: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep cancelled %d timed-out orders", n)
			}
		}
	}
}
