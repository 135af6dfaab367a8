package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/google/uuid"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
	"mealdrop/internal/geo"
)

// AssignDriver selects the nearest eligible driver for a READY_FOR_PICKUP
// order, creates a PENDING task, and pins the driver BUSY, all in one
// transaction. Eligible means AVAILABLE, a location ping inside the
// freshness window, and no earlier task in this order's lineage. The
// candidate query locks the availability rows it returns, so two concurrent
// assigns cannot hand the same driver two tasks.
func (s *Service) AssignDriver(ctx context.Context, orderID string) (*domain.DriverTask, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	restaurant, err := s.store.GetRestaurant(ctx, order.RestaurantID)
	if err != nil {
		return nil, err
	}

	shortlist := s.shortlist(ctx, restaurant)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err = tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status != domain.OrderStatusReadyForPickup {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrConflict, order.Status)
	}
	active, err := tx.ActiveTaskForOrder(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: order already has an active task (%s)", domain.ErrConflict, active.Status)
	}
	tried, err := tx.TriedDriverIDs(ctx, orderID)
	if err != nil {
		return nil, err
	}

	freshSince := s.now().Add(-s.cfg.LocationFreshness)
	candidates, err := tx.EligibleDrivers(ctx, freshSince, tried, shortlist)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 && shortlist != nil {
		// Cold or partial index; fall back to the full scan.
		candidates, err = tx.EligibleDrivers(ctx, freshSince, tried, nil)
		if err != nil {
			return nil, err
		}
	}
	if len(candidates) == 0 {
		return nil, domain.ErrNoEligibleDriver
	}

	chosen := pickNearest(candidates, restaurant.Position)
	now := s.now()
	task := &domain.DriverTask{
		ID:         uuid.NewString(),
		DriverID:   chosen.DriverID,
		OrderID:    orderID,
		Status:     domain.TaskStatusPending,
		AssignedAt: now,
	}
	if err := tx.CreateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.markDriverBusy(ctx, tx, chosen.DriverID, now); err != nil {
		return nil, err
	}
	evt, err := events.NewTaskEvent(events.EventTaskAssigned, task, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// shortlist asks the hot index for drivers near the restaurant. A missing
// index, missing coordinates, or an index error all mean "no shortlist" and
// dispatch scans every candidate instead.
func (s *Service) shortlist(ctx context.Context, restaurant *domain.Restaurant) []string {
	if s.index == nil || restaurant.Position == nil {
		return nil
	}
	ids, err := s.index.Nearby(ctx, restaurant.Position.Lat, restaurant.Position.Lng, s.cfg.ShortlistRadiusKm, s.cfg.ShortlistLimit)
	if err != nil {
		log.Printf("location index nearby restaurant=%s: %v", restaurant.ID, err)
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	return ids
}

// pickNearest returns the candidate closest to the restaurant, ties broken
// by driver ID. Without restaurant coordinates the first candidate wins
// (candidates arrive ordered by driver ID).
func pickNearest(candidates []Candidate, position *domain.Location) Candidate {
	best := candidates[0]
	if position == nil {
		return best
	}
	bestDist := geo.DistanceKm(best.Lat, best.Lng, position.Lat, position.Lng)
	for _, c := range candidates[1:] {
		dist := geo.DistanceKm(c.Lat, c.Lng, position.Lat, position.Lng)
		if dist < bestDist || (dist == bestDist && c.DriverID < best.DriverID) {
			best = c
			bestDist = dist
		}
	}
	return best
}
