package service

import (
	"context"
	"errors"

	"mealdrop/internal/domain"
	"mealdrop/internal/geo"
)

type OrderView struct {
	Order      *domain.Order
	Items      []domain.OrderItem
	Audit      []domain.OrderStatusUpdate
	Task       *domain.DriverTask
	ETAMinutes *int
}

type DriverView struct {
	Availability domain.DriverAvailability
	Location     *domain.DriverLocation
}

// GetOrderView returns the order with items, audit trail, active task, and a
// live ETA. Visibility is permission-scoped: callers outside the order see
// ErrNotFound, never ErrForbidden.
func (s *Service) GetOrderView(ctx context.Context, requesterID, role, orderID string) (*OrderView, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	task, err := s.store.ActiveTaskForOrder(ctx, orderID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if !canSeeOrder(requesterID, role, order, task) {
		return nil, domain.ErrNotFound
	}
	return s.buildOrderView(ctx, order, task)
}

func canSeeOrder(requesterID, role string, order *domain.Order, task *domain.DriverTask) bool {
	switch role {
	case domain.RoleAdmin:
		return true
	case domain.RoleCustomer:
		return order.CustomerID == requesterID
	case domain.RoleRestaurant:
		return order.RestaurantID == requesterID
	case domain.RoleDriver:
		return task != nil && task.DriverID == requesterID
	default:
		return false
	}
}

func (s *Service) buildOrderView(ctx context.Context, order *domain.Order, task *domain.DriverTask) (*OrderView, error) {
	items, err := s.store.ListOrderItems(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	audit, err := s.store.ListStatusUpdates(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	view := &OrderView{Order: order, Items: items, Audit: audit, Task: task}
	eta, err := s.liveETA(ctx, order, task)
	if err != nil {
		return nil, err
	}
	view.ETAMinutes = eta
	return view, nil
}

// liveETA prefers the assigned driver's current position over the static
// estimate computed at placement.
func (s *Service) liveETA(ctx context.Context, order *domain.Order, task *domain.DriverTask) (*int, error) {
	if domain.IsTerminal(order.Status) {
		return nil, nil
	}
	if task == nil || order.Dropoff == nil {
		return order.EstimatedMinutes, nil
	}
	loc, err := s.store.LatestLocation(ctx, task.DriverID)
	if errors.Is(err, domain.ErrNotFound) {
		return order.EstimatedMinutes, nil
	}
	if err != nil {
		return nil, err
	}
	dist := geo.DistanceKm(loc.Lat, loc.Lng, order.Dropoff.Lat, order.Dropoff.Lng)
	prep := s.cfg.PrepMinutes
	if order.Status == domain.OrderStatusOnTheWay || order.Status == domain.OrderStatusPickedUp {
		prep = 0
	}
	eta := geo.TravelMinutes(dist, prep, s.cfg.SpeedKmPerMin)
	return &eta, nil
}

func (s *Service) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	if filter.Status != nil && !domain.KnownOrderStatus(*filter.Status) {
		return nil, domain.ErrInvalid
	}
	return s.store.ListOrders(ctx, filter)
}

// ListDriverViews pairs each driver's availability with their latest ping.
func (s *Service) ListDriverViews(ctx context.Context) ([]DriverView, error) {
	drivers, err := s.store.ListDrivers(ctx)
	if err != nil {
		return nil, err
	}
	views := make([]DriverView, 0, len(drivers))
	for _, d := range drivers {
		loc, err := s.store.LatestLocation(ctx, d.DriverID)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		views = append(views, DriverView{Availability: d, Location: loc})
	}
	return views, nil
}
