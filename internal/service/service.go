package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
	"mealdrop/internal/geo"
)

// Store is the read surface plus the transaction factory. Every lookup
// returns domain.ErrNotFound for an absent row, never a nil value with a nil
// error.
type Store interface {
	BeginTx(ctx context.Context) (Tx, error)
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error)
	ListStatusUpdates(ctx context.Context, orderID string) ([]domain.OrderStatusUpdate, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error)
	GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error)
	GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error)
	GetTask(ctx context.Context, id string) (*domain.DriverTask, error)
	ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error)
	ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error)
	GetAvailability(ctx context.Context, driverID string) (*domain.DriverAvailability, error)
	ListDrivers(ctx context.Context) ([]domain.DriverAvailability, error)
	LatestLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error)
	ListEarnings(ctx context.Context, driverID string) ([]domain.DriverEarning, error)
}

type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error)
	CreateOrder(ctx context.Context, order *domain.Order) error
	UpdateOrder(ctx context.Context, order *domain.Order) error
	CreateOrderItem(ctx context.Context, item *domain.OrderItem) error
	AppendStatusUpdate(ctx context.Context, upd *domain.OrderStatusUpdate) error
	GetTaskForUpdate(ctx context.Context, id string) (*domain.DriverTask, error)
	ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error)
	ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error)
	TriedDriverIDs(ctx context.Context, orderID string) ([]string, error)
	CreateTask(ctx context.Context, task *domain.DriverTask) error
	UpdateTask(ctx context.Context, task *domain.DriverTask) error
	GetAvailabilityForUpdate(ctx context.Context, driverID string) (*domain.DriverAvailability, error)
	UpsertAvailability(ctx context.Context, av *domain.DriverAvailability) error
	AppendLocation(ctx context.Context, loc *domain.DriverLocation) error
	EligibleDrivers(ctx context.Context, freshSince time.Time, excluded, shortlist []string) ([]Candidate, error)
	TimedOutOrders(ctx context.Context, placedBefore time.Time) ([]*domain.Order, error)
	CreateEarning(ctx context.Context, earning *domain.DriverEarning) error
	EnqueueEvent(ctx context.Context, event events.Event) error
}

// Candidate is a dispatch-eligible driver with their freshest location. The
// availability row backing a candidate is locked for the rest of the
// transaction, so flipping the winner to BUSY cannot race another assign.
type Candidate struct {
	DriverID   string
	Lat        float64
	Lng        float64
	RecordedAt time.Time
}

// LocationIndex is an optional hot index over driver positions used to
// shortlist dispatch candidates. The database stays authoritative; index
// failures degrade dispatch to a full candidate scan.
type LocationIndex interface {
	Update(ctx context.Context, driverID string, lat, lng float64) error
	Remove(ctx context.Context, driverID string) error
	Nearby(ctx context.Context, lat, lng, radiusKm float64, limit int) ([]string, error)
}

type OrderFilter struct {
	Status       *domain.OrderStatus
	RestaurantID string
	CustomerID   string
	Limit        int
	Offset       int
}

type Config struct {
	LocationFreshness  time.Duration
	PlacedOrderTimeout time.Duration
	BaseFeeCents       int64
	PerKmFeeCents      int64
	PrepMinutes        int
	SpeedKmPerMin      float64
	BaseEarningCents   int64
	ShortlistRadiusKm  float64
	ShortlistLimit     int
}

func DefaultConfig() Config {
	return Config{
		LocationFreshness:  10 * time.Minute,
		PlacedOrderTimeout: 20 * time.Minute,
		BaseFeeCents:       geo.DefaultBaseFeeCents,
		PerKmFeeCents:      geo.DefaultPerKmCents,
		PrepMinutes:        geo.DefaultPrepMinutes,
		SpeedKmPerMin:      geo.DefaultSpeedKmPerMin,
		BaseEarningCents:   400,
		ShortlistRadiusKm:  10,
		ShortlistLimit:     20,
	}
}

type Service struct {
	store Store
	index LocationIndex
	cfg   Config
	now   func() time.Time
}

func New(store Store, index LocationIndex, cfg Config) *Service {
	return &Service{
		store: store,
		index: index,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

type OrderItemInput struct {
	MenuItemID string
	Quantity   int
	Notes      string
}

type PlaceOrderCommand struct {
	CustomerID      string
	RestaurantID    string
	Items           []OrderItemInput
	DeliveryAddress string
	Dropoff         *domain.Location
	DiscountCents   int64
	Notes           string
}

// PlaceOrder validates every line against the catalog, snapshots unit
// prices, prices the delivery, and writes the order, its items, the initial
// PLACED audit row, and the placement event in one transaction.
func (s *Service) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (*domain.Order, error) {
	if cmd.CustomerID == "" || cmd.RestaurantID == "" || len(cmd.Items) == 0 {
		return nil, fmt.Errorf("%w: missing customer, restaurant, or items", domain.ErrInvalid)
	}
	if cmd.DiscountCents < 0 {
		return nil, fmt.Errorf("%w: negative discount", domain.ErrInvalid)
	}
	if cmd.Dropoff != nil {
		if err := domain.ValidateLocation(*cmd.Dropoff); err != nil {
			return nil, err
		}
	}
	restaurant, err := s.store.GetRestaurant(ctx, cmd.RestaurantID)
	if err != nil {
		return nil, err
	}
	if !restaurant.IsOpen {
		return nil, fmt.Errorf("%w: restaurant %s is closed", domain.ErrConflict, restaurant.ID)
	}

	now := s.now()
	order := &domain.Order{
		ID:              uuid.NewString(),
		CustomerID:      cmd.CustomerID,
		RestaurantID:    cmd.RestaurantID,
		Status:          domain.OrderStatusPlaced,
		DeliveryAddress: cmd.DeliveryAddress,
		Dropoff:         cmd.Dropoff,
		DiscountCents:   cmd.DiscountCents,
		Notes:           cmd.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	var subtotal int64
	items := make([]domain.OrderItem, 0, len(cmd.Items))
	for _, in := range cmd.Items {
		if in.Quantity < 1 {
			return nil, fmt.Errorf("%w: quantity must be at least 1 for item %s", domain.ErrInvalid, in.MenuItemID)
		}
		menuItem, err := s.store.GetMenuItem(ctx, in.MenuItemID)
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%w: unknown menu item %s", domain.ErrInvalid, in.MenuItemID)
		}
		if err != nil {
			return nil, err
		}
		if menuItem.RestaurantID != cmd.RestaurantID {
			return nil, fmt.Errorf("%w: menu item %s does not belong to restaurant %s", domain.ErrInvalid, menuItem.ID, cmd.RestaurantID)
		}
		if !menuItem.Available {
			return nil, fmt.Errorf("%w: menu item %s is unavailable", domain.ErrInvalid, menuItem.ID)
		}
		item := domain.OrderItem{
			ID:             uuid.NewString(),
			OrderID:        order.ID,
			MenuItemID:     menuItem.ID,
			Name:           menuItem.Name,
			Quantity:       in.Quantity,
			UnitPriceCents: menuItem.PriceCents,
			SubtotalCents:  int64(in.Quantity) * menuItem.PriceCents,
			Notes:          in.Notes,
		}
		subtotal += item.SubtotalCents
		items = append(items, item)
	}

	order.DeliveryFeeCents = s.cfg.BaseFeeCents
	if restaurant.Position != nil && cmd.Dropoff != nil {
		dist := geo.DistanceKm(restaurant.Position.Lat, restaurant.Position.Lng, cmd.Dropoff.Lat, cmd.Dropoff.Lng)
		order.DeliveryFeeCents = geo.DeliveryFeeCents(dist, s.cfg.BaseFeeCents, s.cfg.PerKmFeeCents)
		eta := geo.OrderETAMinutes(dist, s.cfg.PrepMinutes, s.cfg.SpeedKmPerMin)
		order.EstimatedMinutes = &eta
	}
	order.TotalCents = totalCents(subtotal, order.DeliveryFeeCents, order.DiscountCents)

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if err := tx.CreateOrder(ctx, order); err != nil {
		return nil, err
	}
	for i := range items {
		if err := tx.CreateOrderItem(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	if err := tx.AppendStatusUpdate(ctx, &domain.OrderStatusUpdate{
		OrderID:   order.ID,
		Status:    domain.OrderStatusPlaced,
		ActorID:   &cmd.CustomerID,
		Note:      "Order placed.",
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}
	evt, err := events.NewOrderEvent(events.EventOrderPlaced, order, &cmd.CustomerID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// CancelOrder is the customer-initiated cancellation, permitted only before
// the kitchen starts preparing.
func (s *Service) CancelOrder(ctx context.Context, customerID, orderID string) (*domain.Order, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != customerID {
		return nil, domain.ErrNotFound
	}
	if !domain.CustomerCanCancel(order.Status) {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrConflict, order.Status)
	}
	now := s.now()
	if err := s.advanceOrder(ctx, tx, order, domain.OrderStatusCancelled, &customerID, "Cancelled by customer.", now); err != nil {
		return nil, err
	}
	evt, err := events.NewOrderEvent(events.EventOrderCancelled, order, &customerID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// RestaurantAccept confirms a PLACED order.
func (s *Service) RestaurantAccept(ctx context.Context, restaurantID, orderID string) (*domain.Order, error) {
	return s.restaurantTransition(ctx, restaurantID, orderID, domain.OrderStatusPlaced, domain.OrderStatusConfirmed, "Accepted by restaurant.")
}

// RestaurantReject cancels a PLACED order.
func (s *Service) RestaurantReject(ctx context.Context, restaurantID, orderID, reason string) (*domain.Order, error) {
	note := "Rejected by restaurant."
	if reason != "" {
		note = "Rejected by restaurant: " + reason
	}
	return s.restaurantTransition(ctx, restaurantID, orderID, domain.OrderStatusPlaced, domain.OrderStatusCancelled, note)
}

// MarkPreparing moves a CONFIRMED order into the kitchen.
func (s *Service) MarkPreparing(ctx context.Context, restaurantID, orderID string) (*domain.Order, error) {
	return s.restaurantTransition(ctx, restaurantID, orderID, domain.OrderStatusConfirmed, domain.OrderStatusPreparing, "Preparing.")
}

// MarkReadyResult carries the committed order plus the dispatch outcome.
// Task is nil when no driver was eligible; the order stays READY_FOR_PICKUP
// and can be re-dispatched later.
type MarkReadyResult struct {
	Order *domain.Order
	Task  *domain.DriverTask
}

// MarkReady transitions PREPARING -> READY_FOR_PICKUP and then invokes the
// dispatcher. The transition commits first: a dispatch failure must never
// roll back the kitchen's signal that the food is ready.
func (s *Service) MarkReady(ctx context.Context, restaurantID, orderID string) (*MarkReadyResult, error) {
	order, err := s.restaurantTransition(ctx, restaurantID, orderID, domain.OrderStatusPreparing, domain.OrderStatusReadyForPickup, "Ready for pickup.")
	if err != nil {
		return nil, err
	}
	task, err := s.AssignDriver(ctx, orderID)
	if errors.Is(err, domain.ErrNoEligibleDriver) {
		return &MarkReadyResult{Order: order}, nil
	}
	if err != nil {
		return nil, err
	}
	return &MarkReadyResult{Order: order, Task: task}, nil
}

func (s *Service) restaurantTransition(ctx context.Context, restaurantID, orderID string, from, to domain.OrderStatus, note string) (*domain.Order, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	order, err := tx.GetOrderForUpdate(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.RestaurantID != restaurantID {
		return nil, domain.ErrNotFound
	}
	if order.Status != from {
		return nil, fmt.Errorf("%w: order is %s", domain.ErrConflict, order.Status)
	}
	now := s.now()
	actor := restaurantID
	if err := s.advanceOrder(ctx, tx, order, to, &actor, note, now); err != nil {
		return nil, err
	}
	eventType := events.EventOrderStatusChanged
	if to == domain.OrderStatusCancelled {
		eventType = events.EventOrderCancelled
	}
	evt, err := events.NewOrderEvent(eventType, order, &actor, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return order, nil
}

// advanceOrder is the sanctioned status mutation path: it validates the
// transition, persists the new status, and appends the audit row. Every
// status change in the service funnels through here.
func (s *Service) advanceOrder(ctx context.Context, tx Tx, order *domain.Order, to domain.OrderStatus, actorID *string, note string, now time.Time) error {
	if !domain.KnownOrderStatus(to) {
		return fmt.Errorf("%w: unknown order status %q", domain.ErrInvalid, to)
	}
	if !domain.CanTransitionOrder(order.Status, to) {
		return fmt.Errorf("%w: cannot move order from %s to %s", domain.ErrConflict, order.Status, to)
	}
	order.Status = to
	order.UpdatedAt = now
	if err := tx.UpdateOrder(ctx, order); err != nil {
		return err
	}
	return tx.AppendStatusUpdate(ctx, &domain.OrderStatusUpdate{
		OrderID:   order.ID,
		Status:    to,
		ActorID:   actorID,
		Note:      note,
		CreatedAt: now,
	})
}

func totalCents(subtotal, deliveryFee, discount int64) int64 {
	total := subtotal + deliveryFee - discount
	if total < 0 {
		return 0
	}
	return total
}
