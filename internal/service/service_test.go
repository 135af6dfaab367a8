package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
)

type memStore struct {
	mu           sync.Mutex
	orders       map[string]*domain.Order
	items        map[string][]domain.OrderItem
	updates      map[string][]domain.OrderStatusUpdate
	tasks        map[string]*domain.DriverTask
	availability map[string]*domain.DriverAvailability
	locations    map[string][]domain.DriverLocation
	earnings     map[string][]domain.DriverEarning
	restaurants  map[string]*domain.Restaurant
	menuItems    map[string]*domain.MenuItem
	events       []events.Event
}

type memTx struct {
	store  *memStore
	closed bool
}

func newMemStore() *memStore {
	return &memStore{
		orders:       make(map[string]*domain.Order),
		items:        make(map[string][]domain.OrderItem),
		updates:      make(map[string][]domain.OrderStatusUpdate),
		tasks:        make(map[string]*domain.DriverTask),
		availability: make(map[string]*domain.DriverAvailability),
		locations:    make(map[string][]domain.DriverLocation),
		earnings:     make(map[string][]domain.DriverEarning),
		restaurants:  make(map[string]*domain.Restaurant),
		menuItems:    make(map[string]*domain.MenuItem),
	}
}

func (m *memStore) BeginTx(ctx context.Context) (Tx, error) {
	m.mu.Lock()
	return &memTx{store: m}, nil
}

func (m *memStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrder(id)
}

func (m *memStore) getOrder(id string) (*domain.Order, error) {
	order, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *order
	return &cp, nil
}

func (m *memStore) ListOrders(ctx context.Context, filter OrderFilter) ([]*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var orders []*domain.Order
	for _, order := range m.orders {
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.RestaurantID != "" && order.RestaurantID != filter.RestaurantID {
			continue
		}
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		cp := *order
		orders = append(orders, &cp)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (m *memStore) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderItem(nil), m.items[orderID]...), nil
}

func (m *memStore) ListStatusUpdates(ctx context.Context, orderID string) ([]domain.OrderStatusUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.OrderStatusUpdate(nil), m.updates[orderID]...), nil
}

func (m *memStore) GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.restaurants[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.menuItems[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

func (m *memStore) GetTask(ctx context.Context, id string) (*domain.DriverTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getTask(id)
}

func (m *memStore) getTask(id string) (*domain.DriverTask, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *task
	return &cp, nil
}

func (m *memStore) ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTaskForOrder(orderID)
}

func (m *memStore) activeTaskForOrder(orderID string) (*domain.DriverTask, error) {
	for _, task := range m.tasks {
		if task.OrderID == orderID && task.Status.Active() {
			cp := *task
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.activeTaskForDriver(driverID)
}

func (m *memStore) activeTaskForDriver(driverID string) (*domain.DriverTask, error) {
	for _, task := range m.tasks {
		if task.DriverID == driverID && task.Status.Active() {
			cp := *task
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memStore) GetAvailability(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	av, ok := m.availability[driverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *av
	return &cp, nil
}

func (m *memStore) ListDrivers(ctx context.Context) ([]domain.DriverAvailability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var drivers []domain.DriverAvailability
	for _, av := range m.availability {
		drivers = append(drivers, *av)
	}
	sort.Slice(drivers, func(i, j int) bool { return drivers[i].DriverID < drivers[j].DriverID })
	return drivers, nil
}

func (m *memStore) LatestLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latestLocation(driverID)
}

func (m *memStore) latestLocation(driverID string) (*domain.DriverLocation, error) {
	pings := m.locations[driverID]
	if len(pings) == 0 {
		return nil, domain.ErrNotFound
	}
	cp := pings[len(pings)-1]
	return &cp, nil
}

func (m *memStore) ListEarnings(ctx context.Context, driverID string) ([]domain.DriverEarning, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.DriverEarning(nil), m.earnings[driverID]...), nil
}

func (t *memTx) Commit(ctx context.Context) error {
	return t.close()
}

func (t *memTx) Rollback(ctx context.Context) error {
	return t.close()
}

func (t *memTx) close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.store.mu.Unlock()
	return nil
}

func (t *memTx) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return t.store.getOrder(id)
}

func (t *memTx) CreateOrder(ctx context.Context, order *domain.Order) error {
	if _, ok := t.store.orders[order.ID]; ok {
		return domain.ErrConflict
	}
	cp := *order
	t.store.orders[order.ID] = &cp
	return nil
}

func (t *memTx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	cp := *order
	t.store.orders[order.ID] = &cp
	return nil
}

func (t *memTx) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	t.store.items[item.OrderID] = append(t.store.items[item.OrderID], *item)
	return nil
}

func (t *memTx) AppendStatusUpdate(ctx context.Context, upd *domain.OrderStatusUpdate) error {
	t.store.updates[upd.OrderID] = append(t.store.updates[upd.OrderID], *upd)
	return nil
}

func (t *memTx) GetTaskForUpdate(ctx context.Context, id string) (*domain.DriverTask, error) {
	return t.store.getTask(id)
}

func (t *memTx) ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error) {
	return t.store.activeTaskForOrder(orderID)
}

func (t *memTx) ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error) {
	return t.store.activeTaskForDriver(driverID)
}

func (t *memTx) TriedDriverIDs(ctx context.Context, orderID string) ([]string, error) {
	seen := map[string]bool{}
	var ids []string
	for _, task := range t.store.tasks {
		if task.OrderID == orderID && !seen[task.DriverID] {
			seen[task.DriverID] = true
			ids = append(ids, task.DriverID)
		}
	}
	return ids, nil
}

func (t *memTx) CreateTask(ctx context.Context, task *domain.DriverTask) error {
	if _, ok := t.store.tasks[task.ID]; ok {
		return domain.ErrConflict
	}
	cp := *task
	t.store.tasks[task.ID] = &cp
	return nil
}

func (t *memTx) UpdateTask(ctx context.Context, task *domain.DriverTask) error {
	cp := *task
	t.store.tasks[task.ID] = &cp
	return nil
}

func (t *memTx) GetAvailabilityForUpdate(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	av, ok := t.store.availability[driverID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *av
	return &cp, nil
}

func (t *memTx) UpsertAvailability(ctx context.Context, av *domain.DriverAvailability) error {
	cp := *av
	t.store.availability[av.DriverID] = &cp
	return nil
}

func (t *memTx) AppendLocation(ctx context.Context, loc *domain.DriverLocation) error {
	t.store.locations[loc.DriverID] = append(t.store.locations[loc.DriverID], *loc)
	return nil
}

func (t *memTx) EligibleDrivers(ctx context.Context, freshSince time.Time, excluded, shortlist []string) ([]Candidate, error) {
	excludedSet := map[string]bool{}
	for _, id := range excluded {
		excludedSet[id] = true
	}
	var allowedSet map[string]bool
	if shortlist != nil {
		allowedSet = map[string]bool{}
		for _, id := range shortlist {
			allowedSet[id] = true
		}
	}
	var candidates []Candidate
	for id, av := range t.store.availability {
		if av.Status != domain.DriverAvailable || excludedSet[id] {
			continue
		}
		if allowedSet != nil && !allowedSet[id] {
			continue
		}
		loc, err := t.store.latestLocation(id)
		if err != nil || loc.RecordedAt.Before(freshSince) {
			continue
		}
		candidates = append(candidates, Candidate{DriverID: id, Lat: loc.Lat, Lng: loc.Lng, RecordedAt: loc.RecordedAt})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].DriverID < candidates[j].DriverID })
	return candidates, nil
}

func (t *memTx) TimedOutOrders(ctx context.Context, placedBefore time.Time) ([]*domain.Order, error) {
	var orders []*domain.Order
	for _, order := range t.store.orders {
		if order.Status == domain.OrderStatusPlaced && order.CreatedAt.Before(placedBefore) {
			cp := *order
			orders = append(orders, &cp)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.Before(orders[j].CreatedAt) })
	return orders, nil
}

func (t *memTx) CreateEarning(ctx context.Context, earning *domain.DriverEarning) error {
	t.store.earnings[earning.DriverID] = append(t.store.earnings[earning.DriverID], *earning)
	return nil
}

func (t *memTx) EnqueueEvent(ctx context.Context, event events.Event) error {
	t.store.events = append(t.store.events, event)
	return nil
}

func seedCatalog(store *memStore) {
	store.restaurants["r1"] = &domain.Restaurant{
		ID:       "r1",
		OwnerID:  "owner-1",
		Name:     "Falafel House",
		Position: &domain.Location{Lat: 24.7136, Lng: 46.6753},
		IsOpen:   true,
	}
	store.menuItems["m1"] = &domain.MenuItem{ID: "m1", RestaurantID: "r1", Name: "Falafel Wrap", PriceCents: 1000, Available: true}
	store.menuItems["m2"] = &domain.MenuItem{ID: "m2", RestaurantID: "r1", Name: "Lemonade", PriceCents: 500, Available: true}
}

func newTestService(store *memStore) *Service {
	svc := New(store, nil, DefaultConfig())
	return svc
}

func TestPlaceOrderPricesAndAudits(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:   "cust-1",
		RestaurantID: "r1",
		Items: []OrderItemInput{
			{MenuItemID: "m1", Quantity: 2},
			{MenuItemID: "m2", Quantity: 1},
		},
		DeliveryAddress: "12 Olaya St",
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.Status != domain.OrderStatusPlaced {
		t.Fatalf("expected PLACED, got %s", order.Status)
	}
	// 2x1000 + 1x500 items plus the 250 base fee.
	if order.TotalCents != 2750 {
		t.Fatalf("expected total 2750, got %d", order.TotalCents)
	}
	items, _ := store.ListOrderItems(context.Background(), order.ID)
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	if items[0].UnitPriceCents != 1000 || items[0].SubtotalCents != 2000 {
		t.Fatalf("unexpected price snapshot: %+v", items[0])
	}
	updates, _ := store.ListStatusUpdates(context.Background(), order.ID)
	if len(updates) != 1 || updates[0].Status != domain.OrderStatusPlaced {
		t.Fatalf("expected one PLACED audit row, got %+v", updates)
	}
	if len(store.events) != 1 || store.events[0].Type != events.EventOrderPlaced {
		t.Fatalf("expected order.placed event, got %+v", store.events)
	}
}

func TestPlaceOrderDiscountNeverGoesNegative(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)

	order, err := svc.PlaceOrder(context.Background(), PlaceOrderCommand{
		CustomerID:    "cust-1",
		RestaurantID:  "r1",
		Items:         []OrderItemInput{{MenuItemID: "m2", Quantity: 1}},
		DiscountCents: 100000,
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	if order.TotalCents != 0 {
		t.Fatalf("expected total floored at 0, got %d", order.TotalCents)
	}
}

func TestPlaceOrderValidation(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	store.restaurants["r2"] = &domain.Restaurant{ID: "r2", OwnerID: "owner-2", Name: "Closed Corner", IsOpen: false}
	store.menuItems["m3"] = &domain.MenuItem{ID: "m3", RestaurantID: "r1", Name: "Off Menu", PriceCents: 700, Available: false}
	svc := newTestService(store)

	cases := []struct {
		name string
		cmd  PlaceOrderCommand
		want error
	}{
		{
			name: "closed restaurant",
			cmd:  PlaceOrderCommand{CustomerID: "c", RestaurantID: "r2", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 1}}},
			want: domain.ErrConflict,
		},
		{
			name: "unknown menu item",
			cmd:  PlaceOrderCommand{CustomerID: "c", RestaurantID: "r1", Items: []OrderItemInput{{MenuItemID: "nope", Quantity: 1}}},
			want: domain.ErrInvalid,
		},
		{
			name: "zero quantity",
			cmd:  PlaceOrderCommand{CustomerID: "c", RestaurantID: "r1", Items: []OrderItemInput{{MenuItemID: "m1", Quantity: 0}}},
			want: domain.ErrInvalid,
		},
		{
			name: "unavailable item",
			cmd:  PlaceOrderCommand{CustomerID: "c", RestaurantID: "r1", Items: []OrderItemInput{{MenuItemID: "m3", Quantity: 1}}},
			want: domain.ErrInvalid,
		},
		{
			name: "no items",
			cmd:  PlaceOrderCommand{CustomerID: "c", RestaurantID: "r1"},
			want: domain.ErrInvalid,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PlaceOrder(context.Background(), tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCancelOrderOnlyBeforePreparing(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()

	for _, status := range []domain.OrderStatus{domain.OrderStatusPlaced, domain.OrderStatusConfirmed} {
		id := "order-" + string(status)
		store.orders[id] = &domain.Order{ID: id, CustomerID: "cust-1", RestaurantID: "r1", Status: status, CreatedAt: now, UpdatedAt: now}
		order, err := svc.CancelOrder(context.Background(), "cust-1", id)
		if err != nil {
			t.Fatalf("cancel %s: %v", status, err)
		}
		if order.Status != domain.OrderStatusCancelled {
			t.Fatalf("expected CANCELLED, got %s", order.Status)
		}
	}

	store.orders["o-prep"] = &domain.Order{ID: "o-prep", CustomerID: "cust-1", RestaurantID: "r1", Status: domain.OrderStatusPreparing, CreatedAt: now, UpdatedAt: now}
	if _, err := svc.CancelOrder(context.Background(), "cust-1", "o-prep"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict cancelling PREPARING order, got %v", err)
	}

	store.orders["o-other"] = &domain.Order{ID: "o-other", CustomerID: "cust-2", RestaurantID: "r1", Status: domain.OrderStatusPlaced, CreatedAt: now, UpdatedAt: now}
	if _, err := svc.CancelOrder(context.Background(), "cust-1", "o-other"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for someone else's order, got %v", err)
	}
}

func TestRestaurantLifecycle(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()
	store.orders["o1"] = &domain.Order{ID: "o1", CustomerID: "cust-1", RestaurantID: "r1", Status: domain.OrderStatusPlaced, CreatedAt: now, UpdatedAt: now}

	order, err := svc.RestaurantAccept(context.Background(), "r1", "o1")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if order.Status != domain.OrderStatusConfirmed {
		t.Fatalf("expected CONFIRMED, got %s", order.Status)
	}

	if _, err := svc.RestaurantAccept(context.Background(), "r1", "o1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on double accept, got %v", err)
	}
	if _, err := svc.MarkPreparing(context.Background(), "r-other", "o1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for wrong restaurant, got %v", err)
	}

	order, err = svc.MarkPreparing(context.Background(), "r1", "o1")
	if err != nil {
		t.Fatalf("preparing: %v", err)
	}
	if order.Status != domain.OrderStatusPreparing {
		t.Fatalf("expected PREPARING, got %s", order.Status)
	}

	updates, _ := store.ListStatusUpdates(context.Background(), "o1")
	if len(updates) != 2 {
		t.Fatalf("expected 2 audit rows, got %d", len(updates))
	}
}

func TestRestaurantRejectCancels(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()
	store.orders["o1"] = &domain.Order{ID: "o1", CustomerID: "cust-1", RestaurantID: "r1", Status: domain.OrderStatusPlaced, CreatedAt: now, UpdatedAt: now}

	order, err := svc.RestaurantReject(context.Background(), "r1", "o1", "out of stock")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if order.Status != domain.OrderStatusCancelled {
		t.Fatalf("expected CANCELLED, got %s", order.Status)
	}
	updates, _ := store.ListStatusUpdates(context.Background(), "o1")
	if len(updates) != 1 || updates[0].Note != "Rejected by restaurant: out of stock" {
		t.Fatalf("unexpected audit rows: %+v", updates)
	}
}
