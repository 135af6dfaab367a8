package domain

import "time"

const (
	RoleCustomer   = "customer"
	RoleRestaurant = "restaurant"
	RoleDriver     = "driver"
	RoleAdmin      = "admin"
)

type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "PLACED"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusPreparing      OrderStatus = "PREPARING"
	OrderStatusReadyForPickup OrderStatus = "READY_FOR_PICKUP"
	OrderStatusPickedUp       OrderStatus = "PICKED_UP"
	OrderStatusOnTheWay       OrderStatus = "ON_THE_WAY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusAccepted  TaskStatus = "ACCEPTED"
	TaskStatusRejected  TaskStatus = "REJECTED"
	TaskStatusPickedUp  TaskStatus = "PICKED_UP"
	TaskStatusDelivered TaskStatus = "DELIVERED"
	TaskStatusCancelled TaskStatus = "CANCELLED"
)

type AvailabilityStatus string

const (
	DriverAvailable AvailabilityStatus = "AVAILABLE"
	DriverBusy      AvailabilityStatus = "BUSY"
	DriverOffline   AvailabilityStatus = "OFFLINE"
)

type Location struct {
	Lat float64
	Lng float64
}

type Order struct {
	ID               string
	CustomerID       string
	RestaurantID     string
	Status           OrderStatus
	DeliveryAddress  string
	Dropoff          *Location
	DeliveryFeeCents int64
	DiscountCents    int64
	TotalCents       int64
	EstimatedMinutes *int
	Notes            string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// OrderItem snapshots the menu price at placement time; UnitPriceCents never
// tracks later menu edits.
type OrderItem struct {
	ID             string
	OrderID        string
	MenuItemID     string
	Name           string
	Quantity       int
	UnitPriceCents int64
	SubtotalCents  int64
	Notes          string
}

// OrderStatusUpdate is one row of the append-only audit trail. A nil ActorID
// denotes a system-initiated transition.
type OrderStatusUpdate struct {
	ID        int64
	OrderID   string
	Status    OrderStatus
	ActorID   *string
	Note      string
	CreatedAt time.Time
}

// DriverAvailability holds current state only, exactly one row per driver.
type DriverAvailability struct {
	DriverID  string
	Status    AvailabilityStatus
	UpdatedAt time.Time
}

// DriverLocation is one ping of the append-only location series. The most
// recent row by RecordedAt is the driver's current position.
type DriverLocation struct {
	ID         int64
	DriverID   string
	Lat        float64
	Lng        float64
	AccuracyM  *float64
	RecordedAt time.Time
}

type DriverTask struct {
	ID          string
	DriverID    string
	OrderID     string
	Status      TaskStatus
	AssignedAt  time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	CompletedAt *time.Time
	Notes       string
}

// DriverEarning is append-only. OrderID is nil for bonus rows not tied to a
// specific delivery.
type DriverEarning struct {
	ID          string
	DriverID    string
	OrderID     *string
	AmountCents int64
	Description string
	IsBonus     bool
	CreatedAt   time.Time
}

type Restaurant struct {
	ID       string
	OwnerID  string
	Name     string
	Address  string
	Position *Location
	IsOpen   bool
}

type MenuItem struct {
	ID           string
	RestaurantID string
	Name         string
	PriceCents   int64
	Available    bool
}

func (s TaskStatus) Active() bool {
	switch s {
	case TaskStatusPending, TaskStatusAccepted, TaskStatusPickedUp:
		return true
	default:
		return false
	}
}

func IsTerminal(status OrderStatus) bool {
	switch status {
	case OrderStatusDelivered, OrderStatusCancelled:
		return true
	default:
		return false
	}
}
