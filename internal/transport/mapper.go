package transport

import (
	"time"

	"mealdrop/internal/domain"
	"mealdrop/internal/service"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type OrderResponse struct {
	ID               string    `json:"id"`
	CustomerID       string    `json:"customer_id"`
	RestaurantID     string    `json:"restaurant_id"`
	Status           string    `json:"status"`
	DeliveryAddress  string    `json:"delivery_address,omitempty"`
	Dropoff          *Location `json:"dropoff,omitempty"`
	DeliveryFeeCents int64     `json:"delivery_fee_cents"`
	DiscountCents    int64     `json:"discount_cents"`
	TotalCents       int64     `json:"total_cents"`
	EstimatedMinutes *int      `json:"estimated_minutes,omitempty"`
	Notes            string    `json:"notes,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

type OrderItemResponse struct {
	ID             string `json:"id"`
	MenuItemID     string `json:"menu_item_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	SubtotalCents  int64  `json:"subtotal_cents"`
	Notes          string `json:"notes,omitempty"`
}

type StatusUpdateResponse struct {
	Status    string    `json:"status"`
	ActorID   *string   `json:"actor_id,omitempty"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type TaskResponse struct {
	ID          string     `json:"id"`
	DriverID    string     `json:"driver_id"`
	OrderID     string     `json:"order_id"`
	Status      string     `json:"status"`
	AssignedAt  time.Time  `json:"assigned_at"`
	AcceptedAt  *time.Time `json:"accepted_at,omitempty"`
	PickedUpAt  *time.Time `json:"picked_up_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Notes       string     `json:"notes,omitempty"`
}

type OrderViewResponse struct {
	Order      OrderResponse          `json:"order"`
	Items      []OrderItemResponse    `json:"items"`
	Audit      []StatusUpdateResponse `json:"audit"`
	Task       *TaskResponse          `json:"task,omitempty"`
	ETAMinutes *int                   `json:"eta_minutes,omitempty"`
}

type AvailabilityResponse struct {
	DriverID  string    `json:"driver_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LocationPingResponse struct {
	DriverID   string    `json:"driver_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	AccuracyM  *float64  `json:"accuracy_m,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

type DriverViewResponse struct {
	Availability AvailabilityResponse  `json:"availability"`
	Location     *LocationPingResponse `json:"location,omitempty"`
}

type EarningResponse struct {
	ID          string    `json:"id"`
	DriverID    string    `json:"driver_id"`
	OrderID     *string   `json:"order_id,omitempty"`
	AmountCents int64     `json:"amount_cents"`
	Description string    `json:"description,omitempty"`
	IsBonus     bool      `json:"is_bonus"`
	CreatedAt   time.Time `json:"created_at"`
}

func FromOrder(order *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:               order.ID,
		CustomerID:       order.CustomerID,
		RestaurantID:     order.RestaurantID,
		Status:           string(order.Status),
		DeliveryAddress:  order.DeliveryAddress,
		DeliveryFeeCents: order.DeliveryFeeCents,
		DiscountCents:    order.DiscountCents,
		TotalCents:       order.TotalCents,
		EstimatedMinutes: order.EstimatedMinutes,
		Notes:            order.Notes,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	if order.Dropoff != nil {
		resp.Dropoff = &Location{Lat: order.Dropoff.Lat, Lng: order.Dropoff.Lng}
	}
	return resp
}

func FromOrderView(view *service.OrderView) OrderViewResponse {
	resp := OrderViewResponse{
		Order:      FromOrder(view.Order),
		Items:      make([]OrderItemResponse, 0, len(view.Items)),
		Audit:      make([]StatusUpdateResponse, 0, len(view.Audit)),
		ETAMinutes: view.ETAMinutes,
	}
	for _, item := range view.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			ID:             item.ID,
			MenuItemID:     item.MenuItemID,
			Name:           item.Name,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.SubtotalCents,
			Notes:          item.Notes,
		})
	}
	for _, upd := range view.Audit {
		resp.Audit = append(resp.Audit, StatusUpdateResponse{
			Status:    string(upd.Status),
			ActorID:   upd.ActorID,
			Note:      upd.Note,
			CreatedAt: upd.CreatedAt,
		})
	}
	if view.Task != nil {
		task := FromTask(view.Task)
		resp.Task = &task
	}
	return resp
}

func FromTask(task *domain.DriverTask) TaskResponse {
	return TaskResponse{
		ID:          task.ID,
		DriverID:    task.DriverID,
		OrderID:     task.OrderID,
		Status:      string(task.Status),
		AssignedAt:  task.AssignedAt,
		AcceptedAt:  task.AcceptedAt,
		PickedUpAt:  task.PickedUpAt,
		CompletedAt: task.CompletedAt,
		Notes:       task.Notes,
	}
}

func FromAvailability(av *domain.DriverAvailability) AvailabilityResponse {
	return AvailabilityResponse{
		DriverID:  av.DriverID,
		Status:    string(av.Status),
		UpdatedAt: av.UpdatedAt,
	}
}

func FromLocation(loc *domain.DriverLocation) LocationPingResponse {
	return LocationPingResponse{
		DriverID:   loc.DriverID,
		Lat:        loc.Lat,
		Lng:        loc.Lng,
		AccuracyM:  loc.AccuracyM,
		RecordedAt: loc.RecordedAt,
	}
}

func FromDriverView(view service.DriverView) DriverViewResponse {
	resp := DriverViewResponse{Availability: FromAvailability(&view.Availability)}
	if view.Location != nil {
		loc := FromLocation(view.Location)
		resp.Location = &loc
	}
	return resp
}

func FromEarning(earning *domain.DriverEarning) EarningResponse {
	return EarningResponse{
		ID:          earning.ID,
		DriverID:    earning.DriverID,
		OrderID:     earning.OrderID,
		AmountCents: earning.AmountCents,
		Description: earning.Description,
		IsBonus:     earning.IsBonus,
		CreatedAt:   earning.CreatedAt,
	}
}
