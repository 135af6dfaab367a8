package grpcapi

import "mealdrop/internal/transport"

type Empty struct{}

type TokenRequest struct {
	UserID       string `json:"user_id"`
	Role         string `json:"role"`
	RestaurantID string `json:"restaurant_id"`
}

type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type OrderItemInput struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int    `json:"quantity"`
	Notes      string `json:"notes"`
}

type PlaceOrderRequest struct {
	RestaurantID    string              `json:"restaurant_id"`
	Items           []OrderItemInput    `json:"items"`
	DeliveryAddress string              `json:"delivery_address"`
	Dropoff         *transport.Location `json:"dropoff"`
	DiscountCents   int64               `json:"discount_cents"`
	Notes           string              `json:"notes"`
}

type OrderIDRequest struct {
	OrderID string `json:"order_id"`
}

type RejectOrderRequest struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
}

type MarkReadyResponse struct {
	Order             transport.OrderResponse `json:"order"`
	Task              *transport.TaskResponse `json:"task,omitempty"`
	NoDriverAvailable bool                    `json:"no_driver_available"`
}

type ListOrdersRequest struct {
	Status       string `json:"status"`
	RestaurantID string `json:"restaurant_id"`
	CustomerID   string `json:"customer_id"`
	Limit        int    `json:"limit"`
	Offset       int    `json:"offset"`
}

type ListOrdersResponse struct {
	Orders []transport.OrderResponse `json:"orders"`
}

type LocationRequest struct {
	Lat       float64  `json:"lat"`
	Lng       float64  `json:"lng"`
	AccuracyM *float64 `json:"accuracy_m"`
}

type TaskIDRequest struct {
	TaskID string `json:"task_id"`
}

type RejectTaskRequest struct {
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

type RejectTaskResponse struct {
	Task       transport.TaskResponse  `json:"task"`
	Reassigned *transport.TaskResponse `json:"reassigned,omitempty"`
}

type EarningsResponse struct {
	Earnings   []transport.EarningResponse `json:"earnings"`
	TotalCents int64                       `json:"total_cents"`
}

type ListDriversResponse struct {
	Drivers []transport.DriverViewResponse `json:"drivers"`
}

type BonusRequest struct {
	DriverID    string  `json:"driver_id"`
	OrderID     *string `json:"order_id"`
	AmountCents int64   `json:"amount_cents"`
	Description string  `json:"description"`
}

type SweepResponse struct {
	Cancelled int `json:"cancelled"`
}
