package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mealdrop/internal/domain"
)

const (
	AggregateOrder  = "order"
	AggregateTask   = "task"
	AggregateDriver = "driver"
)

// Event types double as notification triggers: the outbox worker publishes
// them to the broker and the notification system fans out from there.
const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderCancelled     = "order.cancelled"
	EventTaskAssigned       = "task.assigned"
	EventTaskAccepted       = "task.accepted"
	EventTaskRejected       = "task.rejected"
	EventTaskPickedUp       = "task.picked_up"
	EventTaskDelivered      = "task.delivered"
	EventEarningCreated     = "earning.created"
)

type Event struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Payload       json.RawMessage
	OccurredAt    time.Time
}

func NewEvent(eventType, aggregateType, aggregateID string, payload any, occurredAt time.Time) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:            uuid.NewString(),
		Type:          eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Payload:       data,
		OccurredAt:    occurredAt,
	}, nil
}

type OrderEventPayload struct {
	OrderID      string             `json:"order_id"`
	Status       domain.OrderStatus `json:"status"`
	CustomerID   string             `json:"customer_id"`
	RestaurantID string             `json:"restaurant_id"`
	TotalCents   int64              `json:"total_cents"`
	ActorID      *string            `json:"actor_id"`
	OccurredAt   time.Time          `json:"occurred_at"`
}

func NewOrderEvent(eventType string, order *domain.Order, actorID *string, occurredAt time.Time) (Event, error) {
	payload := OrderEventPayload{
		OrderID:      order.ID,
		Status:       order.Status,
		CustomerID:   order.CustomerID,
		RestaurantID: order.RestaurantID,
		TotalCents:   order.TotalCents,
		ActorID:      actorID,
		OccurredAt:   occurredAt,
	}
	return NewEvent(eventType, AggregateOrder, order.ID, payload, occurredAt)
}

type TaskEventPayload struct {
	TaskID     string            `json:"task_id"`
	OrderID    string            `json:"order_id"`
	DriverID   string            `json:"driver_id"`
	Status     domain.TaskStatus `json:"status"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func NewTaskEvent(eventType string, task *domain.DriverTask, occurredAt time.Time) (Event, error) {
	payload := TaskEventPayload{
		TaskID:     task.ID,
		OrderID:    task.OrderID,
		DriverID:   task.DriverID,
		Status:     task.Status,
		OccurredAt: occurredAt,
	}
	return NewEvent(eventType, AggregateTask, task.ID, payload, occurredAt)
}

type EarningEventPayload struct {
	EarningID   string    `json:"earning_id"`
	DriverID    string    `json:"driver_id"`
	OrderID     *string   `json:"order_id"`
	AmountCents int64     `json:"amount_cents"`
	IsBonus     bool      `json:"is_bonus"`
	OccurredAt  time.Time `json:"occurred_at"`
}

func NewEarningEvent(earning *domain.DriverEarning, occurredAt time.Time) (Event, error) {
	payload := EarningEventPayload{
		EarningID:   earning.ID,
		DriverID:    earning.DriverID,
		OrderID:     earning.OrderID,
		AmountCents: earning.AmountCents,
		IsBonus:     earning.IsBonus,
		OccurredAt:  occurredAt,
	}
	return NewEvent(EventEarningCreated, AggregateDriver, earning.DriverID, payload, occurredAt)
}
