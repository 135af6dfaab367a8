package events

import (
	"encoding/json"
	"testing"
	"time"

	"mealdrop/internal/domain"
)

func TestNewOrderEventPayload(t *testing.T) {
	now := time.Now().UTC()
	actor := "cust-1"
	order := &domain.Order{
		ID:           "o1",
		CustomerID:   "cust-1",
		RestaurantID: "r1",
		Status:       domain.OrderStatusPlaced,
		TotalCents:   2750,
	}

	evt, err := NewOrderEvent(EventOrderPlaced, order, &actor, now)
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	if evt.Type != EventOrderPlaced || evt.AggregateType != AggregateOrder || evt.AggregateID != "o1" {
		t.Fatalf("unexpected envelope: %+v", evt)
	}
	var payload OrderEventPayload
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "o1" || payload.TotalCents != 2750 || payload.ActorID == nil || *payload.ActorID != "cust-1" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestNewEventReportsMarshalFailure(t *testing.T) {
	if _, err := NewEvent("bad.payload", AggregateOrder, "o1", func() {}, time.Now()); err == nil {
		t.Fatal("expected marshal error for unencodable payload")
	}
}
