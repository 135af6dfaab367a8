package domain

import "testing"

func TestOrderTransitionsAreForwardOnly(t *testing.T) {
	happyPath := []OrderStatus{
		OrderStatusPlaced,
		OrderStatusConfirmed,
		OrderStatusPreparing,
		OrderStatusReadyForPickup,
		OrderStatusPickedUp,
		OrderStatusOnTheWay,
		OrderStatusDelivered,
	}
	for i := 0; i < len(happyPath)-1; i++ {
		if !CanTransitionOrder(happyPath[i], happyPath[i+1]) {
			t.Fatalf("expected %s -> %s to be allowed", happyPath[i], happyPath[i+1])
		}
		// No going back.
		if CanTransitionOrder(happyPath[i+1], happyPath[i]) {
			t.Fatalf("expected %s -> %s to be rejected", happyPath[i+1], happyPath[i])
		}
	}
	for _, skip := range [][2]OrderStatus{
		{OrderStatusPlaced, OrderStatusPreparing},
		{OrderStatusConfirmed, OrderStatusReadyForPickup},
		{OrderStatusPreparing, OrderStatusDelivered},
	} {
		if CanTransitionOrder(skip[0], skip[1]) {
			t.Fatalf("expected skip %s -> %s to be rejected", skip[0], skip[1])
		}
	}
}

func TestCancellationWindow(t *testing.T) {
	if !CanTransitionOrder(OrderStatusPlaced, OrderStatusCancelled) {
		t.Fatal("PLACED must be cancellable")
	}
	if !CanTransitionOrder(OrderStatusConfirmed, OrderStatusCancelled) {
		t.Fatal("CONFIRMED must be cancellable")
	}
	for _, status := range []OrderStatus{OrderStatusPreparing, OrderStatusReadyForPickup, OrderStatusPickedUp, OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled} {
		if CanTransitionOrder(status, OrderStatusCancelled) {
			t.Fatalf("%s must not be cancellable", status)
		}
		if CustomerCanCancel(status) {
			t.Fatalf("customer must not cancel a %s order", status)
		}
	}
}

func TestTerminalStatesAbsorb(t *testing.T) {
	for _, terminal := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
		if !IsTerminal(terminal) {
			t.Fatalf("%s should be terminal", terminal)
		}
		for _, to := range []OrderStatus{OrderStatusPlaced, OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReadyForPickup, OrderStatusPickedUp, OrderStatusOnTheWay, OrderStatusDelivered, OrderStatusCancelled} {
			if CanTransitionOrder(terminal, to) {
				t.Fatalf("%s -> %s should be rejected", terminal, to)
			}
		}
	}
}

func TestTaskTransitions(t *testing.T) {
	if !CanTransitionTask(TaskStatusPending, TaskStatusAccepted) || !CanTransitionTask(TaskStatusPending, TaskStatusRejected) {
		t.Fatal("PENDING must allow accept and reject")
	}
	if CanTransitionTask(TaskStatusPending, TaskStatusPickedUp) {
		t.Fatal("pickup requires acceptance first")
	}
	if CanTransitionTask(TaskStatusAccepted, TaskStatusRejected) {
		t.Fatal("an accepted task cannot be rejected")
	}
	if !CanTransitionTask(TaskStatusAccepted, TaskStatusPickedUp) || !CanTransitionTask(TaskStatusPickedUp, TaskStatusDelivered) {
		t.Fatal("accepted tasks must progress through pickup to delivery")
	}
	for _, terminal := range []TaskStatus{TaskStatusRejected, TaskStatusDelivered, TaskStatusCancelled} {
		if terminal.Active() {
			t.Fatalf("%s should not count as active", terminal)
		}
	}
	for _, active := range []TaskStatus{TaskStatusPending, TaskStatusAccepted, TaskStatusPickedUp} {
		if !active.Active() {
			t.Fatalf("%s should count as active", active)
		}
	}
}

func TestKnownStatuses(t *testing.T) {
	if KnownOrderStatus("SHIPPED") {
		t.Fatal("SHIPPED is not a valid order status")
	}
	if KnownTaskStatus("EXPIRED") {
		t.Fatal("EXPIRED is not a valid task status")
	}
}
