package domain

// orderTransitions is the authoritative forward-only order state machine.
// CANCELLED is an absorbing state reachable only from PLACED and CONFIRMED.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPlaced:         {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:      {OrderStatusPreparing, OrderStatusCancelled},
	OrderStatusPreparing:      {OrderStatusReadyForPickup},
	OrderStatusReadyForPickup: {OrderStatusPickedUp},
	OrderStatusPickedUp:       {OrderStatusOnTheWay},
	OrderStatusOnTheWay:       {OrderStatusDelivered},
	OrderStatusDelivered:      {},
	OrderStatusCancelled:      {},
}

var taskTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:   {TaskStatusAccepted, TaskStatusRejected, TaskStatusCancelled},
	TaskStatusAccepted:  {TaskStatusPickedUp},
	TaskStatusPickedUp:  {TaskStatusDelivered},
	TaskStatusRejected:  {},
	TaskStatusDelivered: {},
	TaskStatusCancelled: {},
}

func KnownOrderStatus(s OrderStatus) bool {
	_, ok := orderTransitions[s]
	return ok
}

func KnownTaskStatus(s TaskStatus) bool {
	_, ok := taskTransitions[s]
	return ok
}

func CanTransitionOrder(from, to OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func CanTransitionTask(from, to TaskStatus) bool {
	for _, next := range taskTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// CustomerCanCancel reports whether a customer-initiated cancellation is
// still permitted; once the kitchen starts preparing, it is not.
func CustomerCanCancel(status OrderStatus) bool {
	return status == OrderStatusPlaced || status == OrderStatusConfirmed
}
