package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
)

func addDriver(store *memStore, id string, status domain.AvailabilityStatus, lat, lng float64, age time.Duration) {
	now := time.Now().UTC()
	store.availability[id] = &domain.DriverAvailability{DriverID: id, Status: status, UpdatedAt: now}
	store.locations[id] = append(store.locations[id], domain.DriverLocation{
		DriverID:   id,
		Lat:        lat,
		Lng:        lng,
		RecordedAt: now.Add(-age),
	})
}

func readyOrder(store *memStore, id string) {
	now := time.Now().UTC()
	store.orders[id] = &domain.Order{
		ID:           id,
		CustomerID:   "cust-1",
		RestaurantID: "r1",
		Status:       domain.OrderStatusReadyForPickup,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func TestAssignDriverPicksNearest(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")

	// Restaurant sits at 24.7136, 46.6753; d-far is several km out.
	addDriver(store, "d-near", domain.DriverAvailable, 24.7150, 46.6760, time.Minute)
	addDriver(store, "d-far", domain.DriverAvailable, 24.8000, 46.8000, time.Minute)

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.DriverID != "d-near" {
		t.Fatalf("expected nearest driver, got %s", task.DriverID)
	}
	if task.Status != domain.TaskStatusPending {
		t.Fatalf("expected PENDING task, got %s", task.Status)
	}
	av, _ := store.GetAvailability(context.Background(), "d-near")
	if av.Status != domain.DriverBusy {
		t.Fatalf("expected assigned driver BUSY, got %s", av.Status)
	}
}

func TestAssignDriverSkipsStaleBusyAndOffline(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")

	addDriver(store, "d-stale", domain.DriverAvailable, 24.7136, 46.6753, 30*time.Minute)
	addDriver(store, "d-busy", domain.DriverBusy, 24.7136, 46.6753, time.Minute)
	addDriver(store, "d-offline", domain.DriverOffline, 24.7136, 46.6753, time.Minute)
	addDriver(store, "d-ok", domain.DriverAvailable, 24.9000, 46.9000, time.Minute)

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if task.DriverID != "d-ok" {
		t.Fatalf("expected d-ok despite distance, got %s", task.DriverID)
	}
}

func TestAssignDriverNoCandidates(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")

	if _, err := svc.AssignDriver(context.Background(), "o1"); !errors.Is(err, domain.ErrNoEligibleDriver) {
		t.Fatalf("expected ErrNoEligibleDriver, got %v", err)
	}
	order, _ := store.GetOrder(context.Background(), "o1")
	if order.Status != domain.OrderStatusReadyForPickup {
		t.Fatalf("order must stay READY_FOR_PICKUP, got %s", order.Status)
	}
}

func TestAssignDriverRequiresReadyOrder(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()
	store.orders["o1"] = &domain.Order{ID: "o1", CustomerID: "c", RestaurantID: "r1", Status: domain.OrderStatusPreparing, CreatedAt: now, UpdatedAt: now}
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	if _, err := svc.AssignDriver(context.Background(), "o1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestAssignDriverRefusesSecondActiveTask(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)
	addDriver(store, "d2", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	if _, err := svc.AssignDriver(context.Background(), "o1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.AssignDriver(context.Background(), "o1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on second assign, got %v", err)
	}
}

func TestAssignDriverConcurrency(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	const workers = 4
	orderIDs := make([]string, workers)
	for i := range orderIDs {
		orderIDs[i] = fmt.Sprintf("o%d", i)
		readyOrder(store, orderIDs[i])
	}

	var wg sync.WaitGroup
	results := make(chan error, workers)
	for _, id := range orderIDs {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			_, err := svc.AssignDriver(context.Background(), orderID)
			results <- err
		}(id)
	}
	wg.Wait()
	close(results)

	var success, noDriver int
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, domain.ErrNoEligibleDriver):
			noDriver++
		default:
			t.Fatalf("unexpected assign error: %v", err)
		}
	}
	if success != 1 || noDriver != workers-1 {
		t.Fatalf("expected one task for the single driver, got success=%d noDriver=%d", success, noDriver)
	}
	active, err := store.ActiveTaskForDriver(context.Background(), "d1")
	if err != nil {
		t.Fatalf("active task: %v", err)
	}
	if active.Status != domain.TaskStatusPending {
		t.Fatalf("expected PENDING task, got %s", active.Status)
	}
}

func TestAcceptRejectRace(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	results := make(chan error, 2)
	go func() {
		defer wg.Done()
		_, err := svc.AcceptTask(context.Background(), "d1", task.ID)
		results <- err
	}()
	go func() {
		defer wg.Done()
		_, err := svc.RejectTask(context.Background(), "d1", task.ID, "")
		results <- err
	}()
	wg.Wait()
	close(results)

	var success, conflict int
	for err := range results {
		switch {
		case err == nil:
			success++
		case errors.Is(err, domain.ErrConflict):
			conflict++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if success != 1 || conflict != 1 {
		t.Fatalf("expected one winner and one conflict, got success=%d conflict=%d", success, conflict)
	}
	final, err := store.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if final.Status != domain.TaskStatusAccepted && final.Status != domain.TaskStatusRejected {
		t.Fatalf("expected ACCEPTED or REJECTED, got %s", final.Status)
	}
}

func TestDriverCurrentTask(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	if _, err := svc.DriverCurrentTask(context.Background(), "d1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found before assignment, got %v", err)
	}

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	current, err := svc.DriverCurrentTask(context.Background(), "d1")
	if err != nil {
		t.Fatalf("current task: %v", err)
	}
	if current.ID != task.ID {
		t.Fatalf("expected task %s, got %s", task.ID, current.ID)
	}
}

func TestRejectTaskReassignsAndExcludes(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d-a", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)
	addDriver(store, "d-b", domain.DriverAvailable, 24.9000, 46.9000, time.Minute)

	first, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if first.DriverID != "d-a" {
		t.Fatalf("expected d-a first, got %s", first.DriverID)
	}

	result, err := svc.RejectTask(context.Background(), "d-a", first.ID, "on a break")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if result.Task.Status != domain.TaskStatusRejected {
		t.Fatalf("expected REJECTED, got %s", result.Task.Status)
	}
	if result.Reassigned == nil || result.Reassigned.DriverID != "d-b" {
		t.Fatalf("expected reassignment to d-b, got %+v", result.Reassigned)
	}
	// The rejecting driver is free again but stays out of this order's pool.
	av, _ := store.GetAvailability(context.Background(), "d-a")
	if av.Status != domain.DriverAvailable {
		t.Fatalf("expected d-a AVAILABLE after reject, got %s", av.Status)
	}

	second, err := svc.RejectTask(context.Background(), "d-b", result.Reassigned.ID, "")
	if err != nil {
		t.Fatalf("second reject: %v", err)
	}
	if second.Reassigned != nil {
		t.Fatalf("expected no reassignment with all drivers tried, got %+v", second.Reassigned)
	}
}

func TestDeliveryFlowCreatesOneEarning(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.AcceptTask(context.Background(), "d1", task.ID); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := svc.MarkPickedUp(context.Background(), "d1", task.ID); err != nil {
		t.Fatalf("pickup: %v", err)
	}
	order, _ := store.GetOrder(context.Background(), "o1")
	if order.Status != domain.OrderStatusOnTheWay {
		t.Fatalf("expected ON_THE_WAY after pickup, got %s", order.Status)
	}

	if _, err := svc.MarkDelivered(context.Background(), "d1", task.ID); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	order, _ = store.GetOrder(context.Background(), "o1")
	if order.Status != domain.OrderStatusDelivered {
		t.Fatalf("expected DELIVERED, got %s", order.Status)
	}
	av, _ := store.GetAvailability(context.Background(), "d1")
	if av.Status != domain.DriverAvailable {
		t.Fatalf("expected driver freed, got %s", av.Status)
	}
	earnings, _ := store.ListEarnings(context.Background(), "d1")
	if len(earnings) != 1 || earnings[0].AmountCents != 400 {
		t.Fatalf("expected one 400c earning, got %+v", earnings)
	}

	// Repeating the terminal transition must not pay twice.
	if _, err := svc.MarkDelivered(context.Background(), "d1", task.ID); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict on double deliver, got %v", err)
	}
	earnings, _ = store.ListEarnings(context.Background(), "d1")
	if len(earnings) != 1 {
		t.Fatalf("expected earning count unchanged, got %d", len(earnings))
	}
}

func TestTaskIsInvisibleToOtherDrivers(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	task, err := svc.AssignDriver(context.Background(), "o1")
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.AcceptTask(context.Background(), "d-impostor", task.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected not found for another driver, got %v", err)
	}
}

func TestMarkReadyWithoutDrivers(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()
	store.orders["o1"] = &domain.Order{ID: "o1", CustomerID: "c", RestaurantID: "r1", Status: domain.OrderStatusPreparing, CreatedAt: now, UpdatedAt: now}

	result, err := svc.MarkReady(context.Background(), "r1", "o1")
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if result.Order.Status != domain.OrderStatusReadyForPickup {
		t.Fatalf("expected READY_FOR_PICKUP, got %s", result.Order.Status)
	}
	if result.Task != nil {
		t.Fatalf("expected no task, got %+v", result.Task)
	}
}

func TestMarkReadyDispatches(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	now := time.Now().UTC()
	store.orders["o1"] = &domain.Order{ID: "o1", CustomerID: "c", RestaurantID: "r1", Status: domain.OrderStatusPreparing, CreatedAt: now, UpdatedAt: now}
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	result, err := svc.MarkReady(context.Background(), "r1", "o1")
	if err != nil {
		t.Fatalf("mark ready: %v", err)
	}
	if result.Task == nil || result.Task.DriverID != "d1" {
		t.Fatalf("expected task for d1, got %+v", result.Task)
	}
	var assigned bool
	for _, evt := range store.events {
		if evt.Type == events.EventTaskAssigned {
			assigned = true
		}
	}
	if !assigned {
		t.Fatalf("expected task.assigned event")
	}
}

func TestDriverCannotGoOfflineWithActiveTask(t *testing.T) {
	store := newMemStore()
	seedCatalog(store)
	svc := newTestService(store)
	readyOrder(store, "o1")
	addDriver(store, "d1", domain.DriverAvailable, 24.7136, 46.6753, time.Minute)

	if _, err := svc.AssignDriver(context.Background(), "o1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := svc.GoOffline(context.Background(), "d1"); !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected conflict going offline mid-task, got %v", err)
	}
}

func TestReportLocationCreatesAvailabilityRow(t *testing.T) {
	store := newMemStore()
	svc := newTestService(store)

	loc, err := svc.ReportLocation(context.Background(), ReportLocationCommand{DriverID: "d-new", Lat: 24.7, Lng: 46.7})
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if loc.Lat != 24.7 || loc.Lng != 46.7 {
		t.Fatalf("unexpected ping %+v", loc)
	}
	av, err := store.GetAvailability(context.Background(), "d-new")
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if av.Status != domain.DriverOffline {
		t.Fatalf("first contact should create OFFLINE row, got %s", av.Status)
	}

	if _, err := svc.ReportLocation(context.Background(), ReportLocationCommand{DriverID: "d-new", Lat: 95, Lng: 0}); !errors.Is(err, domain.ErrInvalid) {
		t.Fatalf("expected invalid for out-of-range lat, got %v", err)
	}
}
