package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
)

// GoOnline marks the driver AVAILABLE. A driver with an active task cannot
// flip their own availability out from under the dispatcher.
func (s *Service) GoOnline(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	return s.setAvailability(ctx, driverID, domain.DriverAvailable)
}

// GoOffline marks the driver OFFLINE and drops them from the hot index.
func (s *Service) GoOffline(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	av, err := s.setAvailability(ctx, driverID, domain.DriverOffline)
	if err != nil {
		return nil, err
	}
	if s.index != nil {
		if ierr := s.index.Remove(ctx, driverID); ierr != nil {
			log.Printf("location index remove driver=%s: %v", driverID, ierr)
		}
	}
	return av, nil
}

func (s *Service) setAvailability(ctx context.Context, driverID string, status domain.AvailabilityStatus) (*domain.DriverAvailability, error) {
	if driverID == "" {
		return nil, fmt.Errorf("%w: missing driver id", domain.ErrInvalid)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	active, err := tx.ActiveTaskForDriver(ctx, driverID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	if active != nil {
		return nil, fmt.Errorf("%w: driver has an active task (%s)", domain.ErrConflict, active.Status)
	}
	av, err := s.availabilityForUpdate(ctx, tx, driverID)
	if err != nil {
		return nil, err
	}
	av.Status = status
	av.UpdatedAt = s.now()
	if err := tx.UpsertAvailability(ctx, av); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return av, nil
}

type ReportLocationCommand struct {
	DriverID  string
	Lat       float64
	Lng       float64
	AccuracyM *float64
}

// ReportLocation appends a ping to the location series and refreshes the hot
// index. The database row is the source of truth; an index failure is logged
// and dispatch falls back to a full candidate scan.
func (s *Service) ReportLocation(ctx context.Context, cmd ReportLocationCommand) (*domain.DriverLocation, error) {
	if cmd.DriverID == "" {
		return nil, fmt.Errorf("%w: missing driver id", domain.ErrInvalid)
	}
	if err := domain.ValidateLocation(domain.Location{Lat: cmd.Lat, Lng: cmd.Lng}); err != nil {
		return nil, err
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// First ping from an unknown driver lazily creates the availability row.
	av, err := s.availabilityForUpdate(ctx, tx, cmd.DriverID)
	if err != nil {
		return nil, err
	}
	if err := tx.UpsertAvailability(ctx, av); err != nil {
		return nil, err
	}
	loc := &domain.DriverLocation{
		DriverID:   cmd.DriverID,
		Lat:        cmd.Lat,
		Lng:        cmd.Lng,
		AccuracyM:  cmd.AccuracyM,
		RecordedAt: s.now(),
	}
	if err := tx.AppendLocation(ctx, loc); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	if s.index != nil {
		if ierr := s.index.Update(ctx, cmd.DriverID, cmd.Lat, cmd.Lng); ierr != nil {
			log.Printf("location index update driver=%s: %v", cmd.DriverID, ierr)
		}
	}
	return loc, nil
}

// availabilityForUpdate loads and locks the driver's availability row,
// creating it as OFFLINE on first contact.
func (s *Service) availabilityForUpdate(ctx context.Context, tx Tx, driverID string) (*domain.DriverAvailability, error) {
	av, err := tx.GetAvailabilityForUpdate(ctx, driverID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.DriverAvailability{
			DriverID:  driverID,
			Status:    domain.DriverOffline,
			UpdatedAt: s.now(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return av, nil
}

// AcceptTask moves a PENDING task to ACCEPTED and pins the driver BUSY.
func (s *Service) AcceptTask(ctx context.Context, driverID, taskID string) (*domain.DriverTask, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := s.taskForDriver(ctx, tx, driverID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.advanceTask(task, domain.TaskStatusAccepted); err != nil {
		return nil, err
	}
	task.AcceptedAt = &now
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.markDriverBusy(ctx, tx, driverID, now); err != nil {
		return nil, err
	}
	evt, err := events.NewTaskEvent(events.EventTaskAccepted, task, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// RejectResult is the outcome of a rejection: the rejected task plus the
// replacement task, if another eligible driver was found.
type RejectResult struct {
	Task       *domain.DriverTask
	Reassigned *domain.DriverTask
}

// RejectTask moves a PENDING task to REJECTED, frees the driver, and asks
// the dispatcher for a replacement. The rejecting driver stays excluded for
// this order because their task row remains in its lineage.
func (s *Service) RejectTask(ctx context.Context, driverID, taskID, reason string) (*RejectResult, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := s.taskForDriver(ctx, tx, driverID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.advanceTask(task, domain.TaskStatusRejected); err != nil {
		return nil, err
	}
	if reason != "" {
		task.Notes = reason
	}
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	if err := s.setDriverAvailabilityTx(ctx, tx, driverID, domain.DriverAvailable, now); err != nil {
		return nil, err
	}
	evt, err := events.NewTaskEvent(events.EventTaskRejected, task, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	result := &RejectResult{Task: task}
	replacement, err := s.AssignDriver(ctx, task.OrderID)
	if errors.Is(err, domain.ErrNoEligibleDriver) {
		log.Printf("reassign order=%s: no eligible driver after rejection by %s", task.OrderID, driverID)
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Reassigned = replacement
	return result, nil
}

// MarkPickedUp confirms pickup. The linked order advances through PICKED_UP
// and on to ON_THE_WAY via the sanctioned transition path, one audit row
// each.
func (s *Service) MarkPickedUp(ctx context.Context, driverID, taskID string) (*domain.DriverTask, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := s.taskForDriver(ctx, tx, driverID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.advanceTask(task, domain.TaskStatusPickedUp); err != nil {
		return nil, err
	}
	task.PickedUpAt = &now
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	order, err := tx.GetOrderForUpdate(ctx, task.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.advanceOrder(ctx, tx, order, domain.OrderStatusPickedUp, &driverID, "Picked up by driver.", now); err != nil {
		return nil, err
	}
	if err := s.advanceOrder(ctx, tx, order, domain.OrderStatusOnTheWay, &driverID, "Out for delivery.", now); err != nil {
		return nil, err
	}
	if err := s.markDriverBusy(ctx, tx, driverID, now); err != nil {
		return nil, err
	}
	evt, err := events.NewTaskEvent(events.EventTaskPickedUp, task, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	evt, err = events.NewOrderEvent(events.EventOrderStatusChanged, order, &driverID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// MarkDelivered completes the task: order DELIVERED, driver freed, exactly
// one earning row appended, all in one transaction.
func (s *Service) MarkDelivered(ctx context.Context, driverID, taskID string) (*domain.DriverTask, error) {
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	task, err := s.taskForDriver(ctx, tx, driverID, taskID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if err := s.advanceTask(task, domain.TaskStatusDelivered); err != nil {
		return nil, err
	}
	task.CompletedAt = &now
	if err := tx.UpdateTask(ctx, task); err != nil {
		return nil, err
	}
	order, err := tx.GetOrderForUpdate(ctx, task.OrderID)
	if err != nil {
		return nil, err
	}
	if err := s.advanceOrder(ctx, tx, order, domain.OrderStatusDelivered, &driverID, "Delivered.", now); err != nil {
		return nil, err
	}
	if err := s.setDriverAvailabilityTx(ctx, tx, driverID, domain.DriverAvailable, now); err != nil {
		return nil, err
	}
	earning := &domain.DriverEarning{
		ID:          uuid.NewString(),
		DriverID:    driverID,
		OrderID:     &task.OrderID,
		AmountCents: s.cfg.BaseEarningCents,
		Description: "Delivery payout for order " + task.OrderID,
		CreatedAt:   now,
	}
	if err := tx.CreateEarning(ctx, earning); err != nil {
		return nil, err
	}
	evt, err := events.NewTaskEvent(events.EventTaskDelivered, task, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	evt, err = events.NewOrderEvent(events.EventOrderStatusChanged, order, &driverID, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	evt, err = events.NewEarningEvent(earning, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return task, nil
}

// GrantBonus appends a bonus earning row, optionally tied to an order.
func (s *Service) GrantBonus(ctx context.Context, driverID string, orderID *string, amountCents int64, description string) (*domain.DriverEarning, error) {
	if driverID == "" || amountCents <= 0 {
		return nil, fmt.Errorf("%w: bonus needs a driver and a positive amount", domain.ErrInvalid)
	}
	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	now := s.now()
	earning := &domain.DriverEarning{
		ID:          uuid.NewString(),
		DriverID:    driverID,
		OrderID:     orderID,
		AmountCents: amountCents,
		Description: description,
		IsBonus:     true,
		CreatedAt:   now,
	}
	if err := tx.CreateEarning(ctx, earning); err != nil {
		return nil, err
	}
	evt, err := events.NewEarningEvent(earning, now)
	if err != nil {
		return nil, err
	}
	if err := tx.EnqueueEvent(ctx, evt); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return earning, nil
}

func (s *Service) DriverEarnings(ctx context.Context, driverID string) ([]domain.DriverEarning, error) {
	return s.store.ListEarnings(ctx, driverID)
}

// DriverCurrentTask returns the driver's active task, or ErrNotFound.
func (s *Service) DriverCurrentTask(ctx context.Context, driverID string) (*domain.DriverTask, error) {
	return s.store.ActiveTaskForDriver(ctx, driverID)
}

// taskForDriver loads and locks a task, treating another driver's task as
// absent rather than forbidden so task existence is never leaked.
func (s *Service) taskForDriver(ctx context.Context, tx Tx, driverID, taskID string) (*domain.DriverTask, error) {
	task, err := tx.GetTaskForUpdate(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.DriverID != driverID {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (s *Service) advanceTask(task *domain.DriverTask, to domain.TaskStatus) error {
	if !domain.KnownTaskStatus(to) {
		return fmt.Errorf("%w: unknown task status %q", domain.ErrInvalid, to)
	}
	if !domain.CanTransitionTask(task.Status, to) {
		return fmt.Errorf("%w: cannot move task from %s to %s", domain.ErrConflict, task.Status, to)
	}
	task.Status = to
	return nil
}

// markDriverBusy is idempotent: it only writes when the driver is not
// already BUSY.
func (s *Service) markDriverBusy(ctx context.Context, tx Tx, driverID string, now time.Time) error {
	av, err := s.availabilityForUpdate(ctx, tx, driverID)
	if err != nil {
		return err
	}
	if av.Status == domain.DriverBusy {
		return nil
	}
	return s.writeAvailability(ctx, tx, av, domain.DriverBusy, now)
}

func (s *Service) setDriverAvailabilityTx(ctx context.Context, tx Tx, driverID string, status domain.AvailabilityStatus, now time.Time) error {
	av, err := s.availabilityForUpdate(ctx, tx, driverID)
	if err != nil {
		return err
	}
	return s.writeAvailability(ctx, tx, av, status, now)
}

func (s *Service) writeAvailability(ctx context.Context, tx Tx, av *domain.DriverAvailability, status domain.AvailabilityStatus, now time.Time) error {
	av.Status = status
	av.UpdatedAt = now
	return tx.UpsertAvailability(ctx, av)
}
