package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mealdrop/internal/domain"
	"mealdrop/internal/events"
	"mealdrop/internal/service"
)

// Store implements the service persistence contracts over a pgx pool.
// Absent rows surface as domain.ErrNotFound throughout.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) BeginTx(ctx context.Context) (service.Tx, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx}, nil
}

func (s *Store) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, orderSelectByIDSQL, id))
}

func (s *Store) ListOrders(ctx context.Context, filter service.OrderFilter) ([]*domain.Order, error) {
	status := sql.NullString{}
	if filter.Status != nil {
		status = sql.NullString{String: string(*filter.Status), Valid: true}
	}
	restaurant := sql.NullString{String: filter.RestaurantID, Valid: filter.RestaurantID != ""}
	customer := sql.NullString{String: filter.CustomerID, Valid: filter.CustomerID != ""}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, orderListSQL, status, restaurant, customer, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *Store) ListOrderItems(ctx context.Context, orderID string) ([]domain.OrderItem, error) {
	rows, err := s.pool.Query(ctx, orderItemListSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ID, &item.OrderID, &item.MenuItemID, &item.Name,
			&item.Quantity, &item.UnitPriceCents, &item.SubtotalCents, &item.Notes); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func (s *Store) ListStatusUpdates(ctx context.Context, orderID string) ([]domain.OrderStatusUpdate, error) {
	rows, err := s.pool.Query(ctx, statusUpdateListSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var updates []domain.OrderStatusUpdate
	for rows.Next() {
		var upd domain.OrderStatusUpdate
		var actor sql.NullString
		if err := rows.Scan(&upd.ID, &upd.OrderID, &upd.Status, &actor, &upd.Note, &upd.CreatedAt); err != nil {
			return nil, err
		}
		if actor.Valid {
			a := actor.String
			upd.ActorID = &a
		}
		updates = append(updates, upd)
	}
	return updates, rows.Err()
}

func (s *Store) GetRestaurant(ctx context.Context, id string) (*domain.Restaurant, error) {
	row := s.pool.QueryRow(ctx, restaurantSelectSQL, id)
	var r domain.Restaurant
	var lat, lng sql.NullFloat64
	err := row.Scan(&r.ID, &r.OwnerID, &r.Name, &r.Address, &lat, &lng, &r.IsOpen)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lat.Valid && lng.Valid {
		r.Position = &domain.Location{Lat: lat.Float64, Lng: lng.Float64}
	}
	return &r, nil
}

func (s *Store) GetMenuItem(ctx context.Context, id string) (*domain.MenuItem, error) {
	row := s.pool.QueryRow(ctx, menuItemSelectSQL, id)
	var m domain.MenuItem
	err := row.Scan(&m.ID, &m.RestaurantID, &m.Name, &m.PriceCents, &m.Available)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Store) GetTask(ctx context.Context, id string) (*domain.DriverTask, error) {
	return scanTask(s.pool.QueryRow(ctx, taskSelectByIDSQL, id))
}

func (s *Store) ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error) {
	return scanTask(s.pool.QueryRow(ctx, taskActiveForOrderSQL, orderID))
}

func (s *Store) ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error) {
	return scanTask(s.pool.QueryRow(ctx, taskActiveForDriverSQL, driverID))
}

func (s *Store) GetAvailability(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	return scanAvailability(s.pool.QueryRow(ctx, availabilitySelectSQL, driverID))
}

func (s *Store) ListDrivers(ctx context.Context) ([]domain.DriverAvailability, error) {
	rows, err := s.pool.Query(ctx, availabilityListSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var drivers []domain.DriverAvailability
	for rows.Next() {
		var av domain.DriverAvailability
		if err := rows.Scan(&av.DriverID, &av.Status, &av.UpdatedAt); err != nil {
			return nil, err
		}
		drivers = append(drivers, av)
	}
	return drivers, rows.Err()
}

func (s *Store) LatestLocation(ctx context.Context, driverID string) (*domain.DriverLocation, error) {
	return scanLocation(s.pool.QueryRow(ctx, locationLatestSQL, driverID))
}

func (s *Store) ListEarnings(ctx context.Context, driverID string) ([]domain.DriverEarning, error) {
	rows, err := s.pool.Query(ctx, earningListSQL, driverID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var earnings []domain.DriverEarning
	for rows.Next() {
		var e domain.DriverEarning
		var orderID sql.NullString
		if err := rows.Scan(&e.ID, &e.DriverID, &orderID, &e.AmountCents, &e.Description, &e.IsBonus, &e.CreatedAt); err != nil {
			return nil, err
		}
		if orderID.Valid {
			id := orderID.String
			e.OrderID = &id
		}
		earnings = append(earnings, e)
	}
	return earnings, rows.Err()
}

type Tx struct {
	tx pgx.Tx
}

func (t *Tx) Commit(ctx context.Context) error {
	return t.tx.Commit(ctx)
}

func (t *Tx) Rollback(ctx context.Context) error {
	return t.tx.Rollback(ctx)
}

func (t *Tx) GetOrderForUpdate(ctx context.Context, id string) (*domain.Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, orderSelectByIDForUpdateSQL, id))
}

func (t *Tx) CreateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.Exec(ctx, orderInsertSQL,
		order.ID,
		order.CustomerID,
		order.RestaurantID,
		order.Status,
		order.DeliveryAddress,
		nullLocationLat(order.Dropoff),
		nullLocationLng(order.Dropoff),
		order.DeliveryFeeCents,
		order.DiscountCents,
		order.TotalCents,
		nullInt(order.EstimatedMinutes),
		order.Notes,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

func (t *Tx) UpdateOrder(ctx context.Context, order *domain.Order) error {
	_, err := t.tx.Exec(ctx, orderUpdateSQL,
		order.Status,
		order.DeliveryFeeCents,
		order.DiscountCents,
		order.TotalCents,
		nullInt(order.EstimatedMinutes),
		order.Notes,
		order.UpdatedAt,
		order.ID,
	)
	return err
}

func (t *Tx) CreateOrderItem(ctx context.Context, item *domain.OrderItem) error {
	_, err := t.tx.Exec(ctx, orderItemInsertSQL,
		item.ID,
		item.OrderID,
		item.MenuItemID,
		item.Name,
		item.Quantity,
		item.UnitPriceCents,
		item.SubtotalCents,
		item.Notes,
	)
	return err
}

func (t *Tx) AppendStatusUpdate(ctx context.Context, upd *domain.OrderStatusUpdate) error {
	_, err := t.tx.Exec(ctx, statusUpdateInsertSQL,
		upd.OrderID,
		upd.Status,
		nullString(upd.ActorID),
		upd.Note,
		upd.CreatedAt,
	)
	return err
}

func (t *Tx) GetTaskForUpdate(ctx context.Context, id string) (*domain.DriverTask, error) {
	return scanTask(t.tx.QueryRow(ctx, taskSelectByIDForUpdateSQL, id))
}

func (t *Tx) ActiveTaskForOrder(ctx context.Context, orderID string) (*domain.DriverTask, error) {
	return scanTask(t.tx.QueryRow(ctx, taskActiveForOrderSQL, orderID))
}

func (t *Tx) ActiveTaskForDriver(ctx context.Context, driverID string) (*domain.DriverTask, error) {
	return scanTask(t.tx.QueryRow(ctx, taskActiveForDriverSQL, driverID))
}

func (t *Tx) TriedDriverIDs(ctx context.Context, orderID string) ([]string, error) {
	rows, err := t.tx.Query(ctx, taskTriedDriversSQL, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (t *Tx) CreateTask(ctx context.Context, task *domain.DriverTask) error {
	_, err := t.tx.Exec(ctx, taskInsertSQL,
		task.ID,
		task.DriverID,
		task.OrderID,
		task.Status,
		task.AssignedAt,
		nullTime(task.AcceptedAt),
		nullTime(task.PickedUpAt),
		nullTime(task.CompletedAt),
		task.Notes,
	)
	return err
}

func (t *Tx) UpdateTask(ctx context.Context, task *domain.DriverTask) error {
	_, err := t.tx.Exec(ctx, taskUpdateSQL,
		task.Status,
		nullTime(task.AcceptedAt),
		nullTime(task.PickedUpAt),
		nullTime(task.CompletedAt),
		task.Notes,
		task.ID,
	)
	return err
}

func (t *Tx) GetAvailabilityForUpdate(ctx context.Context, driverID string) (*domain.DriverAvailability, error) {
	return scanAvailability(t.tx.QueryRow(ctx, availabilitySelectForUpdateSQL, driverID))
}

func (t *Tx) UpsertAvailability(ctx context.Context, av *domain.DriverAvailability) error {
	_, err := t.tx.Exec(ctx, availabilityUpsertSQL, av.DriverID, av.Status, av.UpdatedAt)
	return err
}

func (t *Tx) AppendLocation(ctx context.Context, loc *domain.DriverLocation) error {
	_, err := t.tx.Exec(ctx, locationInsertSQL,
		loc.DriverID,
		loc.Lat,
		loc.Lng,
		nullFloat(loc.AccuracyM),
		loc.RecordedAt,
	)
	return err
}

func (t *Tx) EligibleDrivers(ctx context.Context, freshSince time.Time, excluded, shortlist []string) ([]service.Candidate, error) {
	if excluded == nil {
		excluded = []string{}
	}
	rows, err := t.tx.Query(ctx, eligibleDriversSQL, freshSince, excluded, shortlist)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []service.Candidate
	for rows.Next() {
		var c service.Candidate
		if err := rows.Scan(&c.DriverID, &c.Lat, &c.Lng, &c.RecordedAt); err != nil {
			return nil, err
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (t *Tx) TimedOutOrders(ctx context.Context, placedBefore time.Time) ([]*domain.Order, error) {
	rows, err := t.tx.Query(ctx, orderTimedOutSQL, placedBefore)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (t *Tx) CreateEarning(ctx context.Context, earning *domain.DriverEarning) error {
	_, err := t.tx.Exec(ctx, earningInsertSQL,
		earning.ID,
		earning.DriverID,
		nullString(earning.OrderID),
		earning.AmountCents,
		earning.Description,
		earning.IsBonus,
		earning.CreatedAt,
	)
	return err
}

func (t *Tx) EnqueueEvent(ctx context.Context, event events.Event) error {
	_, err := t.tx.Exec(ctx, outboxInsertSQL,
		event.ID,
		event.Type,
		event.AggregateType,
		event.AggregateID,
		event.Payload,
		event.OccurredAt,
	)
	return err
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	var dropLat, dropLng sql.NullFloat64
	var estimated sql.NullInt64
	err := row.Scan(
		&o.ID, &o.CustomerID, &o.RestaurantID, &o.Status, &o.DeliveryAddress,
		&dropLat, &dropLng, &o.DeliveryFeeCents, &o.DiscountCents, &o.TotalCents,
		&estimated, &o.Notes, &o.CreatedAt, &o.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if dropLat.Valid && dropLng.Valid {
		o.Dropoff = &domain.Location{Lat: dropLat.Float64, Lng: dropLng.Float64}
	}
	if estimated.Valid {
		m := int(estimated.Int64)
		o.EstimatedMinutes = &m
	}
	return &o, nil
}

func scanOrders(rows pgx.Rows) ([]*domain.Order, error) {
	var orders []*domain.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func scanTask(row pgx.Row) (*domain.DriverTask, error) {
	var task domain.DriverTask
	var accepted, pickedUp, completed sql.NullTime
	err := row.Scan(
		&task.ID, &task.DriverID, &task.OrderID, &task.Status, &task.AssignedAt,
		&accepted, &pickedUp, &completed, &task.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	task.AcceptedAt = timePtr(accepted)
	task.PickedUpAt = timePtr(pickedUp)
	task.CompletedAt = timePtr(completed)
	return &task, nil
}

func scanAvailability(row pgx.Row) (*domain.DriverAvailability, error) {
	var av domain.DriverAvailability
	err := row.Scan(&av.DriverID, &av.Status, &av.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &av, nil
}

func scanLocation(row pgx.Row) (*domain.DriverLocation, error) {
	var loc domain.DriverLocation
	var accuracy sql.NullFloat64
	err := row.Scan(&loc.ID, &loc.DriverID, &loc.Lat, &loc.Lng, &accuracy, &loc.RecordedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if accuracy.Valid {
		a := accuracy.Float64
		loc.AccuracyM = &a
	}
	return &loc, nil
}

func nullString(v *string) sql.NullString {
	if v == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *v, Valid: true}
}

func nullTime(v *time.Time) sql.NullTime {
	if v == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullLocationLat(loc *domain.Location) sql.NullFloat64 {
	if loc == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Lat, Valid: true}
}

func nullLocationLng(loc *domain.Location) sql.NullFloat64 {
	if loc == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: loc.Lng, Valid: true}
}

func timePtr(v sql.NullTime) *time.Time {
	if !v.Valid {
		return nil
	}
	t := v.Time
	return &t
}
