package postgres

const orderSelectSQL = `
SELECT id, customer_id, restaurant_id, status, delivery_address,
       dropoff_lat, dropoff_lng, delivery_fee_cents, discount_cents, total_cents,
       estimated_minutes, notes, created_at, updated_at
FROM orders
`

const orderSelectByIDSQL = orderSelectSQL + `WHERE id = $1`

const orderSelectByIDForUpdateSQL = orderSelectByIDSQL + ` FOR UPDATE`

const orderListSQL = orderSelectSQL + `
WHERE ($1::text IS NULL OR status = $1)
  AND ($2::text IS NULL OR restaurant_id = $2)
  AND ($3::text IS NULL OR customer_id = $3)
ORDER BY created_at
LIMIT $4 OFFSET $5
`

const orderTimedOutSQL = orderSelectSQL + `
WHERE status = 'PLACED' AND created_at < $1
ORDER BY created_at
FOR UPDATE SKIP LOCKED
`

const orderInsertSQL = `
INSERT INTO orders (
  id, customer_id, restaurant_id, status, delivery_address,
  dropoff_lat, dropoff_lng, delivery_fee_cents, discount_cents, total_cents,
  estimated_minutes, notes, created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,
  $6,$7,$8,$9,$10,
  $11,$12,$13,$14
)
`

const orderUpdateSQL = `
UPDATE orders SET
  status = $1,
  delivery_fee_cents = $2,
  discount_cents = $3,
  total_cents = $4,
  estimated_minutes = $5,
  notes = $6,
  updated_at = $7
WHERE id = $8
`

const orderItemInsertSQL = `
INSERT INTO order_items (
  id, order_id, menu_item_id, name, quantity, unit_price_cents, subtotal_cents, notes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`

const orderItemListSQL = `
SELECT id, order_id, menu_item_id, name, quantity, unit_price_cents, subtotal_cents, notes
FROM order_items
WHERE order_id = $1
ORDER BY id
`

const statusUpdateInsertSQL = `
INSERT INTO order_status_updates (order_id, status, actor_id, note, created_at)
VALUES ($1,$2,$3,$4,$5)
`

const statusUpdateListSQL = `
SELECT id, order_id, status, actor_id, note, created_at
FROM order_status_updates
WHERE order_id = $1
ORDER BY id
`

const taskSelectSQL = `
SELECT id, driver_id, order_id, status, assigned_at, accepted_at, picked_up_at, completed_at, notes
FROM driver_tasks
`

const taskSelectByIDSQL = taskSelectSQL + `WHERE id = $1`

const taskSelectByIDForUpdateSQL = taskSelectByIDSQL + ` FOR UPDATE`

const taskActiveForOrderSQL = taskSelectSQL + `
WHERE order_id = $1 AND status IN ('PENDING','ACCEPTED','PICKED_UP')
LIMIT 1
`

const taskActiveForDriverSQL = taskSelectSQL + `
WHERE driver_id = $1 AND status IN ('PENDING','ACCEPTED','PICKED_UP')
LIMIT 1
`

const taskTriedDriversSQL = `
SELECT DISTINCT driver_id FROM driver_tasks WHERE order_id = $1
`

const taskInsertSQL = `
INSERT INTO driver_tasks (
  id, driver_id, order_id, status, assigned_at, accepted_at, picked_up_at, completed_at, notes
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`

const taskUpdateSQL = `
UPDATE driver_tasks SET
  status = $1,
  accepted_at = $2,
  picked_up_at = $3,
  completed_at = $4,
  notes = $5
WHERE id = $6
`

const availabilitySelectSQL = `
SELECT driver_id, status, updated_at
FROM driver_availability
WHERE driver_id = $1
`

const availabilitySelectForUpdateSQL = availabilitySelectSQL + ` FOR UPDATE`

const availabilityUpsertSQL = `
INSERT INTO driver_availability (driver_id, status, updated_at)
VALUES ($1,$2,$3)
ON CONFLICT (driver_id) DO UPDATE SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
`

const availabilityListSQL = `
SELECT driver_id, status, updated_at
FROM driver_availability
ORDER BY driver_id
`

// eligibleDriversSQL locks the availability rows it returns; SKIP LOCKED
// keeps concurrent assigns from blocking on each other's candidates.
const eligibleDriversSQL = `
SELECT da.driver_id, dl.lat, dl.lng, dl.recorded_at
FROM driver_availability da
JOIN LATERAL (
  SELECT lat, lng, recorded_at
  FROM driver_locations
  WHERE driver_id = da.driver_id
  ORDER BY recorded_at DESC
  LIMIT 1
) dl ON true
WHERE da.status = 'AVAILABLE'
  AND dl.recorded_at >= $1
  AND NOT (da.driver_id = ANY($2::text[]))
  AND ($3::text[] IS NULL OR da.driver_id = ANY($3::text[]))
ORDER BY da.driver_id
FOR UPDATE OF da SKIP LOCKED
`

const locationInsertSQL = `
INSERT INTO driver_locations (driver_id, lat, lng, accuracy_m, recorded_at)
VALUES ($1,$2,$3,$4,$5)
`

const locationLatestSQL = `
SELECT id, driver_id, lat, lng, accuracy_m, recorded_at
FROM driver_locations
WHERE driver_id = $1
ORDER BY recorded_at DESC
LIMIT 1
`

const earningInsertSQL = `
INSERT INTO driver_earnings (id, driver_id, order_id, amount_cents, description, is_bonus, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`

const earningListSQL = `
SELECT id, driver_id, order_id, amount_cents, description, is_bonus, created_at
FROM driver_earnings
WHERE driver_id = $1
ORDER BY created_at
`

const restaurantSelectSQL = `
SELECT id, owner_id, name, address, lat, lng, is_open
FROM restaurants
WHERE id = $1
`

const menuItemSelectSQL = `
SELECT id, restaurant_id, name, price_cents, available
FROM menu_items
WHERE id = $1
`

const outboxInsertSQL = `
INSERT INTO outbox_events (id, event_type, aggregate_type, aggregate_id, payload, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6)
`

const outboxFetchPendingSQL = `
SELECT id, event_type, aggregate_type, aggregate_id, payload, occurred_at
FROM outbox_events
WHERE published_at IS NULL
ORDER BY occurred_at
LIMIT $1
`

const outboxMarkPublishedSQL = `
UPDATE outbox_events
SET published_at = now()
WHERE id = ANY($1::uuid[])
`
