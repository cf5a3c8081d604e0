package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const orderColumns = `id, order_number, user_id, status, payment_status, items_total,
	delivery_charge, total_amount, distance_km, eta_minutes, delivery_address,
	latitude, longitude, notes, handled_by, handled_at, archived, created_at, updated_at`

func scanOrder(row interface{ Scan(dest ...any) error }) (Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.ItemsTotal, &o.DeliveryCharge, &o.TotalAmount, &o.DistanceKm, &o.EtaMinutes,
		&o.DeliveryAddress, &o.Latitude, &o.Longitude, &o.Notes,
		&o.HandledBy, &o.HandledAt, &o.Archived, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

const getNextOrderNumber = `
SELECT COALESCE(MAX(CAST(SUBSTRING(order_number FROM 5) AS INTEGER)), 0) + 1
FROM orders
`

// GetNextOrderNumber returns the next sequential order number. Concurrent
// transactions can read the same value; callers retry on unique violations.
func (q *Queries) GetNextOrderNumber(ctx context.Context) (int32, error) {
	var n int32
	err := q.db.QueryRow(ctx, getNextOrderNumber).Scan(&n)
	return n, err
}

const createOrder = `
INSERT INTO orders (order_number, user_id, items_total, delivery_charge, total_amount,
	distance_km, eta_minutes, delivery_address, latitude, longitude, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING ` + orderColumns + `
`

type CreateOrderParams struct {
	OrderNumber     string
	UserID          uuid.UUID
	ItemsTotal      pgtype.Numeric
	DeliveryCharge  pgtype.Numeric
	TotalAmount     pgtype.Numeric
	DistanceKm      pgtype.Numeric
	EtaMinutes      pgtype.Int4
	DeliveryAddress pgtype.Text
	Latitude        pgtype.Float8
	Longitude       pgtype.Float8
	Notes           pgtype.Text
}

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.OrderNumber, arg.UserID, arg.ItemsTotal, arg.DeliveryCharge, arg.TotalAmount,
		arg.DistanceKm, arg.EtaMinutes, arg.DeliveryAddress, arg.Latitude, arg.Longitude, arg.Notes))
}

const createOrderItem = `
INSERT INTO order_items (order_id, menu_item_id, name, image_url, quantity, unit_price, subtotal)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, order_id, menu_item_id, name, image_url, quantity, unit_price, subtotal
`

type CreateOrderItemParams struct {
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	ImageUrl   pgtype.Text
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
}

func (q *Queries) CreateOrderItem(ctx context.Context, arg CreateOrderItemParams) (OrderItem, error) {
	row := q.db.QueryRow(ctx, createOrderItem,
		arg.OrderID, arg.MenuItemID, arg.Name, arg.ImageUrl, arg.Quantity, arg.UnitPrice, arg.Subtotal)
	var it OrderItem
	err := row.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.ImageUrl,
		&it.Quantity, &it.UnitPrice, &it.Subtotal)
	return it, err
}

const getOrder = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND NOT archived
`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

const getOrderForUpdate = `
SELECT ` + orderColumns + `
FROM orders
WHERE id = $1 AND NOT archived
FOR UPDATE
`

// GetOrderForUpdate locks the order row for the duration of the transaction.
func (q *Queries) GetOrderForUpdate(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrderForUpdate, id))
}

const listOrders = `
SELECT ` + orderColumns + `
FROM orders
WHERE NOT archived
  AND ($1::text IS NULL OR status = $1)
  AND ($2::timestamptz IS NULL OR created_at >= $2)
  AND ($3::timestamptz IS NULL OR created_at < $3)
ORDER BY created_at DESC
LIMIT $4 OFFSET $5
`

type ListOrdersParams struct {
	Status    pgtype.Text
	StartDate pgtype.Timestamptz
	EndDate   pgtype.Timestamptz
	Limit     int32
	Offset    int32
}

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders, arg.Status, arg.StartDate, arg.EndDate, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrdersByUser = `
SELECT ` + orderColumns + `
FROM orders
WHERE user_id = $1 AND NOT archived
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

type ListOrdersByUserParams struct {
	UserID uuid.UUID
	Limit  int32
	Offset int32
}

func (q *Queries) ListOrdersByUser(ctx context.Context, arg ListOrdersByUserParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrdersByUser, arg.UserID, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

const listOrderItemsByOrder = `
SELECT id, order_id, menu_item_id, name, image_url, quantity, unit_price, subtotal
FROM order_items
WHERE order_id = $1
`

func (q *Queries) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]OrderItem, error) {
	rows, err := q.db.Query(ctx, listOrderItemsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.MenuItemID, &it.Name, &it.ImageUrl,
			&it.Quantity, &it.UnitPrice, &it.Subtotal); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

const updateOrderStatus = `
UPDATE orders
SET status = $2, handled_by = $3, handled_at = now(), updated_at = now()
WHERE id = $1 AND status = $4 AND NOT archived
RETURNING ` + orderColumns + `
`

type UpdateOrderStatusParams struct {
	ID         uuid.UUID
	Status     string
	HandledBy  pgtype.UUID
	FromStatus string
}

// UpdateOrderStatus transitions the order only if it is still in FromStatus,
// so a concurrent transition surfaces as pgx.ErrNoRows.
func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus, arg.ID, arg.Status, arg.HandledBy, arg.FromStatus))
}

const setOrderPaymentStatus = `
UPDATE orders
SET payment_status = $2, updated_at = now()
WHERE id = $1 AND NOT archived
RETURNING ` + orderColumns + `
`

type SetOrderPaymentStatusParams struct {
	ID            uuid.UUID
	PaymentStatus string
}

func (q *Queries) SetOrderPaymentStatus(ctx context.Context, arg SetOrderPaymentStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderPaymentStatus, arg.ID, arg.PaymentStatus))
}

const updateOrderTotals = `
UPDATE orders
SET items_total = $2, delivery_charge = $3, total_amount = $4, updated_at = now()
WHERE id = $1 AND NOT archived
RETURNING ` + orderColumns + `
`

type UpdateOrderTotalsParams struct {
	ID             uuid.UUID
	ItemsTotal     pgtype.Numeric
	DeliveryCharge pgtype.Numeric
	TotalAmount    pgtype.Numeric
}

// UpdateOrderTotals refreshes the computed amounts after a server-side
// recomputation (payment initiation against a changed catalog).
func (q *Queries) UpdateOrderTotals(ctx context.Context, arg UpdateOrderTotalsParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderTotals, arg.ID, arg.ItemsTotal, arg.DeliveryCharge, arg.TotalAmount))
}

const archiveOrder = `
UPDATE orders
SET archived = TRUE, updated_at = now()
WHERE id = $1 AND NOT archived
RETURNING ` + orderColumns + `
`

// ArchiveOrder soft-deletes the order. Paid orders stay on disk; there is no
// hard delete path.
func (q *Queries) ArchiveOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, archiveOrder, id))
}
