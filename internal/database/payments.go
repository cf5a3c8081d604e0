package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const paymentColumns = `id, order_id, reference, amount, status, created_at, completed_at`

func scanPayment(row interface{ Scan(dest ...any) error }) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.OrderID, &p.Reference, &p.Amount, &p.Status, &p.CreatedAt, &p.CompletedAt)
	return p, err
}

const createPayment = `
INSERT INTO payments (order_id, reference, amount)
VALUES ($1, $2, $3)
RETURNING ` + paymentColumns + `
`

type CreatePaymentParams struct {
	OrderID   uuid.UUID
	Reference string
	Amount    pgtype.Numeric
}

func (q *Queries) CreatePayment(ctx context.Context, arg CreatePaymentParams) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, createPayment, arg.OrderID, arg.Reference, arg.Amount))
}

const getPaymentByReference = `
SELECT ` + paymentColumns + `
FROM payments
WHERE reference = $1
`

func (q *Queries) GetPaymentByReference(ctx context.Context, reference string) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, getPaymentByReference, reference))
}

const completePayment = `
UPDATE payments
SET status = 'COMPLETED', completed_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + paymentColumns + `
`

func (q *Queries) CompletePayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, completePayment, id))
}

const failPayment = `
UPDATE payments
SET status = 'FAILED', completed_at = now()
WHERE id = $1 AND status = 'PENDING'
RETURNING ` + paymentColumns + `
`

func (q *Queries) FailPayment(ctx context.Context, id uuid.UUID) (Payment, error) {
	return scanPayment(q.db.QueryRow(ctx, failPayment, id))
}

const listPaymentsByOrder = `
SELECT ` + paymentColumns + `
FROM payments
WHERE order_id = $1
ORDER BY created_at
`

func (q *Queries) ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]Payment, error) {
	rows, err := q.db.Query(ctx, listPaymentsByOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
