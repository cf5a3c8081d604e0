package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

const dailySalesSummary = `
SELECT COUNT(*),
       COALESCE(SUM(items_total), 0),
       COALESCE(SUM(delivery_charge), 0),
       COALESCE(SUM(total_amount), 0)
FROM orders
WHERE payment_status = 'PAID'
  AND NOT archived
  AND created_at >= $1
  AND created_at < $2
`

type DailySalesSummaryParams struct {
	StartDate time.Time
	EndDate   time.Time
}

type DailySalesSummaryRow struct {
	OrdersCount     int64
	ItemsRevenue    pgtype.Numeric
	DeliveryRevenue pgtype.Numeric
	TotalRevenue    pgtype.Numeric
}

// DailySalesSummary aggregates paid orders inside [StartDate, EndDate).
func (q *Queries) DailySalesSummary(ctx context.Context, arg DailySalesSummaryParams) (DailySalesSummaryRow, error) {
	row := q.db.QueryRow(ctx, dailySalesSummary, arg.StartDate, arg.EndDate)
	var r DailySalesSummaryRow
	err := row.Scan(&r.OrdersCount, &r.ItemsRevenue, &r.DeliveryRevenue, &r.TotalRevenue)
	return r, err
}
