package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, description, category, price, image_url, is_available, is_active, created_at, updated_at`

func scanMenuItem(row interface{ Scan(dest ...any) error }) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(&m.ID, &m.Name, &m.Description, &m.Category, &m.Price,
		&m.ImageUrl, &m.IsAvailable, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	return m, err
}

const listMenuItems = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE is_active = TRUE
ORDER BY category NULLS LAST, name
`

func (q *Queries) ListMenuItems(ctx context.Context) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItem = `
SELECT ` + menuItemColumns + `
FROM menu_items
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

// GetMenuItemForOrderRow carries just what pricing needs.
type GetMenuItemForOrderRow struct {
	ID          uuid.UUID
	Name        string
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
}

const getMenuItemForOrder = `
SELECT id, name, price, image_url, is_available
FROM menu_items
WHERE id = $1 AND is_active = TRUE
`

func (q *Queries) GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (GetMenuItemForOrderRow, error) {
	row := q.db.QueryRow(ctx, getMenuItemForOrder, id)
	var m GetMenuItemForOrderRow
	err := row.Scan(&m.ID, &m.Name, &m.Price, &m.ImageUrl, &m.IsAvailable)
	return m, err
}

const createMenuItem = `
INSERT INTO menu_items (name, description, category, price, image_url, is_available)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + menuItemColumns + `
`

type CreateMenuItemParams struct {
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.Name, arg.Description, arg.Category, arg.Price, arg.ImageUrl, arg.IsAvailable))
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, description = $3, category = $4, price = $5, image_url = $6,
    is_available = $7, updated_at = now()
WHERE id = $1 AND is_active = TRUE
RETURNING ` + menuItemColumns + `
`

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
}

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID, arg.Name, arg.Description, arg.Category, arg.Price, arg.ImageUrl, arg.IsAvailable))
}

const softDeleteMenuItem = `
UPDATE menu_items
SET is_active = FALSE, updated_at = now()
WHERE id = $1 AND is_active = TRUE
RETURNING id
`

func (q *Queries) SoftDeleteMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteMenuItem, id).Scan(&out)
	return out, err
}
