package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const settingsColumns = `ordering_disabled, occasion_name, occasion_message,
	occasion_start, occasion_end, opening_time, closing_time, fee_bands, eta_bands, updated_at`

func scanSettings(row interface{ Scan(dest ...any) error }) (StoreSettings, error) {
	var s StoreSettings
	err := row.Scan(&s.OrderingDisabled, &s.OccasionName, &s.OccasionMessage,
		&s.OccasionStart, &s.OccasionEnd, &s.OpeningTime, &s.ClosingTime,
		&s.FeeBands, &s.EtaBands, &s.UpdatedAt)
	return s, err
}

const getSettings = `
SELECT ` + settingsColumns + `
FROM store_settings
WHERE id = 1
`

const insertDefaultSettings = `
INSERT INTO store_settings (id) VALUES (1)
ON CONFLICT (id) DO NOTHING
RETURNING ` + settingsColumns + `
`

// GetSettings returns the store settings, creating the default row on first
// read if none exists.
func (q *Queries) GetSettings(ctx context.Context) (StoreSettings, error) {
	s, err := scanSettings(q.db.QueryRow(ctx, getSettings))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return StoreSettings{}, err
	}

	s, err = scanSettings(q.db.QueryRow(ctx, insertDefaultSettings))
	if errors.Is(err, pgx.ErrNoRows) {
		// Lost the insert race; the row exists now.
		return scanSettings(q.db.QueryRow(ctx, getSettings))
	}
	return s, err
}

const updateSettings = `
UPDATE store_settings
SET ordering_disabled = $1, occasion_name = $2, occasion_message = $3,
    occasion_start = $4, occasion_end = $5, opening_time = $6, closing_time = $7,
    fee_bands = $8, eta_bands = $9, updated_at = now()
WHERE id = 1
RETURNING ` + settingsColumns + `
`

type UpdateSettingsParams struct {
	OrderingDisabled bool
	OccasionName     pgtype.Text
	OccasionMessage  pgtype.Text
	OccasionStart    pgtype.Timestamptz
	OccasionEnd      pgtype.Timestamptz
	OpeningTime      string
	ClosingTime      string
	FeeBands         []byte
	EtaBands         []byte
}

func (q *Queries) UpdateSettings(ctx context.Context, arg UpdateSettingsParams) (StoreSettings, error) {
	return scanSettings(q.db.QueryRow(ctx, updateSettings,
		arg.OrderingDisabled, arg.OccasionName, arg.OccasionMessage,
		arg.OccasionStart, arg.OccasionEnd, arg.OpeningTime, arg.ClosingTime,
		arg.FeeBands, arg.EtaBands))
}
