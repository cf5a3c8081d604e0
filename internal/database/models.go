package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID           uuid.UUID
	FullName     string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Category    pgtype.Text
	Price       pgtype.Numeric
	ImageUrl    pgtype.Text
	IsAvailable bool
	IsActive    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StoreSettings is the single-row store configuration. Band lists are kept
// as raw JSONB and decoded by the pricing package.
type StoreSettings struct {
	OrderingDisabled bool
	OccasionName     pgtype.Text
	OccasionMessage  pgtype.Text
	OccasionStart    pgtype.Timestamptz
	OccasionEnd      pgtype.Timestamptz
	OpeningTime      string
	ClosingTime      string
	FeeBands         []byte
	EtaBands         []byte
	UpdatedAt        time.Time
}

type Order struct {
	ID              uuid.UUID
	OrderNumber     string
	UserID          uuid.UUID
	Status          string
	PaymentStatus   string
	ItemsTotal      pgtype.Numeric
	DeliveryCharge  pgtype.Numeric
	TotalAmount     pgtype.Numeric
	DistanceKm      pgtype.Numeric
	EtaMinutes      pgtype.Int4
	DeliveryAddress pgtype.Text
	Latitude        pgtype.Float8
	Longitude       pgtype.Float8
	Notes           pgtype.Text
	HandledBy       pgtype.UUID
	HandledAt       pgtype.Timestamptz
	Archived        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type OrderItem struct {
	ID         uuid.UUID
	OrderID    uuid.UUID
	MenuItemID uuid.UUID
	Name       string
	ImageUrl   pgtype.Text
	Quantity   int32
	UnitPrice  pgtype.Numeric
	Subtotal   pgtype.Numeric
}

type Payment struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	Reference   string
	Amount      pgtype.Numeric
	Status      string
	CreatedAt   time.Time
	CompletedAt pgtype.Timestamptz
}
