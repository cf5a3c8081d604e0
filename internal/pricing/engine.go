// Package pricing computes order totals and distance-banded delivery charges.
// All monetary results are derived from the catalog; amounts supplied by
// clients are never trusted.
package pricing

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/shopsy24/api/internal/database"
)

// Errors returned by the pricing engine.
var (
	ErrEmptyItems      = errors.New("items are required")
	ErrInvalidItemID   = errors.New("invalid menu_item_id")
	ErrInvalidQuantity = errors.New("quantity must be > 0")
	ErrItemNotFound    = errors.New("menu item not found")
	ErrItemUnavailable = errors.New("menu item is not available")
	ErrInvalidAmount   = errors.New("computed amount must be > 0")
)

// Catalog resolves authoritative unit prices. Satisfied by *database.Queries.
type Catalog interface {
	GetMenuItemForOrder(ctx context.Context, id uuid.UUID) (database.GetMenuItemForOrderRow, error)
}

// ItemRequest is a single requested line item.
type ItemRequest struct {
	MenuItemID string
	Quantity   int32
}

// PricedItem is an ItemRequest resolved against the catalog. Snapshotted at
// pricing time and persisted with the order.
type PricedItem struct {
	MenuItemID uuid.UUID
	Name       string
	ImageURL   string
	Quantity   int32
	UnitPrice  decimal.Decimal
}

// ItemsQuote is the result of pricing a set of line items.
type ItemsQuote struct {
	ItemsTotal decimal.Decimal
	Items      []PricedItem
}

// DeliveryQuote is the distance-banded delivery charge and ETA.
type DeliveryQuote struct {
	Charge     decimal.Decimal
	DistanceKm float64
	EtaMinutes int32
}

// Engine prices orders against a catalog snapshot and a fixed store origin.
// It holds no mutable state; concurrent use is safe.
type Engine struct {
	catalog   Catalog
	originLat float64
	originLon float64
}

// NewEngine creates a pricing engine for the given catalog and store origin.
func NewEngine(catalog Catalog, originLat, originLon float64) *Engine {
	return &Engine{catalog: catalog, originLat: originLat, originLon: originLon}
}

// PriceItems resolves every requested item against the catalog and sums the
// line totals. Any unknown or unavailable item aborts the whole call; no
// partial quote is produced.
func (e *Engine) PriceItems(ctx context.Context, reqs []ItemRequest) (*ItemsQuote, error) {
	if len(reqs) == 0 {
		return nil, ErrEmptyItems
	}

	total := decimal.Zero
	items := make([]PricedItem, 0, len(reqs))

	for i, req := range reqs {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidQuantity)
		}

		id, err := uuid.Parse(req.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, ErrInvalidItemID)
		}

		row, err := e.catalog.GetMenuItemForOrder(ctx, id)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("items[%d] %s: %w", i, req.MenuItemID, ErrItemNotFound)
			}
			return nil, fmt.Errorf("items[%d]: get menu item: %w", i, err)
		}
		if !row.IsAvailable {
			return nil, fmt.Errorf("items[%d] %s: %w", i, req.MenuItemID, ErrItemUnavailable)
		}

		unitPrice := NumericToDecimal(row.Price)
		total = total.Add(unitPrice.Mul(decimal.NewFromInt32(req.Quantity)))

		imageURL := ""
		if row.ImageUrl.Valid {
			imageURL = row.ImageUrl.String
		}
		items = append(items, PricedItem{
			MenuItemID: row.ID,
			Name:       row.Name,
			ImageURL:   imageURL,
			Quantity:   req.Quantity,
			UnitPrice:  unitPrice,
		})
	}

	return &ItemsQuote{ItemsTotal: total, Items: items}, nil
}

// QuoteDelivery computes the delivery charge and ETA for a destination.
// A nil coordinate pair means no destination was given; the quote is then the
// zero-distance one, resolved through the same band lookup.
func (e *Engine) QuoteDelivery(lat, lon *float64, feeBands []FeeBand, etaBands []EtaBand) DeliveryQuote {
	distance := 0.0
	if lat != nil && lon != nil {
		distance = haversineKm(e.originLat, e.originLon, *lat, *lon)
	}

	return DeliveryQuote{
		Charge:     feeForDistance(distance, feeBands),
		DistanceKm: distance,
		EtaMinutes: etaForDistance(distance, etaBands),
	}
}

// feeForDistance scans bands in list order and returns the first whose
// half-open interval [MinKm, MaxKm) contains the distance. A distance past
// every band is clamped to the last band's charge rather than rejected.
func feeForDistance(distance float64, bands []FeeBand) decimal.Decimal {
	if len(bands) == 0 {
		return decimal.Zero
	}
	for _, b := range bands {
		if distance >= b.MinKm && distance < b.MaxKm {
			return b.Charge
		}
	}
	return bands[len(bands)-1].Charge
}

func etaForDistance(distance float64, bands []EtaBand) int32 {
	if len(bands) == 0 {
		return 0
	}
	for _, b := range bands {
		if distance >= b.MinKm && distance < b.MaxKm {
			return b.Minutes
		}
	}
	return bands[len(bands)-1].Minutes
}

// NumericToDecimal converts a pgtype.Numeric money column to a decimal,
// treating NULL or unparseable values as zero.
func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

// DecimalToNumeric converts a decimal to the pgtype representation used by
// money columns, fixed to two decimal places.
func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
