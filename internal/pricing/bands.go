package pricing

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// FeeBand maps a half-open distance interval [MinKm, MaxKm) to a delivery
// surcharge.
type FeeBand struct {
	MinKm  float64         `json:"min_km"`
	MaxKm  float64         `json:"max_km"`
	Charge decimal.Decimal `json:"charge"`
}

// EtaBand maps a half-open distance interval [MinKm, MaxKm) to an estimated
// delivery time in minutes.
type EtaBand struct {
	MinKm   float64 `json:"min_km"`
	MaxKm   float64 `json:"max_km"`
	Minutes int32   `json:"minutes"`
}

// DefaultFeeBands are the stock fee tiers used until an admin configures
// their own.
func DefaultFeeBands() []FeeBand {
	return []FeeBand{
		{MinKm: 0, MaxKm: 1, Charge: decimal.Zero},
		{MinKm: 1, MaxKm: 2, Charge: decimal.NewFromInt(20)},
		{MinKm: 2, MaxKm: 3, Charge: decimal.NewFromInt(40)},
		{MinKm: 3, MaxKm: 5, Charge: decimal.NewFromInt(60)},
	}
}

// DefaultEtaBands are the stock ETA tiers.
func DefaultEtaBands() []EtaBand {
	return []EtaBand{
		{MinKm: 0, MaxKm: 1, Minutes: 15},
		{MinKm: 1, MaxKm: 2, Minutes: 25},
		{MinKm: 2, MaxKm: 3, Minutes: 35},
		{MinKm: 3, MaxKm: 5, Minutes: 50},
	}
}

// DecodeFeeBands parses the JSONB band list stored in settings. An empty or
// missing list falls back to the defaults.
func DecodeFeeBands(raw []byte) ([]FeeBand, error) {
	if len(raw) == 0 {
		return DefaultFeeBands(), nil
	}
	var bands []FeeBand
	if err := json.Unmarshal(raw, &bands); err != nil {
		return nil, fmt.Errorf("decode fee bands: %w", err)
	}
	if len(bands) == 0 {
		return DefaultFeeBands(), nil
	}
	return bands, nil
}

// DecodeEtaBands parses the JSONB ETA band list stored in settings.
func DecodeEtaBands(raw []byte) ([]EtaBand, error) {
	if len(raw) == 0 {
		return DefaultEtaBands(), nil
	}
	var bands []EtaBand
	if err := json.Unmarshal(raw, &bands); err != nil {
		return nil, fmt.Errorf("decode eta bands: %w", err)
	}
	if len(bands) == 0 {
		return DefaultEtaBands(), nil
	}
	return bands, nil
}

// ValidateFeeBands rejects malformed intervals. Overlap between bands is
// allowed; lookups resolve it by first match in list order.
func ValidateFeeBands(bands []FeeBand) error {
	for i, b := range bands {
		if b.MinKm < 0 || b.MaxKm <= b.MinKm {
			return fmt.Errorf("fee band [%d]: invalid interval [%g, %g)", i, b.MinKm, b.MaxKm)
		}
		if b.Charge.IsNegative() {
			return fmt.Errorf("fee band [%d]: negative charge", i)
		}
	}
	return nil
}

// ValidateEtaBands rejects malformed intervals.
func ValidateEtaBands(bands []EtaBand) error {
	for i, b := range bands {
		if b.MinKm < 0 || b.MaxKm <= b.MinKm {
			return fmt.Errorf("eta band [%d]: invalid interval [%g, %g)", i, b.MinKm, b.MaxKm)
		}
		if b.Minutes < 0 {
			return fmt.Errorf("eta band [%d]: negative minutes", i)
		}
	}
	return nil
}
