// Package settings decides whether the store can accept a new order right
// now. The check is a pure predicate over a settings snapshot and an injected
// clock instant; it runs before any database write on the order path.
package settings

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// Business hours are evaluated in the store's fixed UTC+5:30 timezone,
	// never the server's local one.
	businessOffsetMinutes = 5*60 + 30

	minutesPerDay = 24 * 60

	defaultOpeningTime = "09:00"
	defaultClosingTime = "21:00"
)

// Settings is the slice of store configuration the gate needs.
type Settings struct {
	OrderingDisabled bool
	OccasionName     string
	OpeningTime      string // "HH:MM", 24-hour
	ClosingTime      string // "HH:MM", 24-hour
}

// ClosedError reports that ordering is switched off store-wide.
type ClosedError struct {
	Reason string
}

func (e *ClosedError) Error() string {
	if e.Reason == "" {
		return "ordering is currently disabled"
	}
	return "ordering is currently disabled: " + e.Reason
}

// OutsideHoursError reports that the current time falls outside business
// hours.
type OutsideHoursError struct {
	Opening string
	Closing string
}

func (e *OutsideHoursError) Error() string {
	return fmt.Sprintf("store is closed, orders are accepted between %s and %s", e.Opening, e.Closing)
}

// CanAcceptOrder returns nil when an order may be placed at the given
// instant. A disabled store rejects regardless of time of day. The closing
// minute itself is still accepted; one minute later is not.
//
// Windows that span midnight (opening later than closing) are not handled
// specially and will reject most of the day.
func CanAcceptOrder(s Settings, now time.Time) error {
	if s.OrderingDisabled {
		return &ClosedError{Reason: s.OccasionName}
	}

	utc := now.UTC()
	minutes := (utc.Hour()*60 + utc.Minute() + businessOffsetMinutes) % minutesPerDay

	opening, openingStr := clockMinutes(s.OpeningTime, defaultOpeningTime)
	closing, closingStr := clockMinutes(s.ClosingTime, defaultClosingTime)

	if minutes < opening || minutes > closing {
		return &OutsideHoursError{Opening: openingStr, Closing: closingStr}
	}
	return nil
}

// clockMinutes parses an "HH:MM" time of day into minutes since midnight,
// substituting the fallback when the value is unset or malformed.
func clockMinutes(s, fallback string) (int, string) {
	m, ok := parseClock(s)
	if !ok {
		m, _ = parseClock(fallback)
		return m, fallback
	}
	return m, s
}

func parseClock(s string) (int, bool) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}
