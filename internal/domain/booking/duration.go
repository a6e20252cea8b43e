package booking

import (
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/timeofday"
)

var minutesPerHour = decimal.NewFromInt(60)

// Hours returns the same-day span between two "HH:MM" clock times in hours.
// Fractional hours are kept (90 minutes is 1.5). Spans that cross midnight
// or are empty are rejected with ErrInvalidDuration.
func Hours(arrival, departure string) (decimal.Decimal, error) {
	from, err := timeofday.Parse(arrival)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidTime, "arrival %q", arrival)
	}
	to, err := timeofday.Parse(departure)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidTime, "departure %q", departure)
	}
	minutes := to.Minutes() - from.Minutes()
	if minutes <= 0 {
		return decimal.Zero, errors.Wrapf(ErrInvalidDuration, "%s to %s", from, to)
	}
	return decimal.NewFromInt(int64(minutes)).Div(minutesPerHour), nil
}

// Basis selects what the bulk-deal quantity and base total count.
type Basis string

const (
	// BasisDuration counts guest-hours: hours × guests.
	BasisDuration Basis = "duration"
	// BasisGuests counts guests only, ignoring the booked duration.
	BasisGuests Basis = "guests"
)

// ParseBasis parses a configured basis name. Empty selects BasisDuration.
func ParseBasis(s string) (Basis, error) {
	switch b := Basis(strings.ToLower(strings.TrimSpace(s))); b {
	case "":
		return BasisDuration, nil
	case BasisDuration, BasisGuests:
		return b, nil
	default:
		return "", errors.Errorf("unknown quantity basis %q", s)
	}
}

// Quantity returns the unit count for a booking of the given length and
// party size.
func (b Basis) Quantity(hours decimal.Decimal, guests int) decimal.Decimal {
	g := decimal.NewFromInt(int64(guests))
	if b == BasisGuests {
		return g
	}
	return hours.Mul(g)
}
