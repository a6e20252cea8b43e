package venue

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested venue does not exist.
var ErrNotFound = errors.New("venue not found")

// Venue is a bookable gaming venue.
type Venue struct {
	ID   string
	Name string
	// DefaultDiscountPercentage is applied to every booking before any
	// discount rule. Zero disables it.
	DefaultDiscountPercentage decimal.Decimal
	// Timezone is an IANA zone name. Empty means UTC.
	Timezone string
}

// Location returns the venue's timezone. Discount activation is evaluated in
// this location so estimate and charge see the same weekday and clock time.
func (v Venue) Location() (*time.Location, error) {
	if v.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(v.Timezone)
	if err != nil {
		return nil, errors.Wrapf(err, "venue %s timezone", v.ID)
	}
	return loc, nil
}

// Repository defines read operations for venues.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Venue, error)
}
