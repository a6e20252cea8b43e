package booking

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/pricing"
)

// Sentinel errors for booking validation and confirmation.
var (
	ErrInvalidTime      = errors.New("invalid time")
	ErrInvalidDuration  = errors.New("departure must be after arrival on the same day")
	ErrInvalidGuests    = errors.New("guests must be at least 1")
	ErrInvalidUnitPrice = errors.New("unit price must not be negative")
	ErrQuoteExpired     = errors.New("quote expired")
	ErrQuoteMismatch    = errors.New("quoted total does not match")
	ErrQuoteInvalid     = errors.New("quote token invalid")
	ErrDuplicate        = errors.New("booking already confirmed")
)

// Status values stored on bookings.
const (
	StatusConfirmed = "confirmed"
)

// Draft is the booking form input shared by the estimate and the
// confirmation paths.
type Draft struct {
	ArrivalTime   string
	DepartureTime string
	Guests        int
	UnitPrice     decimal.Decimal
}

// Validate checks the draft and returns its duration in hours.
func (d Draft) Validate() (decimal.Decimal, error) {
	if d.Guests < 1 {
		return decimal.Zero, ErrInvalidGuests
	}
	if d.UnitPrice.IsNegative() {
		return decimal.Zero, ErrInvalidUnitPrice
	}
	return Hours(d.ArrivalTime, d.DepartureTime)
}

// IsInvalid reports whether err is a draft validation error.
func IsInvalid(err error) bool {
	return errors.Is(err, ErrInvalidTime) ||
		errors.Is(err, ErrInvalidDuration) ||
		errors.Is(err, ErrInvalidGuests) ||
		errors.Is(err, ErrInvalidUnitPrice)
}

// Estimate is a priced draft.
type Estimate struct {
	VenueID   string
	Hours     decimal.Decimal
	Quantity  decimal.Decimal
	BaseTotal decimal.Decimal
	Quote     pricing.Quote
	// EvaluatedAt is the instant discount activation was evaluated at, in
	// the venue timezone. Passing it back on confirmation charges the same
	// discounts.
	EvaluatedAt time.Time
	// QuoteToken signs VenueID and EvaluatedAt. Only set by Service.Quote.
	QuoteToken string
}

// Booking is a confirmed, charged booking.
type Booking struct {
	ID               string
	VenueID          string
	CustomerID       string
	ArrivalTime      string
	DepartureTime    string
	Guests           int
	UnitPrice        decimal.Decimal
	BaseTotal        decimal.Decimal
	TotalPrice       decimal.Decimal
	Savings          decimal.Decimal
	AppliedDiscounts []string
	PaymentRef       string
	Status           string
	PricedAt         time.Time
	CreatedAt        time.Time
}

// Repository defines persistence operations for bookings.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
}

// Charge is a request to collect a booking's final price.
type Charge struct {
	BookingID  string
	VenueID    string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
}

// Charger collects payment for a booking and returns the processor's
// reference for it.
type Charger interface {
	Charge(ctx context.Context, c Charge) (string, error)
}
