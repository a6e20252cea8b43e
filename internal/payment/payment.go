// Package payment collects booking payments from the card processor.
package payment

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/booking"
)

// ErrInvalidAmount is returned for charges that are not a positive whole
// number of minor units.
var ErrInvalidAmount = errors.New("invalid charge amount")

// MinorUnits converts a decimal amount to the processor's smallest currency
// unit, rounding half away from zero to cents.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	cents := amount.Round(2).Shift(2)
	if !cents.IsPositive() {
		return 0, errors.Wrapf(ErrInvalidAmount, "%s", amount)
	}
	return cents.IntPart(), nil
}

var _ booking.Charger = Disabled{}

// Disabled accepts every charge without contacting a processor. It is used
// when no processor key is configured.
type Disabled struct{}

// Charge logs the charge and returns an empty reference.
func (Disabled) Charge(ctx context.Context, c booking.Charge) (string, error) {
	zctx.From(ctx).Warn("Payment processor disabled, charge not collected",
		zap.String("booking_id", c.BookingID),
		zap.Stringer("amount", c.Amount),
		zap.String("currency", c.Currency),
	)
	return "", nil
}
