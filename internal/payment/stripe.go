package payment

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/booking"
)

// intentCreator is the part of the Stripe PaymentIntents client used here.
type intentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

var _ booking.Charger = (*Stripe)(nil)

// Stripe charges bookings by creating Stripe PaymentIntents.
type Stripe struct {
	intents intentCreator
}

// NewStripe returns a Stripe charger authenticated with secretKey.
func NewStripe(secretKey string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents}
}

// Charge creates a PaymentIntent for the booking total and returns its ID.
// The booking ID is the Stripe idempotency key. Booking IDs are random unless
// the client sends an Idempotency-Key, so only confirmations retried with the
// same key reuse the original PaymentIntent.
func (s *Stripe) Charge(ctx context.Context, c booking.Charge) (string, error) {
	amount, err := MinorUnits(c.Amount)
	if err != nil {
		return "", err
	}

	params := &stripe.PaymentIntentParams{
		Amount:      stripe.Int64(amount),
		Currency:    stripe.String(strings.ToLower(c.Currency)),
		Description: stripe.String("Venue booking " + c.BookingID),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.SetIdempotencyKey("booking-" + c.BookingID)
	params.AddMetadata("booking_id", c.BookingID)
	params.AddMetadata("venue_id", c.VenueID)
	if c.CustomerID != "" {
		params.AddMetadata("customer_id", c.CustomerID)
	}

	pi, err := s.intents.New(params)
	if err != nil {
		return "", errors.Wrap(err, "create payment intent")
	}

	zctx.From(ctx).Info("Payment intent created",
		zap.String("booking_id", c.BookingID),
		zap.String("payment_intent", pi.ID),
		zap.Int64("amount", amount),
		zap.String("currency", c.Currency),
	)
	return pi.ID, nil
}
