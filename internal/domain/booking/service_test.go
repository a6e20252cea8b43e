package booking

import (
	"context"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/domain/timeofday"
	"github.com/xenking/arena-booking/internal/domain/venue"
)

type mockVenueRepo struct {
	venue *venue.Venue
	err   error
}

func (m *mockVenueRepo) GetByID(_ context.Context, id string) (*venue.Venue, error) {
	if m.err != nil {
		return nil, m.err
	}
	if m.venue == nil || m.venue.ID != id {
		return nil, venue.ErrNotFound
	}
	return m.venue, nil
}

type mockRuleRepo struct {
	rules []discount.Rule
	err   error
	calls int
}

func (m *mockRuleRepo) ListActiveByVenue(_ context.Context, _ string) ([]discount.Rule, error) {
	m.calls++
	return m.rules, m.err
}

type mockBookingRepo struct {
	created *Booking
	err     error
}

func (m *mockBookingRepo) Create(_ context.Context, b *Booking) error {
	if m.err != nil {
		return m.err
	}
	m.created = b
	return nil
}

type mockCharger struct {
	charges []Charge
	ref     string
	err     error
}

func (m *mockCharger) Charge(_ context.Context, c Charge) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.charges = append(m.charges, c)
	return m.ref, nil
}

// 2025-06-13 is a Friday.
var fridayNoon = time.Date(2025, 6, 13, 12, 0, 0, 0, time.UTC)

type fixture struct {
	venues   *mockVenueRepo
	rules    *mockRuleRepo
	bookings *mockBookingRepo
	charger  *mockCharger
	svc      *Service
}

func newFixture(t *testing.T, cfg Config, now time.Time) *fixture {
	t.Helper()
	f := &fixture{
		venues: &mockVenueRepo{venue: &venue.Venue{
			ID:                        "v1",
			Name:                      "Pixel Den",
			DefaultDiscountPercentage: d("10"),
		}},
		rules: &mockRuleRepo{rules: []discount.Rule{{
			ID:     "r1",
			Title:  "Happy Hour",
			Active: true,
			Terms: discount.TimeBased{
				Value:  d("20"),
				Days:   []string{"friday"},
				Window: &discount.Window{Start: timeofday.MustParse("09:00"), End: timeofday.MustParse("17:00")},
			},
		}}},
		bookings: &mockBookingRepo{},
		charger:  &mockCharger{ref: "pi_123"},
	}
	svc, err := NewService(f.venues, f.rules, f.bookings, f.charger, cfg,
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)
	svc.now = func() time.Time { return now }
	f.svc = svc
	return f
}

var testSecret = []byte("quote-secret")

// Two hours for one guest at 50 per guest-hour is a base total of 100.
var twoHours = Draft{ArrivalTime: "10:00", DepartureTime: "12:00", Guests: 1, UnitPrice: d("50")}

func TestService_Quote(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)

	est, err := f.svc.Quote(context.Background(), "v1", twoHours)
	require.NoError(t, err)

	assert.Equal(t, "v1", est.VenueID)
	assert.True(t, d("2").Equal(est.Hours))
	assert.True(t, d("2").Equal(est.Quantity))
	assert.True(t, d("100").Equal(est.BaseTotal))
	assert.True(t, d("72").Equal(est.Quote.FinalPrice), est.Quote.FinalPrice.String())
	assert.True(t, d("28").Equal(est.Quote.Savings))
	assert.Equal(t, []string{"10% default discount", "Happy Hour"}, est.Quote.AppliedDiscounts)
	assert.True(t, fridayNoon.Equal(est.EvaluatedAt))
	assert.True(t, verifyQuote(f.svc.cfg.QuoteSecret, "v1", est.EvaluatedAt, est.QuoteToken))
}

func TestService_Quote_OutsideWindow(t *testing.T) {
	saturday := fridayNoon.AddDate(0, 0, 1)
	f := newFixture(t, Config{}, saturday)

	est, err := f.svc.Quote(context.Background(), "v1", twoHours)
	require.NoError(t, err)
	assert.True(t, d("90").Equal(est.Quote.FinalPrice))
	assert.Equal(t, []string{"10% default discount"}, est.Quote.AppliedDiscounts)
}

func TestService_Quote_EvaluatesInVenueTimezone(t *testing.T) {
	// 20:00 UTC Thursday is 05:00 Friday in Tokyo, before the window opens.
	thursdayEvening := time.Date(2025, 6, 12, 20, 0, 0, 0, time.UTC)
	f := newFixture(t, Config{}, thursdayEvening)
	f.venues.venue.Timezone = "Asia/Tokyo"
	f.rules.rules[0].Terms = discount.TimeBased{Value: d("20"), Days: []string{"friday"}}

	est, err := f.svc.Quote(context.Background(), "v1", twoHours)
	require.NoError(t, err)
	assert.Equal(t, time.Friday, est.EvaluatedAt.Weekday())
	assert.Equal(t, "Asia/Tokyo", est.EvaluatedAt.Location().String())
	assert.Contains(t, est.Quote.AppliedDiscounts, "Happy Hour")
}

func TestService_Quote_GuestBasis(t *testing.T) {
	f := newFixture(t, Config{Basis: BasisGuests}, fridayNoon)
	f.venues.venue.DefaultDiscountPercentage = decimal.Zero
	f.rules.rules = []discount.Rule{{Title: "3for2", Active: true, Terms: discount.BulkDeal{Buy: 3, Get: 1}}}

	draft := Draft{ArrivalTime: "10:00", DepartureTime: "14:00", Guests: 3, UnitPrice: d("30")}
	est, err := f.svc.Quote(context.Background(), "v1", draft)
	require.NoError(t, err)

	assert.True(t, d("3").Equal(est.Quantity))
	assert.True(t, d("90").Equal(est.BaseTotal))
	assert.True(t, d("60").Equal(est.Quote.FinalPrice))
	assert.True(t, d("90").Equal(est.Quote.Savings))
}

func TestService_Quote_UnknownVenue(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)

	_, err := f.svc.Quote(context.Background(), "nope", twoHours)
	require.ErrorIs(t, err, venue.ErrNotFound)
}

func TestService_Quote_InvalidDraftSkipsLookups(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	draft := twoHours
	draft.DepartureTime = "09:00"

	_, err := f.svc.Quote(context.Background(), "v1", draft)
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.Zero(t, f.rules.calls)
}

func TestService_Quote_RuleRepoError(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	f.rules.err = errors.New("connection reset")

	_, err := f.svc.Quote(context.Background(), "v1", twoHours)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "list discount rules")
}

func TestService_Confirm(t *testing.T) {
	f := newFixture(t, Config{Currency: "eur"}, fridayNoon)

	b, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		VenueID:    "v1",
		CustomerID: "c1",
		Draft:      twoHours,
	})
	require.NoError(t, err)

	require.Len(t, f.charger.charges, 1)
	charge := f.charger.charges[0]
	assert.Equal(t, b.ID, charge.BookingID)
	assert.Equal(t, "eur", charge.Currency)
	assert.True(t, d("72").Equal(charge.Amount))

	assert.Same(t, b, f.bookings.created)
	assert.Equal(t, "pi_123", b.PaymentRef)
	assert.Equal(t, StatusConfirmed, b.Status)
	assert.Equal(t, "c1", b.CustomerID)
	assert.True(t, d("100").Equal(b.BaseTotal))
	assert.True(t, d("72").Equal(b.TotalPrice))
	assert.True(t, d("28").Equal(b.Savings))
	assert.Equal(t, []string{"10% default discount", "Happy Hour"}, b.AppliedDiscounts)
}

func TestService_Confirm_RoundsToCents(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	f.venues.venue.DefaultDiscountPercentage = d("33.333")
	f.rules.rules = nil

	draft := Draft{ArrivalTime: "10:00", DepartureTime: "11:00", Guests: 1, UnitPrice: d("10")}
	b, err := f.svc.Confirm(context.Background(), ConfirmRequest{VenueID: "v1", Draft: draft})
	require.NoError(t, err)
	assert.Equal(t, "6.67", b.TotalPrice.StringFixed(2))
	assert.True(t, d("6.67").Equal(f.charger.charges[0].Amount))
}

func TestService_Confirm_UsesQuotedInstant(t *testing.T) {
	quoted := time.Date(2025, 6, 13, 16, 58, 0, 0, time.UTC)
	afterWindow := quoted.Add(5 * time.Minute)
	f := newFixture(t, Config{QuoteTTL: 10 * time.Minute, QuoteSecret: testSecret}, afterWindow)

	expected := d("72")
	b, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		VenueID:       "v1",
		Draft:         twoHours,
		QuotedAt:      &quoted,
		QuoteToken:    signQuote(testSecret, "v1", quoted),
		ExpectedTotal: &expected,
	})
	require.NoError(t, err)
	assert.True(t, d("72").Equal(b.TotalPrice))
	assert.True(t, quoted.Equal(b.PricedAt))
}

func TestService_Confirm_QuoteNoLongerValid(t *testing.T) {
	tests := []struct {
		name     string
		quotedAt time.Time
	}{
		{name: "older than ttl", quotedAt: fridayNoon.Add(-11 * time.Minute)},
		{name: "in the future", quotedAt: fridayNoon.Add(time.Minute)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{QuoteTTL: 10 * time.Minute, QuoteSecret: testSecret}, fridayNoon)

			_, err := f.svc.Confirm(context.Background(), ConfirmRequest{
				VenueID:    "v1",
				Draft:      twoHours,
				QuotedAt:   &tt.quotedAt,
				QuoteToken: signQuote(testSecret, "v1", tt.quotedAt),
			})
			require.ErrorIs(t, err, ErrQuoteExpired)
			assert.Empty(t, f.charger.charges)
			assert.Nil(t, f.bookings.created)
		})
	}
}

func TestService_Confirm_QuoteRoundTrip(t *testing.T) {
	quotedAt := time.Date(2025, 6, 13, 16, 58, 0, 0, time.UTC)
	f := newFixture(t, Config{}, quotedAt)

	est, err := f.svc.Quote(context.Background(), "v1", twoHours)
	require.NoError(t, err)
	require.NotEmpty(t, est.QuoteToken)

	// Happy Hour ends at 17:00 but the quoted instant still holds it.
	f.svc.now = func() time.Time { return quotedAt.Add(5 * time.Minute) }
	b, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		VenueID:    "v1",
		Draft:      twoHours,
		QuotedAt:   &est.EvaluatedAt,
		QuoteToken: est.QuoteToken,
	})
	require.NoError(t, err)
	assert.True(t, d("72").Equal(b.TotalPrice))
}

func TestService_Confirm_QuoteTokenRejected(t *testing.T) {
	// Inside the TTL but after Happy Hour ended.
	now := time.Date(2025, 6, 13, 17, 5, 0, 0, time.UTC)
	backdated := now.Add(-10 * time.Minute)

	tests := []struct {
		name  string
		token string
	}{
		{name: "missing"},
		{name: "other instant", token: signQuote(testSecret, "v1", now)},
		{name: "other venue", token: signQuote(testSecret, "v2", backdated)},
		{name: "other secret", token: signQuote([]byte("elsewhere"), "v1", backdated)},
		{name: "not hex", token: "happy-hour"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{QuoteSecret: testSecret}, now)

			_, err := f.svc.Confirm(context.Background(), ConfirmRequest{
				VenueID:    "v1",
				Draft:      twoHours,
				QuotedAt:   &backdated,
				QuoteToken: tt.token,
			})
			require.ErrorIs(t, err, ErrQuoteInvalid)
			assert.Empty(t, f.charger.charges)
			assert.Nil(t, f.bookings.created)
		})
	}
}

func TestService_Confirm_IdempotencyKey(t *testing.T) {
	confirm := func(t *testing.T, f *fixture, customer, key string) *Booking {
		t.Helper()
		b, err := f.svc.Confirm(context.Background(), ConfirmRequest{
			VenueID:        "v1",
			CustomerID:     customer,
			Draft:          twoHours,
			IdempotencyKey: key,
		})
		require.NoError(t, err)
		return b
	}

	f := newFixture(t, Config{}, fridayNoon)
	first := confirm(t, f, "c1", "order-1")
	retry := confirm(t, f, "c1", "order-1")
	assert.Equal(t, first.ID, retry.ID)
	require.Len(t, f.charger.charges, 2)
	assert.Equal(t, f.charger.charges[0].BookingID, f.charger.charges[1].BookingID)

	assert.NotEqual(t, first.ID, confirm(t, f, "c1", "order-2").ID)
	assert.NotEqual(t, first.ID, confirm(t, f, "c2", "order-1").ID)
	assert.NotEqual(t, confirm(t, f, "c1", "").ID, confirm(t, f, "c1", "").ID)
}

func TestService_Confirm_Duplicate(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	f.bookings.err = errors.Wrap(ErrDuplicate, "creating booking")

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		VenueID:        "v1",
		Draft:          twoHours,
		IdempotencyKey: "order-1",
	})
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestService_Confirm_ExpectedTotalMismatch(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	shown := d("90")

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{
		VenueID:       "v1",
		Draft:         twoHours,
		ExpectedTotal: &shown,
	})
	require.ErrorIs(t, err, ErrQuoteMismatch)
	assert.Contains(t, err.Error(), "expected 90.00, computed 72.00")
	assert.Empty(t, f.charger.charges)
}

func TestService_Confirm_InvalidDraftNotCharged(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	draft := twoHours
	draft.ArrivalTime = "23:00"

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{VenueID: "v1", Draft: draft})
	require.ErrorIs(t, err, ErrInvalidDuration)
	assert.Empty(t, f.charger.charges)
	assert.Nil(t, f.bookings.created)
}

func TestService_Confirm_FreeBookingSkipsCharge(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	draft := twoHours
	draft.UnitPrice = decimal.Zero

	b, err := f.svc.Confirm(context.Background(), ConfirmRequest{VenueID: "v1", Draft: draft})
	require.NoError(t, err)
	assert.Empty(t, f.charger.charges)
	assert.Empty(t, b.PaymentRef)
	assert.NotNil(t, f.bookings.created)
}

func TestService_Confirm_ChargeError(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	f.charger.err = errors.New("card declined")

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{VenueID: "v1", Draft: twoHours})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "charge")
	assert.Nil(t, f.bookings.created)
}

func TestService_Confirm_CreateError(t *testing.T) {
	f := newFixture(t, Config{}, fridayNoon)
	f.bookings.err = errors.New("disk full")

	_, err := f.svc.Confirm(context.Background(), ConfirmRequest{VenueID: "v1", Draft: twoHours})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create booking")
	assert.Len(t, f.charger.charges, 1)
}
