package booking

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/domain/pricing"
	"github.com/xenking/arena-booking/internal/domain/venue"
)

const instrumentation = "github.com/xenking/arena-booking/internal/domain/booking"

// DefaultQuoteTTL is used when Config.QuoteTTL is not set.
const DefaultQuoteTTL = 15 * time.Minute

// Config tunes pricing for both the estimate and the confirmation path.
type Config struct {
	Basis    Basis
	QuoteTTL time.Duration
	Currency string
	// QuoteSecret signs quote tokens. A random secret is generated when
	// empty, so tokens are then only valid on this instance.
	QuoteSecret []byte
}

// ConfirmRequest holds the input for confirming a booking.
type ConfirmRequest struct {
	VenueID    string
	CustomerID string
	Draft      Draft
	// QuotedAt is the EvaluatedAt of the estimate shown to the customer.
	// When set, discounts are evaluated at that instant instead of now and
	// QuoteToken must be the token issued with that estimate.
	QuotedAt   *time.Time
	QuoteToken string
	// ExpectedTotal is the final price shown to the customer. When set, the
	// booking is rejected if the recomputed total differs.
	ExpectedTotal *decimal.Decimal
	// IdempotencyKey, when set, makes retries of the same confirmation map
	// to the same booking ID and payment.
	IdempotencyKey string
}

// Service prices booking drafts and confirms bookings.
type Service struct {
	venues   venue.Repository
	rules    discount.Repository
	bookings Repository
	charger  Charger
	cfg      Config
	now      func() time.Time

	tracer        trace.Tracer
	quotes        metric.Int64Counter
	confirmations metric.Int64Counter
	savings       metric.Float64Histogram
}

// NewService creates a booking Service.
func NewService(
	venues venue.Repository,
	rules discount.Repository,
	bookings Repository,
	charger Charger,
	cfg Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	if cfg.Basis == "" {
		cfg.Basis = BasisDuration
	}
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = DefaultQuoteTTL
	}
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	if len(cfg.QuoteSecret) == 0 {
		cfg.QuoteSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.QuoteSecret); err != nil {
			return nil, errors.Wrap(err, "generate quote secret")
		}
	}

	meter := mp.Meter(instrumentation)
	quotes, err := meter.Int64Counter("booking.quotes",
		metric.WithDescription("Number of booking estimates computed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "quotes counter")
	}
	confirmations, err := meter.Int64Counter("booking.confirmations",
		metric.WithDescription("Number of bookings confirmed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "confirmations counter")
	}
	savings, err := meter.Float64Histogram("booking.savings",
		metric.WithDescription("Discount amount granted per confirmed booking"),
		metric.WithUnit("{currency}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "savings histogram")
	}

	return &Service{
		venues:        venues,
		rules:         rules,
		bookings:      bookings,
		charger:       charger,
		cfg:           cfg,
		now:           time.Now,
		tracer:        tp.Tracer(instrumentation),
		quotes:        quotes,
		confirmations: confirmations,
		savings:       savings,
	}, nil
}

// Quote prices a draft at the current instant and signs the result so it can
// be confirmed at the same instant.
func (s *Service) Quote(ctx context.Context, venueID string, d Draft) (_ *Estimate, rerr error) {
	ctx, span := s.tracer.Start(ctx, "booking.Quote",
		trace.WithAttributes(attribute.String("venue.id", venueID)),
	)
	defer func() { endSpan(span, rerr) }()

	est, err := s.estimate(ctx, venueID, d, s.now())
	if err != nil {
		return nil, err
	}
	est.QuoteToken = signQuote(s.cfg.QuoteSecret, venueID, est.EvaluatedAt)

	s.quotes.Add(ctx, 1, metric.WithAttributes(attribute.String("venue.id", venueID)))
	return est, nil
}

// Confirm recomputes the price of a draft, charges it and stores the
// booking. Nothing is charged when the draft is invalid or the quote no
// longer holds.
func (s *Service) Confirm(ctx context.Context, req ConfirmRequest) (_ *Booking, rerr error) {
	ctx, span := s.tracer.Start(ctx, "booking.Confirm",
		trace.WithAttributes(attribute.String("venue.id", req.VenueID)),
	)
	defer func() { endSpan(span, rerr) }()

	lg := zctx.From(ctx)
	now := s.now()

	at := now
	if req.QuotedAt != nil {
		quoted := *req.QuotedAt
		if !verifyQuote(s.cfg.QuoteSecret, req.VenueID, quoted, req.QuoteToken) {
			return nil, errors.Wrapf(ErrQuoteInvalid, "quoted at %s", quoted.Format(time.RFC3339))
		}
		if quoted.After(now) || now.Sub(quoted) > s.cfg.QuoteTTL {
			return nil, errors.Wrapf(ErrQuoteExpired, "quoted at %s", quoted.Format(time.RFC3339))
		}
		at = quoted
	}

	est, err := s.estimate(ctx, req.VenueID, req.Draft, at)
	if err != nil {
		return nil, err
	}

	q := est.Quote.Rounded()
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Round(2).Equal(q.FinalPrice) {
		return nil, errors.Wrapf(ErrQuoteMismatch, "expected %s, computed %s",
			req.ExpectedTotal.StringFixed(2), q.FinalPrice.StringFixed(2))
	}

	b := &Booking{
		ID:               bookingID(req),
		VenueID:          req.VenueID,
		CustomerID:       req.CustomerID,
		ArrivalTime:      req.Draft.ArrivalTime,
		DepartureTime:    req.Draft.DepartureTime,
		Guests:           req.Draft.Guests,
		UnitPrice:        req.Draft.UnitPrice,
		BaseTotal:        est.BaseTotal.Round(2),
		TotalPrice:       q.FinalPrice,
		Savings:          q.Savings,
		AppliedDiscounts: q.AppliedDiscounts,
		Status:           StatusConfirmed,
		PricedAt:         est.EvaluatedAt,
	}

	if b.TotalPrice.IsPositive() {
		ref, err := s.charger.Charge(ctx, Charge{
			BookingID:  b.ID,
			VenueID:    b.VenueID,
			CustomerID: b.CustomerID,
			Amount:     b.TotalPrice,
			Currency:   s.cfg.Currency,
		})
		if err != nil {
			return nil, errors.Wrap(err, "charge")
		}
		b.PaymentRef = ref
	}

	if err := s.bookings.Create(ctx, b); err != nil {
		if errors.Is(err, ErrDuplicate) {
			lg.Info("Booking already confirmed", zap.String("booking_id", b.ID))
			return nil, err
		}
		lg.Error("Booking charged but not stored",
			zap.String("booking_id", b.ID),
			zap.String("payment_ref", b.PaymentRef),
			zap.Error(err),
		)
		return nil, errors.Wrap(err, "create booking")
	}

	attrs := metric.WithAttributes(attribute.String("venue.id", b.VenueID))
	s.confirmations.Add(ctx, 1, attrs)
	s.savings.Record(ctx, b.Savings.InexactFloat64(), attrs)

	lg.Info("Booking confirmed",
		zap.String("booking_id", b.ID),
		zap.String("venue_id", b.VenueID),
		zap.Stringer("total", b.TotalPrice),
		zap.Strings("discounts", b.AppliedDiscounts),
	)
	return b, nil
}

// estimate runs the pricing pipeline for one draft at the given instant.
func (s *Service) estimate(ctx context.Context, venueID string, d Draft, at time.Time) (*Estimate, error) {
	hours, err := d.Validate()
	if err != nil {
		return nil, err
	}

	v, err := s.venues.GetByID(ctx, venueID)
	if err != nil {
		return nil, errors.Wrap(err, "get venue")
	}
	loc, err := v.Location()
	if err != nil {
		return nil, err
	}

	rules, err := s.rules.ListActiveByVenue(ctx, venueID)
	if err != nil {
		return nil, errors.Wrap(err, "list discount rules")
	}

	local := at.In(loc)
	active := discount.Active(rules, local)
	qty := s.cfg.Basis.Quantity(hours, d.Guests)
	base := d.UnitPrice.Mul(qty)

	zctx.From(ctx).Debug("Pricing draft",
		zap.String("venue_id", venueID),
		zap.Time("at", local),
		zap.Int("rules", len(rules)),
		zap.Int("active", len(active)),
		zap.Stringer("quantity", qty),
	)

	return &Estimate{
		VenueID:     venueID,
		Hours:       hours,
		Quantity:    qty,
		BaseTotal:   base,
		Quote:       pricing.Compose(base, v.DefaultDiscountPercentage, active, qty),
		EvaluatedAt: local,
	}, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
