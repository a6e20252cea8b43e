package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/booking"
	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/domain/venue"
)

// decodeConfirm reads a booking draft with the optional quotedAt, quoteToken
// and expectedTotal fields. Unknown fields are ignored. Decimals are accepted as
// JSON strings or numbers. Anything but whitespace after the object is rejected.
func decodeConfirm(data []byte) (booking.ConfirmRequest, error) {
	var req booking.ConfirmRequest

	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return req, errors.New("request body must be a JSON object")
	}
	err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "arrivalTime":
			req.Draft.ArrivalTime, err = d.Str()
		case "departureTime":
			req.Draft.DepartureTime, err = d.Str()
		case "guests":
			req.Draft.Guests, err = d.Int()
		case "unitPrice":
			req.Draft.UnitPrice, err = decodeDecimal(d)
		case "quotedAt":
			if d.Next() == jx.Null {
				return d.Null()
			}
			var s string
			if s, err = d.Str(); err != nil {
				break
			}
			t, perr := time.Parse(time.RFC3339Nano, s)
			if perr != nil {
				return errors.Wrap(perr, "quotedAt")
			}
			req.QuotedAt = &t
		case "quoteToken":
			req.QuoteToken, err = d.Str()
		case "expectedTotal":
			if d.Next() == jx.Null {
				return d.Null()
			}
			v, derr := decodeDecimal(d)
			if derr != nil {
				return derr
			}
			req.ExpectedTotal = &v
		default:
			return d.Skip()
		}
		if err != nil {
			return errors.Wrap(err, string(key))
		}
		return nil
	})
	if err != nil {
		return booking.ConfirmRequest{}, errors.Wrap(err, "decode request")
	}
	if err := d.Skip(); !errors.Is(err, io.EOF) {
		return booking.ConfirmRequest{}, errors.New("unexpected data after JSON object")
	}
	return req, nil
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	var raw string
	switch d.Next() {
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		raw = s
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		raw = string(n)
	default:
		return decimal.Zero, errors.New("expected decimal string or number")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(err, "parse decimal %q", raw)
	}
	return v, nil
}

func encodeDiscounts(v *venue.Venue, rules []discount.Rule, now time.Time) func(*jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("venueId")
		e.Str(v.ID)
		e.FieldStart("venueName")
		e.Str(v.Name)
		e.FieldStart("defaultDiscountPercentage")
		e.Str(v.DefaultDiscountPercentage.String())
		e.FieldStart("evaluatedAt")
		e.Str(now.Format(time.RFC3339Nano))
		e.FieldStart("discounts")
		e.ArrStart()
		for _, r := range rules {
			encodeRule(e, r, discount.IsActive(r, now))
		}
		e.ArrEnd()
		e.ObjEnd()
	}
}

func encodeRule(e *jx.Encoder, r discount.Rule, active bool) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(r.ID)
	e.FieldStart("title")
	e.Str(r.Title)
	e.FieldStart("description")
	e.Str(r.Description)
	e.FieldStart("kind")
	e.Str(string(r.Kind()))

	switch t := r.Terms.(type) {
	case discount.Percentage:
		e.FieldStart("value")
		e.Str(t.Value.String())
	case discount.BulkDeal:
		e.FieldStart("buyQuantity")
		e.Int(t.Buy)
		e.FieldStart("getQuantity")
		e.Int(t.Get)
	case discount.TimeBased:
		e.FieldStart("value")
		e.Str(t.Value.String())
		e.FieldStart("validDays")
		e.ArrStart()
		for _, day := range t.Days {
			e.Str(day)
		}
		e.ArrEnd()
		if t.Window != nil {
			e.FieldStart("validStartTime")
			e.Str(t.Window.Start.String())
			e.FieldStart("validEndTime")
			e.Str(t.Window.End.String())
		}
	}

	e.FieldStart("currentlyActive")
	e.Bool(active)
	e.ObjEnd()
}

func encodeEstimate(est *booking.Estimate) func(*jx.Encoder) {
	q := est.Quote.Rounded()
	return func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("venueId")
		e.Str(est.VenueID)
		e.FieldStart("hours")
		e.Str(est.Hours.String())
		e.FieldStart("quantity")
		e.Str(est.Quantity.String())
		e.FieldStart("baseTotal")
		e.Str(est.BaseTotal.Round(2).String())
		e.FieldStart("finalPrice")
		e.Str(q.FinalPrice.String())
		e.FieldStart("savings")
		e.Str(q.Savings.String())
		e.FieldStart("appliedDiscounts")
		encodeStrings(e, q.AppliedDiscounts)
		e.FieldStart("evaluatedAt")
		e.Str(est.EvaluatedAt.Format(time.RFC3339Nano))
		if est.QuoteToken != "" {
			e.FieldStart("quoteToken")
			e.Str(est.QuoteToken)
		}
		e.ObjEnd()
	}
}

func encodeBooking(b *booking.Booking) func(*jx.Encoder) {
	return func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(b.ID)
		e.FieldStart("venueId")
		e.Str(b.VenueID)
		e.FieldStart("customerId")
		e.Str(b.CustomerID)
		e.FieldStart("arrivalTime")
		e.Str(b.ArrivalTime)
		e.FieldStart("departureTime")
		e.Str(b.DepartureTime)
		e.FieldStart("guests")
		e.Int(b.Guests)
		e.FieldStart("unitPrice")
		e.Str(b.UnitPrice.String())
		e.FieldStart("baseTotal")
		e.Str(b.BaseTotal.String())
		e.FieldStart("totalPrice")
		e.Str(b.TotalPrice.String())
		e.FieldStart("savings")
		e.Str(b.Savings.String())
		e.FieldStart("appliedDiscounts")
		encodeStrings(e, b.AppliedDiscounts)
		if b.PaymentRef != "" {
			e.FieldStart("paymentRef")
			e.Str(b.PaymentRef)
		}
		e.FieldStart("status")
		e.Str(b.Status)
		e.FieldStart("pricedAt")
		e.Str(b.PricedAt.Format(time.RFC3339Nano))
		if !b.CreatedAt.IsZero() {
			e.FieldStart("createdAt")
			e.Str(b.CreatedAt.Format(time.RFC3339Nano))
		}
		e.ObjEnd()
	}
}

func encodeStrings(e *jx.Encoder, values []string) {
	e.ArrStart()
	for _, v := range values {
		e.Str(v)
	}
	e.ArrEnd()
}

func writeJSON(w http.ResponseWriter, status int, encode func(*jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	encode(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
