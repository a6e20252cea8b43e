package discount

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/timeofday"
)

// Kind enumerates the supported discount rule kinds. The string values are
// the ones stored in the discount_rules.kind column.
type Kind string

const (
	// KindPercentage takes a percentage off the running price.
	KindPercentage Kind = "percentage"
	// KindBulkDeal gives Get units free for every Buy units booked.
	KindBulkDeal Kind = "bulk_deal"
	// KindTimeBased takes a percentage off inside a day/time window.
	KindTimeBased Kind = "time_based"
)

// Terms holds the kind-specific part of a rule. It is implemented only by
// the variants in this package.
type Terms interface {
	Kind() Kind
	terms()
}

// Percentage is an unconditional percentage discount.
type Percentage struct {
	Value decimal.Decimal
}

// BulkDeal is a "buy N get M free" discount. Zero quantities mean the rule
// was not configured and it never applies.
type BulkDeal struct {
	Buy int
	Get int
}

// TimeBased is a percentage discount gated by weekday and time of day.
type TimeBased struct {
	Value decimal.Decimal
	// Days holds lowercase full weekday names. Empty means every day.
	Days []string
	// Window is nil when the rule has no time-of-day restriction.
	Window *Window
}

// Window is an inclusive time-of-day range.
type Window struct {
	Start timeofday.TimeOfDay
	End   timeofday.TimeOfDay
}

// Unrecognized preserves a rule whose stored kind this build does not know.
// Such rules are never active and never priced.
type Unrecognized struct {
	Name string
}

func (Percentage) Kind() Kind     { return KindPercentage }
func (BulkDeal) Kind() Kind       { return KindBulkDeal }
func (TimeBased) Kind() Kind      { return KindTimeBased }
func (u Unrecognized) Kind() Kind { return Kind(u.Name) }

func (Percentage) terms()   {}
func (BulkDeal) terms()     {}
func (TimeBased) terms()    {}
func (Unrecognized) terms() {}

// Rule is a venue-configured promotion.
type Rule struct {
	ID          string
	VenueID     string
	Title       string
	Description string
	Active      bool
	Terms       Terms
	CreatedAt   time.Time
}

// Kind returns the rule kind, or an empty Kind when Terms is unset.
func (r Rule) Kind() Kind {
	if r.Terms == nil {
		return ""
	}
	return r.Terms.Kind()
}

// Fields is the flat, storage-shaped representation of a rule as it is kept
// in the database and partner exports. Only the fields matching Kind are
// meaningful.
type Fields struct {
	Kind           string
	Value          decimal.Decimal
	BuyQuantity    int
	GetQuantity    int
	ValidDays      []string
	ValidStartTime string
	ValidEndTime   string
}

// TermsFrom converts flat fields into the matching Terms variant. It never
// fails: unknown kinds become Unrecognized, and a time window is attached
// only when both bounds are present and well-formed.
func TermsFrom(f Fields) Terms {
	switch Kind(strings.ToLower(strings.TrimSpace(f.Kind))) {
	case KindPercentage:
		return Percentage{Value: f.Value}
	case KindBulkDeal:
		return BulkDeal{Buy: f.BuyQuantity, Get: f.GetQuantity}
	case KindTimeBased:
		return TimeBased{
			Value:  f.Value,
			Days:   NormalizeDays(f.ValidDays),
			Window: parseWindow(f.ValidStartTime, f.ValidEndTime),
		}
	default:
		return Unrecognized{Name: f.Kind}
	}
}

// FieldsOf flattens terms back into storage fields.
func FieldsOf(t Terms) Fields {
	switch v := t.(type) {
	case Percentage:
		return Fields{Kind: string(KindPercentage), Value: v.Value}
	case BulkDeal:
		return Fields{Kind: string(KindBulkDeal), BuyQuantity: v.Buy, GetQuantity: v.Get}
	case TimeBased:
		f := Fields{Kind: string(KindTimeBased), Value: v.Value, ValidDays: v.Days}
		if v.Window != nil {
			f.ValidStartTime = v.Window.Start.String()
			f.ValidEndTime = v.Window.End.String()
		}
		return f
	case Unrecognized:
		return Fields{Kind: v.Name}
	default:
		return Fields{}
	}
}

// NormalizeDays trims and lowercases weekday names, dropping blanks.
func NormalizeDays(days []string) []string {
	if len(days) == 0 {
		return nil
	}
	out := make([]string, 0, len(days))
	for _, d := range days {
		d = strings.ToLower(strings.TrimSpace(d))
		if d != "" {
			out = append(out, d)
		}
	}
	return out
}

func parseWindow(start, end string) *Window {
	if start == "" || end == "" {
		return nil
	}
	s, err := timeofday.Parse(start)
	if err != nil {
		return nil
	}
	e, err := timeofday.Parse(end)
	if err != nil {
		return nil
	}
	return &Window{Start: s, End: e}
}

// Repository provides read-only access to a venue's discount rules.
type Repository interface {
	// ListActiveByVenue returns the venue's rules flagged active, most
	// recently created first.
	ListActiveByVenue(ctx context.Context, venueID string) ([]Rule, error)
}
