// Package pricing folds a venue's default discount and its active discount
// rules over a booking's base total.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/arena-booking/internal/domain/discount"
)

var hundred = decimal.NewFromInt(100)

// SingleUnit is the quantity to pass when the caller has no meaningful unit
// count for bulk deals.
var SingleUnit = decimal.NewFromInt(1)

// Quote is the result of composing discounts over a base total.
type Quote struct {
	FinalPrice decimal.Decimal
	// Savings is the sum of every applied discount amount. It is accumulated
	// step by step and is not derived from base minus final price.
	Savings          decimal.Decimal
	AppliedDiscounts []string
}

// Rounded returns q with money amounts rounded to cents, as charged and
// stored.
func (q Quote) Rounded() Quote {
	q.FinalPrice = q.FinalPrice.Round(2)
	q.Savings = q.Savings.Round(2)
	return q
}

// Compose applies defaultPct to base and then each rule in the given order,
// each step working on the running price left by the previous one.
//
// Rules must already be filtered with discount.Active; Compose does not check
// activation. Rules it cannot price (bulk deals without quantities, unknown
// kinds) are skipped. The final price is clamped at zero.
func Compose(base, defaultPct decimal.Decimal, rules []discount.Rule, quantity decimal.Decimal) Quote {
	final := base
	savings := decimal.Zero
	applied := []string{}

	if defaultPct.IsPositive() {
		s := base.Mul(defaultPct).Div(hundred)
		final = final.Sub(s)
		savings = savings.Add(s)
		applied = append(applied, DefaultLabel(defaultPct))
	}

	for _, r := range rules {
		switch t := r.Terms.(type) {
		case discount.Percentage:
			final, savings = percentOff(final, savings, t.Value)
			applied = append(applied, r.Title)
		case discount.TimeBased:
			final, savings = percentOff(final, savings, t.Value)
			applied = append(applied, r.Title)
		case discount.BulkDeal:
			if t.Buy <= 0 || t.Get <= 0 {
				continue
			}
			buy := decimal.NewFromInt(int64(t.Buy))
			if quantity.LessThan(buy) {
				continue
			}
			free := quantity.Div(buy).Floor().Mul(decimal.NewFromInt(int64(t.Get)))
			// The running price is used as the unit price without dividing by
			// quantity first.
			unit := final
			bulk := decimal.Min(free, quantity).Mul(unit)
			final = floorAtZero(final.Mul(quantity).Sub(bulk)).Div(quantity)
			savings = savings.Add(bulk)
			applied = append(applied, r.Title)
		}
	}

	return Quote{
		FinalPrice:       floorAtZero(final),
		Savings:          savings,
		AppliedDiscounts: applied,
	}
}

// DefaultLabel renders the applied-discount label for a venue default
// discount, e.g. "10% default discount".
func DefaultLabel(pct decimal.Decimal) string {
	return pct.String() + "% default discount"
}

func percentOff(final, savings, pct decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	s := final.Mul(pct).Div(hundred)
	return final.Sub(s), savings.Add(s)
}

func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}
