package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/xenking/arena-booking/internal/domain/discount"
)

func d(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func pct(title, value string) discount.Rule {
	return discount.Rule{Title: title, Active: true, Terms: discount.Percentage{Value: d(value)}}
}

func bulk(title string, buy, get int) discount.Rule {
	return discount.Rule{Title: title, Active: true, Terms: discount.BulkDeal{Buy: buy, Get: get}}
}

func timed(title, value string) discount.Rule {
	return discount.Rule{Title: title, Active: true, Terms: discount.TimeBased{Value: d(value), Days: []string{"friday"}}}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, d(want).Equal(got), "want %s, got %s", want, got)
}

func TestCompose(t *testing.T) {
	tests := []struct {
		name        string
		base        string
		defaultPct  string
		rules       []discount.Rule
		quantity    string
		wantFinal   string
		wantSavings string
		wantApplied []string
	}{
		{
			name:        "no discounts",
			base:        "100",
			defaultPct:  "0",
			quantity:    "4",
			wantFinal:   "100",
			wantSavings: "0",
			wantApplied: []string{},
		},
		{
			name:        "default then percentage",
			base:        "100",
			defaultPct:  "10",
			rules:       []discount.Rule{pct("Happy Hour", "20")},
			quantity:    "1",
			wantFinal:   "72",
			wantSavings: "28",
			wantApplied: []string{"10% default discount", "Happy Hour"},
		},
		{
			name:        "fractional default label",
			base:        "200",
			defaultPct:  "12.5",
			quantity:    "1",
			wantFinal:   "175",
			wantSavings: "25",
			wantApplied: []string{"12.5% default discount"},
		},
		{
			name:        "negative default ignored",
			base:        "50",
			defaultPct:  "-5",
			quantity:    "1",
			wantFinal:   "50",
			wantSavings: "0",
			wantApplied: []string{},
		},
		{
			name:        "time based priced as percentage",
			base:        "80",
			defaultPct:  "0",
			rules:       []discount.Rule{timed("Friday Night", "25")},
			quantity:    "2",
			wantFinal:   "60",
			wantSavings: "20",
			wantApplied: []string{"Friday Night"},
		},
		{
			name:        "bulk deal uses running total as unit price",
			base:        "90",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("3for2", 3, 1)},
			quantity:    "3",
			wantFinal:   "60",
			wantSavings: "90",
			wantApplied: []string{"3for2"},
		},
		{
			name:        "bulk deal below threshold",
			base:        "50",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("2+1", 2, 1)},
			quantity:    "1",
			wantFinal:   "50",
			wantSavings: "0",
			wantApplied: []string{},
		},
		{
			name:        "bulk deal at threshold",
			base:        "100",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("2+1", 2, 1)},
			quantity:    "2",
			wantFinal:   "50",
			wantSavings: "100",
			wantApplied: []string{"2+1"},
		},
		{
			name:        "bulk deal floors free units",
			base:        "250",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("2+1", 2, 1)},
			quantity:    "5",
			wantFinal:   "150",
			wantSavings: "500",
			wantApplied: []string{"2+1"},
		},
		{
			name:        "bulk free units capped at quantity",
			base:        "10",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("generous", 1, 5)},
			quantity:    "2",
			wantFinal:   "0",
			wantSavings: "20",
			wantApplied: []string{"generous"},
		},
		{
			name:        "bulk deal with fractional quantity",
			base:        "75",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("2+1", 2, 1)},
			quantity:    "2.5",
			wantFinal:   "45",
			wantSavings: "75",
			wantApplied: []string{"2+1"},
		},
		{
			name:        "bulk deal without quantities skipped",
			base:        "100",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("broken", 0, 1), bulk("broken", 2, 0)},
			quantity:    "10",
			wantFinal:   "100",
			wantSavings: "0",
			wantApplied: []string{},
		},
		{
			name:       "unrecognized kind skipped",
			base:       "100",
			defaultPct: "0",
			rules: []discount.Rule{
				{Title: "Loyalty", Active: true, Terms: discount.Unrecognized{Name: "loyalty"}},
				{Title: "Empty", Active: true},
				pct("Ten", "10"),
			},
			quantity:    "1",
			wantFinal:   "90",
			wantSavings: "10",
			wantApplied: []string{"Ten"},
		},
		{
			name:        "over one hundred percent clamps final price",
			base:        "100",
			defaultPct:  "0",
			rules:       []discount.Rule{pct("Oops", "150")},
			quantity:    "1",
			wantFinal:   "0",
			wantSavings: "150",
			wantApplied: []string{"Oops"},
		},
		{
			name:        "zero quantity leaves bulk deal inert",
			base:        "100",
			defaultPct:  "0",
			rules:       []discount.Rule{bulk("2+1", 2, 1)},
			quantity:    "0",
			wantFinal:   "100",
			wantSavings: "0",
			wantApplied: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Compose(d(tt.base), d(tt.defaultPct), tt.rules, d(tt.quantity))
			assertDecimal(t, tt.wantFinal, q.FinalPrice)
			assertDecimal(t, tt.wantSavings, q.Savings)
			assert.Equal(t, tt.wantApplied, q.AppliedDiscounts)
		})
	}
}

func TestCompose_NeverNegativeAndNeverAboveBase(t *testing.T) {
	ruleSets := [][]discount.Rule{
		{pct("a", "10")},
		{pct("a", "99"), pct("b", "99")},
		{bulk("b", 1, 1), pct("c", "50")},
		{pct("c", "100"), bulk("b", 2, 3)},
		{timed("t", "300")},
	}
	bases := []string{"0", "0.01", "19.99", "100", "12345.67"}
	quantities := []string{"1", "2", "3.5", "10"}

	for _, rules := range ruleSets {
		for _, base := range bases {
			for _, qty := range quantities {
				q := Compose(d(base), d("5"), rules, d(qty))
				assert.False(t, q.FinalPrice.IsNegative(), "base %s qty %s", base, qty)
				assert.True(t, q.FinalPrice.LessThanOrEqual(d(base)), "base %s qty %s", base, qty)
				assert.False(t, q.Savings.IsNegative(), "base %s qty %s", base, qty)
			}
		}
	}
}

func TestCompose_PercentagesStackMultiplicatively(t *testing.T) {
	ab := Compose(d("100"), decimal.Zero, []discount.Rule{pct("A", "10"), pct("B", "25")}, SingleUnit)
	ba := Compose(d("100"), decimal.Zero, []discount.Rule{pct("B", "25"), pct("A", "10")}, SingleUnit)

	// 100 * 0.9 * 0.75, not 100 * (1 - 0.35).
	assertDecimal(t, "67.5", ab.FinalPrice)
	assert.True(t, ab.FinalPrice.Sub(ba.FinalPrice).Abs().LessThan(d("0.000001")))
	assert.Equal(t, []string{"A", "B"}, ab.AppliedDiscounts)
	assert.Equal(t, []string{"B", "A"}, ba.AppliedDiscounts)
}

func TestCompose_BulkAndPercentageOrderMatters(t *testing.T) {
	rules := []discount.Rule{pct("Ten", "10"), bulk("2+1", 2, 1)}
	pctFirst := Compose(d("100"), decimal.Zero, rules, d("2"))
	bulkFirst := Compose(d("100"), decimal.Zero, []discount.Rule{rules[1], rules[0]}, d("2"))

	assertDecimal(t, "45", pctFirst.FinalPrice)
	assertDecimal(t, "100", pctFirst.Savings)

	assertDecimal(t, "45", bulkFirst.FinalPrice)
	assertDecimal(t, "105", bulkFirst.Savings)
}

func TestQuote_Rounded(t *testing.T) {
	q := Compose(d("10"), decimal.Zero, []discount.Rule{pct("Third", "33.333")}, SingleUnit)
	r := q.Rounded()

	assertDecimal(t, "6.6667", q.FinalPrice)
	assertDecimal(t, "6.67", r.FinalPrice)
	assertDecimal(t, "3.33", r.Savings)
	assert.Equal(t, q.AppliedDiscounts, r.AppliedDiscounts)
}

func TestDefaultLabel(t *testing.T) {
	assert.Equal(t, "10% default discount", DefaultLabel(d("10.00")))
	assert.Equal(t, "7.5% default discount", DefaultLabel(d("7.5")))
}
