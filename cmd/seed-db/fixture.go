package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/xenking/arena-booking/internal/domain/discount"
	"github.com/xenking/arena-booking/internal/domain/venue"
)

type fixtureFile struct {
	Venues []venueYAML `yaml:"venues"`
}

type venueYAML struct {
	ID                        string     `yaml:"id"`
	Name                      string     `yaml:"name"`
	DefaultDiscountPercentage string     `yaml:"defaultDiscountPercentage"`
	Timezone                  string     `yaml:"timezone"`
	Rules                     []ruleYAML `yaml:"rules"`
}

type ruleYAML struct {
	ID             string   `yaml:"id"`
	Kind           string   `yaml:"kind"`
	Title          string   `yaml:"title"`
	Description    string   `yaml:"description"`
	Value          string   `yaml:"value"`
	BuyQuantity    int      `yaml:"buyQuantity"`
	GetQuantity    int      `yaml:"getQuantity"`
	ValidDays      []string `yaml:"validDays"`
	ValidStartTime string   `yaml:"validStartTime"`
	ValidEndTime   string   `yaml:"validEndTime"`
	// Inactive rules are stored but never applied.
	Inactive bool `yaml:"inactive"`
}

// seedVenue is one venue with the rules to store for it.
type seedVenue struct {
	Venue venue.Venue
	Rules []discount.Rule
}

// parseFixture decodes a YAML fixture. Rules are given descending creation
// times in file order so the first listed rule is applied first.
func parseFixture(data []byte, now time.Time) ([]seedVenue, error) {
	var f fixtureFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "parse fixture")
	}

	out := make([]seedVenue, 0, len(f.Venues))
	for _, v := range f.Venues {
		if v.ID == "" {
			return nil, errors.New("venue without id")
		}
		pct, err := parseDecimal(v.DefaultDiscountPercentage)
		if err != nil {
			return nil, errors.Wrapf(err, "venue %s default discount", v.ID)
		}
		sv := seedVenue{Venue: venue.Venue{
			ID:                        v.ID,
			Name:                      v.Name,
			DefaultDiscountPercentage: pct,
			Timezone:                  v.Timezone,
		}}
		if _, err := sv.Venue.Location(); err != nil {
			return nil, errors.Wrapf(err, "venue %s", v.ID)
		}

		for i, r := range v.Rules {
			if r.ID == "" {
				return nil, errors.Errorf("venue %s: rule %d without id", v.ID, i)
			}
			value, err := parseDecimal(r.Value)
			if err != nil {
				return nil, errors.Wrapf(err, "rule %s value", r.ID)
			}
			sv.Rules = append(sv.Rules, discount.Rule{
				ID:          r.ID,
				VenueID:     v.ID,
				Title:       r.Title,
				Description: r.Description,
				Active:      !r.Inactive,
				Terms: discount.TermsFrom(discount.Fields{
					Kind:           r.Kind,
					Value:          value,
					BuyQuantity:    r.BuyQuantity,
					GetQuantity:    r.GetQuantity,
					ValidDays:      r.ValidDays,
					ValidStartTime: r.ValidStartTime,
					ValidEndTime:   r.ValidEndTime,
				}),
				CreatedAt: now.Add(-time.Duration(i) * time.Second),
			})
		}
		out = append(out, sv)
	}
	return out, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
