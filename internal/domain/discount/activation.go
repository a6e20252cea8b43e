package discount

import (
	"slices"
	"strings"
	"time"

	"github.com/xenking/arena-booking/internal/domain/timeofday"
)

// IsActive reports whether rule applies at now. The weekday and time of day
// are taken in now's location, so callers convert to the venue timezone
// first.
func IsActive(rule Rule, now time.Time) bool {
	if !rule.Active {
		return false
	}

	switch t := rule.Terms.(type) {
	case Percentage, BulkDeal:
		return true
	case TimeBased:
		if len(t.Days) > 0 && !slices.Contains(t.Days, weekday(now)) {
			return false
		}
		if t.Window != nil {
			cur := timeofday.Of(now)
			if cur < t.Window.Start || cur > t.Window.End {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Active returns the rules that apply at now, preserving their order.
func Active(rules []Rule, now time.Time) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		if IsActive(r, now) {
			out = append(out, r)
		}
	}
	return out
}

func weekday(t time.Time) string {
	return strings.ToLower(t.Weekday().String())
}
