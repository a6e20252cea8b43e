// Package timeofday implements 24-hour "HH:MM" clock values.
package timeofday

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrInvalid is returned when a value is not a valid "HH:MM" clock time.
var ErrInvalid = errors.New("invalid time of day")

// TimeOfDay is a wall-clock time with minute precision, stored as minutes
// since midnight. Ordering of TimeOfDay values matches the lexicographic
// ordering of their zero-padded "HH:MM" forms.
type TimeOfDay int

// Parse parses "H:MM" or "HH:MM" in 24-hour notation. A trailing ":SS"
// component, as produced by SQL TIME columns, is checked and ignored. Every
// component must be plain ASCII digits.
func Parse(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, errors.Wrapf(ErrInvalid, "%q", s)
	}
	h, ok := number(parts[0], 1, 2)
	if !ok || h > 23 {
		return 0, errors.Wrapf(ErrInvalid, "%q: hour", s)
	}
	m, ok := number(parts[1], 2, 2)
	if !ok || m > 59 {
		return 0, errors.Wrapf(ErrInvalid, "%q: minute", s)
	}
	if len(parts) == 3 {
		if sec, ok := number(parts[2], 2, 2); !ok || sec > 59 {
			return 0, errors.Wrapf(ErrInvalid, "%q: second", s)
		}
	}
	return TimeOfDay(h*60 + m), nil
}

// number parses s as an unsigned decimal of minLen to maxLen ASCII digits.
func number(s string, minLen, maxLen int) (int, bool) {
	if len(s) < minLen || len(s) > maxLen {
		return 0, false
	}
	n := 0
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, false
		}
		n = n*10 + int(s[i]-'0')
	}
	return n, true
}

// MustParse is like Parse but panics on error. Intended for tests and
// static fixtures.
func MustParse(s string) TimeOfDay {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Of returns the "HH:MM" truncation of t in t's location.
func Of(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

// Minutes returns the number of minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return int(t)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}
