package schedule

import (
	"encoding/json"
	"time"
)

// DateLayout is the only accepted wire form for calendar dates.
const DateLayout = "2006-01-02"

// Date is a calendar date with no time component, anchored at midnight UTC.
// The zero value means "absent".
type Date struct {
	t     time.Time
	valid bool
}

// NewDate builds a Date from its parts. Out-of-range parts are normalized the
// same way time.Date normalizes them.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), valid: true}
}

// DateOf returns the calendar date of t as seen in t's own location.
func DateOf(t time.Time) Date {
	if t.IsZero() {
		return Date{}
	}
	y, m, d := t.Date()
	return NewDate(y, m, d)
}

// ParseDate parses a strict YYYY-MM-DD string. Anything else, including
// impossible dates like 2024-02-30, yields an absent Date.
func ParseDate(s string) Date {
	if !isISODate(s) {
		return Date{}
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}
	}
	return Date{t: t, valid: true}
}

func isISODate(s string) bool {
	if len(s) != len(DateLayout) {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i == 4 || i == 7 {
			if c != '-' {
				return false
			}
			continue
		}
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Valid reports whether the date is present.
func (d Date) Valid() bool { return d.valid }

// Time returns midnight UTC of the date, or the zero time when absent.
func (d Date) Time() time.Time {
	if !d.valid {
		return time.Time{}
	}
	return d.t
}

// Weekday of a present date. Absent dates report Sunday.
func (d Date) Weekday() time.Weekday { return d.t.Weekday() }

// AddDays shifts the date by n calendar days. Absent dates stay absent.
func (d Date) AddDays(n int) Date {
	if !d.valid {
		return d
	}
	return Date{t: d.t.AddDate(0, 0, n), valid: true}
}

// Before reports whether d is strictly earlier than o. Absent dates are never
// before or after anything.
func (d Date) Before(o Date) bool {
	return d.valid && o.valid && d.t.Before(o.t)
}

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool {
	return d.valid && o.valid && d.t.After(o.t)
}

// Equal reports whether both dates are absent or both name the same day.
func (d Date) Equal(o Date) bool {
	if d.valid != o.valid {
		return false
	}
	return !d.valid || d.t.Equal(o.t)
}

// String renders YYYY-MM-DD, or "" when absent.
func (d Date) String() string {
	if !d.valid {
		return ""
	}
	return d.t.Format(DateLayout)
}

// Ptr returns midnight UTC of the date, or nil when absent. Used for
// nullable date columns.
func (d Date) Ptr() *time.Time {
	if !d.valid {
		return nil
	}
	t := d.t
	return &t
}

// laterOf picks the later of two possibly-absent dates.
func laterOf(a, b Date) Date {
	switch {
	case !a.valid:
		return b
	case !b.valid:
		return a
	case b.t.After(a.t):
		return b
	default:
		return a
	}
}

func (d Date) MarshalJSON() ([]byte, error) {
	if !d.valid {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON never fails: null, non-strings and malformed strings all
// decode to an absent Date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}

func (d Date) MarshalYAML() (interface{}, error) {
	if !d.valid {
		return nil, nil
	}
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		*d = Date{}
		return nil
	}
	*d = ParseDate(s)
	return nil
}
