package schedule

import (
	"encoding/json"
	"math"
	"sort"
)

// maxAlignSteps caps the forward search of AlignToWorkingDay. When no working
// day falls inside the window, alignment returns a non-working date.
const maxAlignSteps = 14

// DefaultWorkingWeekdays is Monday through Friday (0 = Sunday).
var DefaultWorkingWeekdays = []int{1, 2, 3, 4, 5}

// Weekdays is a list of weekday numbers (0 = Sunday .. 6 = Saturday).
// Decoding is lenient: non-numeric and non-integral entries are dropped.
type Weekdays []int

func (w *Weekdays) UnmarshalJSON(data []byte) error {
	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		*w = nil
		return nil
	}
	*w = weekdaysFrom(raw)
	return nil
}

func (w *Weekdays) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw []interface{}
	if err := unmarshal(&raw); err != nil {
		*w = nil
		return nil
	}
	*w = weekdaysFrom(raw)
	return nil
}

func weekdaysFrom(raw []interface{}) Weekdays {
	out := make(Weekdays, 0, len(raw))
	for _, v := range raw {
		switch n := v.(type) {
		case float64:
			if n == math.Trunc(n) && !math.IsInf(n, 0) {
				out = append(out, int(n))
			}
		case int:
			out = append(out, n)
		}
	}
	return out
}

// CalendarConfig is the schedule-wide working calendar as stored by callers.
type CalendarConfig struct {
	WorkingWeekdays Weekdays `json:"working_weekdays,omitempty" yaml:"working_weekdays,omitempty"`
	Holidays        []string `json:"holidays,omitempty" yaml:"holidays,omitempty"`
}

// Calendar is a normalized CalendarConfig. Build it with NormalizeCalendar;
// the zero value has no working days.
type Calendar struct {
	weekdays [7]bool
	holidays map[string]struct{}
}

// NormalizeCalendar drops out-of-range weekdays and holidays that are not
// shaped YYYY-MM-DD (the shape is checked, not the date itself). An
// absent config, or one left with no valid weekday, falls back to Mon–Fri.
func NormalizeCalendar(cfg *CalendarConfig) Calendar {
	cal := Calendar{holidays: make(map[string]struct{})}

	var days []int
	if cfg != nil {
		days = cfg.WorkingWeekdays
	}
	found := false
	for _, d := range days {
		if d < 0 || d > 6 {
			continue
		}
		cal.weekdays[d] = true
		found = true
	}
	if !found {
		for _, d := range DefaultWorkingWeekdays {
			cal.weekdays[d] = true
		}
	}

	if cfg != nil {
		for _, h := range cfg.Holidays {
			if isISODate(h) {
				cal.holidays[h] = struct{}{}
			}
		}
	}
	return cal
}

// WorkingWeekdays returns the working weekday numbers in ascending order.
func (c Calendar) WorkingWeekdays() []int {
	out := make([]int, 0, 7)
	for d, ok := range c.weekdays {
		if ok {
			out = append(out, d)
		}
	}
	return out
}

// Holidays returns the holiday set sorted ascending.
func (c Calendar) Holidays() []string {
	out := make([]string, 0, len(c.holidays))
	for h := range c.holidays {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

// Config converts the calendar back into its canonical stored form.
func (c Calendar) Config() CalendarConfig {
	return CalendarConfig{
		WorkingWeekdays: c.WorkingWeekdays(),
		Holidays:        c.Holidays(),
	}
}

// IsWorkingDay reports whether d is neither a holiday nor outside the working
// weekdays. Absent dates are never working days.
func (c Calendar) IsWorkingDay(d Date) bool {
	if !d.Valid() {
		return false
	}
	if _, holiday := c.holidays[d.String()]; holiday {
		return false
	}
	return c.weekdays[d.Weekday()]
}

// AlignToWorkingDay returns d when it is a working day, otherwise the first
// working day after it. The search stops after maxAlignSteps calendar days and
// then returns the last date examined.
func (c Calendar) AlignToWorkingDay(d Date) Date {
	if !d.Valid() {
		return d
	}
	cur := d
	for i := 0; i < maxAlignSteps && !c.IsWorkingDay(cur); i++ {
		cur = cur.AddDays(1)
	}
	return cur
}

// AddBusinessDays aligns d to a working day and then moves forward n working
// days. n <= 0 returns the aligned date itself, so AddBusinessDays(d, 1) is
// always strictly after the aligned d. The walk is not capped: a normalized
// calendar has a working weekday and finitely many holidays, so it ends.
func (c Calendar) AddBusinessDays(d Date, n int) Date {
	cur := c.AlignToWorkingDay(d)
	if n <= 0 || !cur.Valid() || !c.hasWorkingWeekday() {
		return cur
	}
	for added := 0; added < n; {
		cur = cur.AddDays(1)
		if c.IsWorkingDay(cur) {
			added++
		}
	}
	return cur
}

// hasWorkingWeekday is false only for the zero Calendar.
func (c Calendar) hasWorkingWeekday() bool {
	for _, ok := range c.weekdays {
		if ok {
			return true
		}
	}
	return false
}
