package schedule

import "time"

const secondsPerDay = 24 * 60 * 60

// OverdueDays returns whole calendar days elapsed since end (taken as midnight
// UTC) for an unfinished item whose end lies strictly before now. Partial days
// are floored away, so an item that ended today reports 0.
func OverdueDays(status Status, end Date, now time.Time) int {
	if status == StatusDone || !end.Valid() {
		return 0
	}
	endAt := end.Time()
	if !endAt.Before(now) {
		return 0
	}
	days := (now.Unix() - endAt.Unix()) / secondsPerDay
	if days < 0 {
		return 0
	}
	return int(days)
}

// IsBlocked is purely the status flag, independent of dates.
func IsBlocked(status Status) bool {
	return status == StatusBlocked
}
