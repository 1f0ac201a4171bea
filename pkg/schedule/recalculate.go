// Package schedule recomputes planned dates of schedule items under a
// working-day calendar, classifies overdue and blocked items and summarizes
// the result.
//
// Everything here is a pure function of its arguments: no I/O, no globals,
// no caching. Concurrent calls never interfere.
//
// Propagation is single-hop. Successors read their predecessors' stored end
// dates, not the ones computed in the same call, so a chain A -> B -> C needs
// the caller to persist the result and recalculate again before C moves.
package schedule

import "time"

// Recalculate runs RecalculateAt with the current wall clock.
func Recalculate(items []Item, deps []Dependency, cfg *CalendarConfig) Result {
	return RecalculateAt(time.Now(), items, deps, cfg)
}

// RecalculateAt recomputes every item against the calendar and classifies
// overdue items relative to now. It never fails and never modifies its inputs.
func RecalculateAt(now time.Time, items []Item, deps []Dependency, cfg *CalendarConfig) Result {
	cal := NormalizeCalendar(cfg)

	index := make(map[string]Item, len(items))
	for _, it := range items {
		index[it.ID] = it
	}
	incoming, ignored := splitDependencies(deps)

	updates := make([]Update, 0, len(items))
	for _, it := range items {
		start, end := planItem(it, index, incoming[it.ID], cal)
		updates = append(updates, Update{
			ID:                  it.ID,
			PlannedStartDate:    start,
			PlannedEndDate:      end,
			PlannedDurationDays: it.Duration(),
			OverdueDays:         OverdueDays(it.Status, end, now),
		})
	}

	return Result{
		Updates:             updates,
		Summary:             Summarize(items, updates),
		IgnoredDependencies: ignored,
	}
}

// splitDependencies groups FS links by successor. Links of any other type
// are returned separately and take no part in the computation.
func splitDependencies(deps []Dependency) (map[string][]Dependency, []Dependency) {
	incoming := make(map[string][]Dependency)
	var ignored []Dependency
	for _, d := range deps {
		switch d.Type.Normalize() {
		case FinishToStart:
			incoming[d.SuccessorID] = append(incoming[d.SuccessorID], d)
		case StartToStart, FinishToFinish:
			// not evaluated yet
			ignored = append(ignored, d)
		default:
			ignored = append(ignored, d)
		}
	}
	return incoming, ignored
}

// planItem computes one item's start and end. Predecessors are read from the
// original index, so their stored end date is used even if an earlier
// iteration moved them.
func planItem(it Item, index map[string]Item, incoming []Dependency, cal Calendar) (Date, Date) {
	start := it.PlannedStartDate
	for _, dep := range incoming {
		pred, ok := index[dep.PredecessorID]
		if !ok || !pred.PlannedEndDate.Valid() {
			continue
		}
		start = laterOf(start, cal.AddBusinessDays(pred.PlannedEndDate, dep.LagDays))
	}

	if !start.Valid() {
		return Date{}, it.PlannedEndDate
	}
	start = cal.AlignToWorkingDay(start)
	return start, cal.AddBusinessDays(start, it.Duration()-1)
}
