package schedule

// Summarize reduces per-item updates into schedule-level counts. Critical ids
// list blocked items first, then delayed ones, each id at most once.
func Summarize(items []Item, updates []Update) Summary {
	s := Summary{
		TotalItems:      len(items),
		CriticalItemIDs: []string{},
	}

	seen := make(map[string]struct{}, len(items))
	addCritical := func(id string) {
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		s.CriticalItemIDs = append(s.CriticalItemIDs, id)
	}

	for _, it := range items {
		if IsBlocked(it.Status) {
			s.BlockedItemCount++
			addCritical(it.ID)
		}
	}
	for _, u := range updates {
		if u.OverdueDays > 0 {
			s.DelayedItemCount++
			addCritical(u.ID)
		}
		s.ProjectedEndDate = laterOf(s.ProjectedEndDate, u.PlannedEndDate)
	}
	return s
}
