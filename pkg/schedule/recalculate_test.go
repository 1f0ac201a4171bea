package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fixedNow is well before every date used below unless a test says otherwise.
var fixedNow = time.Date(2023, time.June, 1, 9, 0, 0, 0, time.UTC)

func updateByID(t *testing.T, res Result, id string) Update {
	t.Helper()
	for _, u := range res.Updates {
		if u.ID == id {
			return u
		}
	}
	require.FailNow(t, "missing update", "id %s", id)
	return Update{}
}

func TestRecalculateDefaultCalendarNoDependencies(t *testing.T) {
	items := []Item{
		{ID: "a", Status: StatusPending, PlannedDurationDays: 3, PlannedStartDate: d("2024-01-01")},
	}
	res := RecalculateAt(fixedNow, items, nil, nil)

	u := updateByID(t, res, "a")
	assert.Equal(t, "2024-01-01", u.PlannedStartDate.String())
	assert.Equal(t, "2024-01-03", u.PlannedEndDate.String())
	assert.Equal(t, 3, u.PlannedDurationDays)
}

func TestRecalculateSkipsWeekendsInDuration(t *testing.T) {
	items := []Item{
		{ID: "fri", PlannedDurationDays: 3, PlannedStartDate: d("2024-01-05")},
		{ID: "sat", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-06")},
	}
	res := RecalculateAt(fixedNow, items, nil, nil)

	fri := updateByID(t, res, "fri")
	assert.Equal(t, "2024-01-05", fri.PlannedStartDate.String())
	assert.Equal(t, "2024-01-09", fri.PlannedEndDate.String())

	sat := updateByID(t, res, "sat")
	assert.Equal(t, "2024-01-08", sat.PlannedStartDate.String(), "start aligns to monday")
	assert.Equal(t, "2024-01-08", sat.PlannedEndDate.String())
}

func TestRecalculateHolidayAlignment(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-01")},
	}
	res := RecalculateAt(fixedNow, items, nil, &CalendarConfig{Holidays: []string{"2024-01-01"}})

	u := updateByID(t, res, "a")
	assert.Equal(t, "2024-01-02", u.PlannedStartDate.String())
	assert.Equal(t, "2024-01-02", u.PlannedEndDate.String())
}

func TestRecalculateDependencyLagZeroOverlapsSameDay(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedDurationDays: 3, PlannedStartDate: d("2024-01-01"), PlannedEndDate: d("2024-01-03")},
		{ID: "b", PlannedDurationDays: 2},
	}
	deps := []Dependency{{PredecessorID: "a", SuccessorID: "b", LagDays: 0, Type: FinishToStart}}
	res := RecalculateAt(fixedNow, items, deps, nil)

	a := updateByID(t, res, "a")
	assert.Equal(t, "2024-01-03", a.PlannedEndDate.String())

	b := updateByID(t, res, "b")
	assert.Equal(t, "2024-01-03", b.PlannedStartDate.String(), "lag 0 starts on the day the predecessor ends")
	assert.Equal(t, "2024-01-04", b.PlannedEndDate.String())
}

func TestRecalculateDependencyLagInBusinessDays(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedStartDate: d("2024-01-05"), PlannedEndDate: d("2024-01-05")},
		{ID: "b", PlannedDurationDays: 1},
		{ID: "c", PlannedDurationDays: 1},
	}
	deps := []Dependency{
		{PredecessorID: "a", SuccessorID: "b", LagDays: 2, Type: FinishToStart},
		{PredecessorID: "a", SuccessorID: "c", LagDays: -4, Type: FinishToStart},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)

	assert.Equal(t, "2024-01-09", updateByID(t, res, "b").PlannedStartDate.String())
	assert.Equal(t, "2024-01-05", updateByID(t, res, "c").PlannedStartDate.String(), "negative lag never pulls before the aligned end")
}

func TestRecalculateDependenciesOnlyPushLater(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedEndDate: d("2024-01-03")},
		{ID: "late", PlannedDurationDays: 2, PlannedStartDate: d("2024-01-15")},
		{ID: "early", PlannedDurationDays: 2, PlannedStartDate: d("2024-01-01")},
	}
	deps := []Dependency{
		{PredecessorID: "a", SuccessorID: "late", Type: FinishToStart},
		{PredecessorID: "a", SuccessorID: "early", Type: FinishToStart},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)

	assert.Equal(t, "2024-01-15", updateByID(t, res, "late").PlannedStartDate.String())
	assert.Equal(t, "2024-01-03", updateByID(t, res, "early").PlannedStartDate.String())
	assert.Equal(t, "2024-01-04", updateByID(t, res, "early").PlannedEndDate.String())
}

func TestRecalculateTakesLatestPredecessor(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedEndDate: d("2024-01-03")},
		{ID: "b", PlannedEndDate: d("2024-01-10")},
		{ID: "c", PlannedDurationDays: 1},
	}
	deps := []Dependency{
		{PredecessorID: "a", SuccessorID: "c", LagDays: 1, Type: FinishToStart},
		{PredecessorID: "b", SuccessorID: "c", LagDays: 0, Type: FinishToStart},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)
	assert.Equal(t, "2024-01-10", updateByID(t, res, "c").PlannedStartDate.String())
}

func TestRecalculateSingleHopPropagation(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-10"), PlannedEndDate: d("2024-01-10")},
		{ID: "b", PlannedDurationDays: 2, PlannedStartDate: d("2024-01-02"), PlannedEndDate: d("2024-01-03")},
		{ID: "c", PlannedDurationDays: 1},
	}
	deps := []Dependency{
		{PredecessorID: "a", SuccessorID: "b", Type: FinishToStart},
		{PredecessorID: "b", SuccessorID: "c", LagDays: 1, Type: FinishToStart},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)

	b := updateByID(t, res, "b")
	assert.Equal(t, "2024-01-10", b.PlannedStartDate.String())
	assert.Equal(t, "2024-01-11", b.PlannedEndDate.String())

	c := updateByID(t, res, "c")
	assert.Equal(t, "2024-01-04", c.PlannedStartDate.String(), "c reads b's stored end, not the recomputed one")

	// Persisting b and recalculating again moves c.
	items[1].PlannedStartDate = b.PlannedStartDate
	items[1].PlannedEndDate = b.PlannedEndDate
	res = RecalculateAt(fixedNow, items, deps, nil)
	assert.Equal(t, "2024-01-12", updateByID(t, res, "c").PlannedStartDate.String())
}

func TestRecalculateOrderIndependentOfTopology(t *testing.T) {
	// Successor listed first still reads the predecessor's stored end.
	items := []Item{
		{ID: "b", PlannedDurationDays: 1},
		{ID: "a", PlannedDurationDays: 5, PlannedStartDate: d("2024-01-01"), PlannedEndDate: d("2024-01-02")},
	}
	deps := []Dependency{{PredecessorID: "a", SuccessorID: "b", Type: FinishToStart}}
	res := RecalculateAt(fixedNow, items, deps, nil)

	assert.Equal(t, "b", res.Updates[0].ID)
	assert.Equal(t, "a", res.Updates[1].ID)
	assert.Equal(t, "2024-01-02", res.Updates[0].PlannedStartDate.String())
	assert.Equal(t, "2024-01-05", res.Updates[1].PlannedEndDate.String())
}

func TestRecalculateFallbackWithoutStart(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedEndDate: d("2024-02-01")},
		{ID: "b"},
	}
	res := RecalculateAt(fixedNow, items, nil, nil)

	a := updateByID(t, res, "a")
	assert.False(t, a.PlannedStartDate.Valid())
	assert.Equal(t, "2024-02-01", a.PlannedEndDate.String())

	b := updateByID(t, res, "b")
	assert.False(t, b.PlannedStartDate.Valid())
	assert.False(t, b.PlannedEndDate.Valid())
	assert.Equal(t, 1, b.PlannedDurationDays)
}

func TestRecalculateFallbackEndIsNotAligned(t *testing.T) {
	// Stored end on a Saturday passes through untouched.
	res := RecalculateAt(fixedNow, []Item{{ID: "a", PlannedEndDate: d("2024-01-06")}}, nil, nil)
	assert.Equal(t, "2024-01-06", res.Updates[0].PlannedEndDate.String())
}

func TestRecalculateIgnoresUnusableDependencies(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedStartDate: d("2024-01-01")},
		{ID: "b", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
	}
	deps := []Dependency{
		{PredecessorID: "ghost", SuccessorID: "b", Type: FinishToStart},
		{PredecessorID: "a", SuccessorID: "b", Type: FinishToStart},
		{PredecessorID: "a", SuccessorID: "ghost", Type: FinishToStart},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)

	assert.Len(t, res.Updates, 2)
	assert.Equal(t, "2024-01-02", updateByID(t, res, "b").PlannedStartDate.String())
}

func TestRecalculateDependencyTypes(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedEndDate: d("2024-01-10")},
		{ID: "ss", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
		{ID: "ff", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
		{ID: "odd", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
		{ID: "untyped", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
	}
	deps := []Dependency{
		{PredecessorID: "a", SuccessorID: "ss", Type: StartToStart},
		{PredecessorID: "a", SuccessorID: "ff", Type: FinishToFinish, LagDays: 3},
		{PredecessorID: "a", SuccessorID: "odd", Type: "XX"},
		{PredecessorID: "a", SuccessorID: "untyped"},
	}
	res := RecalculateAt(fixedNow, items, deps, nil)

	assert.Equal(t, "2024-01-02", updateByID(t, res, "ss").PlannedStartDate.String())
	assert.Equal(t, "2024-01-02", updateByID(t, res, "ff").PlannedStartDate.String())
	assert.Equal(t, "2024-01-02", updateByID(t, res, "odd").PlannedStartDate.String())
	assert.Equal(t, "2024-01-10", updateByID(t, res, "untyped").PlannedStartDate.String(), "empty type is FS")

	require.Len(t, res.IgnoredDependencies, 3)
	assert.Equal(t, StartToStart, res.IgnoredDependencies[0].Type)
	assert.Equal(t, FinishToFinish, res.IgnoredDependencies[1].Type)
	assert.Equal(t, 3, res.IgnoredDependencies[1].LagDays, "preserved verbatim")
	assert.Equal(t, DependencyType("XX"), res.IgnoredDependencies[2].Type)
}

func TestRecalculateClampsDuration(t *testing.T) {
	items := []Item{
		{ID: "zero", PlannedDurationDays: 0, PlannedStartDate: d("2024-01-02")},
		{ID: "neg", PlannedDurationDays: -4, PlannedStartDate: d("2024-01-02")},
	}
	res := RecalculateAt(fixedNow, items, nil, nil)
	for _, u := range res.Updates {
		assert.Equal(t, 1, u.PlannedDurationDays, u.ID)
		assert.Equal(t, "2024-01-02", u.PlannedEndDate.String(), u.ID)
	}
}

func TestOverdueDays(t *testing.T) {
	now := time.Date(2024, time.January, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, 5, OverdueDays(StatusPending, d("2024-01-05"), now))
	assert.Equal(t, 5, OverdueDays(StatusBlocked, d("2024-01-05"), now))
	assert.Equal(t, 0, OverdueDays(StatusDone, d("2024-01-05"), now))
	assert.Equal(t, 0, OverdueDays(StatusPending, Date{}, now))
	assert.Equal(t, 0, OverdueDays(StatusPending, d("2024-01-10"), now), "ends today, less than a day elapsed")
	assert.Equal(t, 0, OverdueDays(StatusPending, d("2024-01-11"), now))
	assert.Equal(t, 1, OverdueDays(StatusInProgress, d("2024-01-09"), now))
}

func TestRecalculateClassifiesDelayAndBlocked(t *testing.T) {
	now := time.Date(2024, time.January, 20, 8, 0, 0, 0, time.UTC)
	items := []Item{
		{ID: "late", Status: StatusInProgress, PlannedDurationDays: 2, PlannedStartDate: d("2024-01-08")},
		{ID: "done", Status: StatusDone, PlannedDurationDays: 2, PlannedStartDate: d("2024-01-08")},
		{ID: "blocked", Status: StatusBlocked, PlannedDurationDays: 1, PlannedStartDate: d("2024-02-01")},
		{ID: "both", Status: StatusBlocked, PlannedDurationDays: 1, PlannedStartDate: d("2024-01-15")},
		{ID: "future", Status: StatusPending, PlannedDurationDays: 5, PlannedStartDate: d("2024-03-04")},
	}
	res := RecalculateAt(now, items, nil, nil)

	assert.Equal(t, 11, updateByID(t, res, "late").OverdueDays)
	assert.Equal(t, 0, updateByID(t, res, "done").OverdueDays)
	assert.Equal(t, 0, updateByID(t, res, "blocked").OverdueDays)
	assert.Equal(t, 5, updateByID(t, res, "both").OverdueDays)

	s := res.Summary
	assert.Equal(t, 5, s.TotalItems)
	assert.Equal(t, 2, s.DelayedItemCount)
	assert.Equal(t, 2, s.BlockedItemCount)
	assert.Equal(t, []string{"blocked", "both", "late"}, s.CriticalItemIDs)
	assert.Equal(t, "2024-03-08", s.ProjectedEndDate.String())
}

func TestSummaryBlockedWithoutDelayIsCritical(t *testing.T) {
	items := []Item{{ID: "x", Status: StatusBlocked, PlannedDurationDays: 1, PlannedStartDate: d("2030-01-01")}}
	res := RecalculateAt(fixedNow, items, nil, nil)

	assert.Equal(t, 0, res.Updates[0].OverdueDays)
	assert.Equal(t, []string{"x"}, res.Summary.CriticalItemIDs)
}

func TestSummaryEmptyInput(t *testing.T) {
	res := RecalculateAt(fixedNow, nil, nil, nil)

	assert.Empty(t, res.Updates)
	assert.NotNil(t, res.Summary.CriticalItemIDs)
	assert.Equal(t, 0, res.Summary.TotalItems)
	assert.False(t, res.Summary.ProjectedEndDate.Valid())
}

func TestSummaryProjectedEndIncludesFallbackEnds(t *testing.T) {
	items := []Item{
		{ID: "a", PlannedDurationDays: 1, PlannedStartDate: d("2024-01-02")},
		{ID: "b", PlannedEndDate: d("2024-06-30")},
	}
	res := RecalculateAt(fixedNow, items, nil, nil)
	assert.Equal(t, "2024-06-30", res.Summary.ProjectedEndDate.String())
}

func TestRecalculateDoesNotMutateInputs(t *testing.T) {
	items := []Item{
		{ID: "a", Status: StatusPending, PlannedDurationDays: 0, PlannedStartDate: d("2024-01-06"), PlannedEndDate: d("2024-01-01")},
		{ID: "b", Status: StatusBlocked, PlannedDurationDays: 2},
	}
	deps := []Dependency{{PredecessorID: "a", SuccessorID: "b"}}
	cfg := &CalendarConfig{WorkingWeekdays: Weekdays{8}, Holidays: []string{"junk"}}

	itemsCopy := append([]Item(nil), items...)
	depsCopy := append([]Dependency(nil), deps...)

	_ = RecalculateAt(fixedNow, items, deps, cfg)

	assert.Equal(t, itemsCopy, items)
	assert.Equal(t, depsCopy, deps)
	assert.Equal(t, Weekdays{8}, cfg.WorkingWeekdays)
	assert.Equal(t, []string{"junk"}, cfg.Holidays)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	items := []Item{
		{ID: "a", Status: StatusInProgress, PlannedDurationDays: 4, PlannedStartDate: d("2024-01-01"), PlannedEndDate: d("2024-01-04")},
		{ID: "b", Status: StatusPending, PlannedDurationDays: 2, PlannedStartDate: d("2024-01-04"), PlannedEndDate: d("2024-01-05")},
		{ID: "c", Status: StatusBlocked, PlannedEndDate: d("2024-01-20")},
	}
	deps := []Dependency{{PredecessorID: "a", SuccessorID: "b", Type: FinishToStart}}
	now := time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

	first := RecalculateAt(now, items, deps, nil)
	second := RecalculateAt(now, items, deps, nil)
	assert.Equal(t, first, second)
}

func TestRecalculateEndSkipsLongRecess(t *testing.T) {
	var holidays []string
	for day := d("2024-12-23"); !day.After(d("2025-01-10")); day = day.AddDays(1) {
		holidays = append(holidays, day.String())
	}
	cal := &CalendarConfig{Holidays: holidays}

	items := []Item{
		{ID: "pour", PlannedDurationDays: 2, PlannedStartDate: d("2024-12-20"), PlannedEndDate: d("2025-01-13")},
		{ID: "cure", PlannedDurationDays: 1},
	}
	deps := []Dependency{{PredecessorID: "pour", SuccessorID: "cure", LagDays: 1, Type: FinishToStart}}
	res := RecalculateAt(fixedNow, items, deps, cal)

	pour := updateByID(t, res, "pour")
	assert.Equal(t, "2025-01-13", pour.PlannedEndDate.String())

	cure := updateByID(t, res, "cure")
	assert.Equal(t, "2025-01-14", cure.PlannedStartDate.String())
	assert.Equal(t, "2025-01-14", cure.PlannedEndDate.String())
	assert.Equal(t, "2025-01-14", res.Summary.ProjectedEndDate.String())
}
