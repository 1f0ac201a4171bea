package schedule

// Status is the lifecycle state of a schedule item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusBlocked    Status = "blocked"
)

// IsValid reports whether s is one of the known statuses.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusBlocked:
		return true
	default:
		return false
	}
}

// DependencyType is the link type between two items.
type DependencyType string

const (
	FinishToStart  DependencyType = "FS"
	StartToStart   DependencyType = "SS"
	FinishToFinish DependencyType = "FF"
)

// Normalize maps the empty type to FS. Other values are returned verbatim.
func (t DependencyType) Normalize() DependencyType {
	if t == "" {
		return FinishToStart
	}
	return t
}

// IsValid reports whether t (after Normalize) is a declared type.
func (t DependencyType) IsValid() bool {
	switch t.Normalize() {
	case FinishToStart, StartToStart, FinishToFinish:
		return true
	default:
		return false
	}
}

// Item is a task or milestone as stored by the caller.
type Item struct {
	ID                  string `json:"id" yaml:"id"`
	Status              Status `json:"status" yaml:"status"`
	PlannedDurationDays int    `json:"planned_duration_days" yaml:"planned_duration_days"`
	PlannedStartDate    Date   `json:"planned_start_date" yaml:"planned_start_date"`
	PlannedEndDate      Date   `json:"planned_end_date" yaml:"planned_end_date"`
}

// Duration is the planned duration clamped to at least one day.
func (it Item) Duration() int {
	if it.PlannedDurationDays < 1 {
		return 1
	}
	return it.PlannedDurationDays
}

// Dependency is a directed link predecessor -> successor.
type Dependency struct {
	PredecessorID string         `json:"predecessor_id" yaml:"predecessor_id"`
	SuccessorID   string         `json:"successor_id" yaml:"successor_id"`
	LagDays       int            `json:"lag_days" yaml:"lag_days"`
	Type          DependencyType `json:"type" yaml:"type"`
}

// Update is the recomputed state of one input item.
type Update struct {
	ID                  string `json:"id" yaml:"id"`
	PlannedStartDate    Date   `json:"planned_start_date" yaml:"planned_start_date"`
	PlannedEndDate      Date   `json:"planned_end_date" yaml:"planned_end_date"`
	PlannedDurationDays int    `json:"planned_duration_days" yaml:"planned_duration_days"`
	OverdueDays         int    `json:"overdue_days" yaml:"overdue_days"`
}

// Summary aggregates one recalculation.
type Summary struct {
	TotalItems       int      `json:"total_items" yaml:"total_items"`
	DelayedItemCount int      `json:"delayed_item_count" yaml:"delayed_item_count"`
	BlockedItemCount int      `json:"blocked_item_count" yaml:"blocked_item_count"`
	CriticalItemIDs  []string `json:"critical_item_ids" yaml:"critical_item_ids"`
	ProjectedEndDate Date     `json:"projected_end_date" yaml:"projected_end_date"`
}

// Result is the output of Recalculate. Updates are in input item order.
// IgnoredDependencies lists links that were accepted but not evaluated
// (SS, FF and unknown types).
type Result struct {
	Updates             []Update     `json:"updates" yaml:"updates"`
	Summary             Summary      `json:"summary" yaml:"summary"`
	IgnoredDependencies []Dependency `json:"ignored_dependencies,omitempty" yaml:"ignored_dependencies,omitempty"`
}
