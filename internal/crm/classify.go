package crm

import "time"

// Priority is a task's urgency bucket.
type Priority string

// Priority buckets. Every due date maps to exactly one.
const (
	PriorityOverdue  Priority = "overdue"
	PriorityToday    Priority = "today"
	PriorityUpcoming Priority = "upcoming"
)

// Classify buckets a due date against the current day. Comparison is by
// calendar day with the time of day discarded, so a due date equal to now's
// date classifies as today regardless of either time component. Completion
// state is deliberately not an input; callers consult it separately to
// suppress priority badges.
func Classify(due, now time.Time) Priority {
	d := dayOrdinal(due)
	n := dayOrdinal(now)
	switch {
	case d < n:
		return PriorityOverdue
	case d == n:
		return PriorityToday
	}
	return PriorityUpcoming
}

// dayOrdinal folds a timestamp to a sortable yyyymmdd integer in its own
// location, making the comparison calendar-based rather than instant-based.
func dayOrdinal(t time.Time) int {
	return t.Year()*10000 + int(t.Month())*100 + t.Day()
}

// Priority parses the task's due date and classifies it. ok is false when
// the due date is empty or unparseable.
func (t Task) Priority(now time.Time) (Priority, bool) {
	if t.DueDate == "" {
		return "", false
	}
	due, err := time.Parse("2006-01-02", t.DueDate)
	if err != nil {
		due, err = time.Parse(time.RFC3339, t.DueDate)
		if err != nil {
			return "", false
		}
	}
	return Classify(due, now), true
}
