package todosrepo

import (
	"time"

	"github.com/jrazmi/allmyducks/sdk/validation"
)

// OverdueThreshold is the number of days a task of priority p may age before
// it counts as overdue.
func OverdueThreshold(p Priority) int {
	switch p {
	case PriorityHigh:
		return 1
	case PriorityLow:
		return 7
	default:
		return 3
	}
}

// AgeInDays counts whole calendar days from the task's original date to today.
func (t Task) AgeInDays(today time.Time) int {
	return validation.DaysBetween(t.OriginalDate, today)
}

// IsOverdue reports whether an incomplete task has aged past its priority
// threshold.
func (t Task) IsOverdue(today time.Time) bool {
	if t.Completed {
		return false
	}
	return t.AgeInDays(today) > OverdueThreshold(t.Priority)
}
