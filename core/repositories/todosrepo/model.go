package todosrepo

import (
	"fmt"
	"strings"
	"time"
)

// MaxContentLength bounds task content after trimming.
const MaxContentLength = 2000

// Priority ranks a task. Unknown values behave like PriorityMedium.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the valid priorities from lowest to highest.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// ParsePriority parses a case insensitive priority name.
func ParsePriority(s string) (Priority, error) {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("priority must be one of low, medium, high: got %q", s)
	}
	return p, nil
}

// Task is a single to-do item owned by exactly one list.
type Task struct {
	TaskID        string     `json:"id" db:"task_id"`
	ListID        string     `json:"list" db:"list_id"`
	UserID        string     `json:"user" db:"user_id"`
	Content       string     `json:"content" db:"content"`
	Completed     bool       `json:"completed" db:"completed"`
	CompletedAt   *time.Time `json:"completedAt" db:"completed_at"`
	Position      int        `json:"position" db:"position"`
	Priority      Priority   `json:"priority" db:"priority"`
	OriginalDate  time.Time  `json:"originalDate" db:"original_date"`
	IsTransferred bool       `json:"isTransferred" db:"is_transferred"`
	IsHandled     bool       `json:"isHandled" db:"is_handled"`
	CreatedAt     time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time  `json:"updatedAt" db:"updated_at"`
}

// Statistics is the cached completion projection of a list.
type Statistics struct {
	TotalTasks           int `json:"totalTasks" db:"total_tasks"`
	CompletedTasks       int `json:"completedTasks" db:"completed_tasks"`
	CompletionPercentage int `json:"completionPercentage" db:"completion_percentage"`
}

// List is the per user, per date collection of task references.
// TaskIDs is kept consistent with the ListID back reference of every task.
type List struct {
	ListID     string     `json:"id" db:"list_id"`
	UserID     string     `json:"user" db:"user_id"`
	Date       time.Time  `json:"date" db:"list_date"`
	TaskIDs    []string   `json:"taskIds" db:"task_ids"`
	Statistics Statistics `json:"statistics"`
	CreatedAt  time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time  `json:"updatedAt" db:"updated_at"`

	// Tasks is populated by read operations, ordered by position.
	Tasks []Task `json:"tasks,omitempty" db:"-"`
}

// =============================================================================
// Inputs

// NewTask carries the fields accepted when creating a task.
type NewTask struct {
	Content  string
	Priority Priority
	ListID   string
	Position *int
}

// UpdateTask carries the optional fields of a task edit.
type UpdateTask struct {
	Content  *string
	Priority *Priority
	Position *int
}

// TaskPosition assigns a new position to one task during a reorder.
type TaskPosition struct {
	TaskID   string `json:"id"`
	Position int    `json:"position"`
}

// TaskQuery filters a user's tasks.
type TaskQuery struct {
	Completed      *bool
	Priority       *Priority
	Overdue        *bool
	IncludeHandled bool
}

// =============================================================================
// Store filters

// TaskFilter selects tasks at the store level. Results are ordered by
// position, then insertion order.
type TaskFilter struct {
	UserID         *string
	ListID         *string
	ListIDs        []string
	Completed      *bool
	Priority       *Priority
	OriginalFrom   *time.Time
	OriginalTo     *time.Time
	IncludeHandled bool
}

// ListFilter selects lists for one user within inclusive date bounds.
// Results are ordered newest first.
type ListFilter struct {
	UserID string
	Start  *time.Time
	End    *time.Time
}

// CandidateFilter selects transfer candidates: incomplete, unhandled tasks
// whose original date and owning list date are both before Cutoff.
// Results are ordered by user, original date, list date, position and
// insertion order.
type CandidateFilter struct {
	UserID *string
	Cutoff time.Time
}

// =============================================================================
// Dates

// CivilDate drops the clock and zone of t, keeping its calendar day.
func CivilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Today is the current calendar day in loc.
func Today(now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	return CivilDate(now.In(loc))
}
