package todosrepobridge

import (
	"strings"
	"time"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// Task is the wire form of a task. AgeInDays and IsOverdue are derived at
// response time.
type Task struct {
	ID            string  `json:"id"`
	List          string  `json:"list"`
	User          string  `json:"user"`
	Content       string  `json:"content"`
	Completed     bool    `json:"completed"`
	CompletedAt   *string `json:"completedAt"`
	Position      int     `json:"position"`
	Priority      string  `json:"priority"`
	OriginalDate  string  `json:"originalDate"`
	IsTransferred bool    `json:"isTransferred"`
	IsHandled     bool    `json:"isHandled"`
	AgeInDays     int     `json:"ageInDays"`
	IsOverdue     bool    `json:"isOverdue"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// List is the wire form of a list with its tasks ordered by position.
type List struct {
	ID         string               `json:"id"`
	User       string               `json:"user"`
	Date       string               `json:"date"`
	TaskIDs    []string             `json:"taskIds"`
	Tasks      []Task               `json:"tasks"`
	Statistics todosrepo.Statistics `json:"statistics"`
	CreatedAt  string               `json:"createdAt"`
	UpdatedAt  string               `json:"updatedAt"`
}

// =============================================================================
// Inputs

type CreateTaskInput struct {
	Content  string `json:"content"`
	Priority string `json:"priority"`
	List     string `json:"list"`
	Position *int   `json:"position"`
}

type UpdateTaskInput struct {
	Content  *string `json:"content"`
	Priority *string `json:"priority"`
	Position *int    `json:"position"`
}

type ReorderInput struct {
	Tasks []todosrepo.TaskPosition `json:"tasks"`
}

type CreateListInput struct {
	Date string `json:"date"`
}

func (in CreateListInput) Validate() error {
	var fe validation.FieldErrors
	if strings.TrimSpace(in.Date) == "" {
		fe.Add("date", "date is required")
	}
	return fe.ToError()
}

// =============================================================================
// Marshalling

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// MarshalTaskToBridge converts a core task, deriving its age against today.
func MarshalTaskToBridge(task todosrepo.Task, today time.Time) Task {
	return Task{
		ID:            task.TaskID,
		List:          task.ListID,
		User:          task.UserID,
		Content:       task.Content,
		Completed:     task.Completed,
		CompletedAt:   validation.FormatTimePtrToString(task.CompletedAt),
		Position:      task.Position,
		Priority:      string(task.Priority),
		OriginalDate:  validation.FormatDate(task.OriginalDate),
		IsTransferred: task.IsTransferred,
		IsHandled:     task.IsHandled,
		AgeInDays:     task.AgeInDays(today),
		IsOverdue:     task.IsOverdue(today),
		CreatedAt:     formatTime(task.CreatedAt),
		UpdatedAt:     formatTime(task.UpdatedAt),
	}
}

func MarshalTasksToBridge(tasks []todosrepo.Task, today time.Time) []Task {
	out := make([]Task, len(tasks))
	for i, t := range tasks {
		out[i] = MarshalTaskToBridge(t, today)
	}
	return out
}

func MarshalListToBridge(list todosrepo.List, today time.Time) List {
	ids := list.TaskIDs
	if ids == nil {
		ids = []string{}
	}
	return List{
		ID:         list.ListID,
		User:       list.UserID,
		Date:       validation.FormatDate(list.Date),
		TaskIDs:    ids,
		Tasks:      MarshalTasksToBridge(list.Tasks, today),
		Statistics: list.Statistics,
		CreatedAt:  formatTime(list.CreatedAt),
		UpdatedAt:  formatTime(list.UpdatedAt),
	}
}

func MarshalListsToBridge(lists []todosrepo.List, today time.Time) []List {
	out := make([]List, len(lists))
	for i, l := range lists {
		out[i] = MarshalListToBridge(l, today)
	}
	return out
}

func normalizePriority(s string) todosrepo.Priority {
	return todosrepo.Priority(strings.ToLower(strings.TrimSpace(s)))
}

// MarshalCreateToRepository leaves validation of every field to the
// repository so all failures are reported together.
func MarshalCreateToRepository(in CreateTaskInput) todosrepo.NewTask {
	return todosrepo.NewTask{
		Content:  in.Content,
		Priority: normalizePriority(in.Priority),
		ListID:   strings.TrimSpace(in.List),
		Position: in.Position,
	}
}

func MarshalUpdateToRepository(in UpdateTaskInput) todosrepo.UpdateTask {
	out := todosrepo.UpdateTask{
		Content:  in.Content,
		Position: in.Position,
	}
	if in.Priority != nil {
		p := normalizePriority(*in.Priority)
		out.Priority = &p
	}
	return out
}
