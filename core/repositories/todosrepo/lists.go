package todosrepo

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// Summary aggregates a user's lists over a date range.
type Summary struct {
	TotalLists           int     `json:"totalLists"`
	TotalTasks           int     `json:"totalTasks"`
	CompletedTasks       int     `json:"completedTasks"`
	CompletionPercentage int     `json:"completionPercentage"`
	TasksPerDay          float64 `json:"tasksPerDay"`
	CurrentStreak        int     `json:"currentStreak"`
	LongestStreak        int     `json:"longestStreak"`
}

func (r *Repository) newList(userID string, date time.Time) List {
	now := r.timestamp()
	return List{
		ListID:    uuid.NewString(),
		UserID:    userID,
		Date:      CivilDate(date),
		TaskIDs:   []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// CreateList creates the list of userID for date. A second list for the same
// date fails with ErrDuplicateList.
func (r *Repository) CreateList(ctx context.Context, userID string, date time.Time) (List, error) {
	if date.IsZero() {
		var fe validation.FieldErrors
		fe.Add("date", "date is required")
		return List{}, fe
	}

	list := r.newList(userID, date)
	if err := r.storer.InsertList(ctx, list); err != nil {
		return List{}, fmt.Errorf("create list: %w", err)
	}
	list.Tasks = []Task{}

	r.log.InfoContext(ctx, "list created", "list_id", list.ListID, "date", validation.FormatDate(list.Date))
	return list, nil
}

// GetListByDate returns the list of userID for date, creating an empty one
// when none exists yet.
func (r *Repository) GetListByDate(ctx context.Context, userID string, date time.Time) (List, error) {
	list, err := r.storer.InsertListIfAbsent(ctx, r.newList(userID, date))
	if err != nil {
		return List{}, fmt.Errorf("get list by date: %w", err)
	}
	if list.Tasks, err = r.listTasks(ctx, r.storer, list.ListID); err != nil {
		return List{}, err
	}
	return list, nil
}

// GetList returns a list owned by userID with its tasks.
func (r *Repository) GetList(ctx context.Context, userID, listID string) (List, error) {
	list, err := r.storer.GetList(ctx, listID)
	if err != nil {
		return List{}, fmt.Errorf("get list: %w", err)
	}
	if list.UserID != userID {
		return List{}, ErrForbidden
	}
	if list.Tasks, err = r.listTasks(ctx, r.storer, list.ListID); err != nil {
		return List{}, err
	}
	return list, nil
}

// DeleteList removes a list together with its tasks.
func (r *Repository) DeleteList(ctx context.Context, userID, listID string) error {
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		if _, err := lockOwnedList(ctx, tx, userID, listID); err != nil {
			return err
		}
		if err := tx.DeleteList(ctx, listID); err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete list: %w", err)
	}

	r.log.InfoContext(ctx, "list deleted", "list_id", listID)
	return nil
}

func validateRange(start, end *time.Time) error {
	if start != nil && end != nil && start.After(*end) {
		var fe validation.FieldErrors
		fe.Add("startDate", "startDate must not be after endDate")
		return fe
	}
	return nil
}

func civilPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := CivilDate(*t)
	return &d
}

// ListLists returns the lists of userID between start and end inclusive,
// newest first, with their tasks.
func (r *Repository) ListLists(ctx context.Context, userID string, start, end *time.Time) ([]List, error) {
	if err := validateRange(start, end); err != nil {
		return nil, err
	}

	lists, err := r.storer.QueryLists(ctx, ListFilter{UserID: userID, Start: civilPtr(start), End: civilPtr(end)})
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	if len(lists) == 0 {
		return []List{}, nil
	}

	ids := make([]string, len(lists))
	for i, l := range lists {
		ids[i] = l.ListID
	}
	tasks, err := r.storer.QueryTasks(ctx, TaskFilter{ListIDs: ids, IncludeHandled: true})
	if err != nil {
		return nil, fmt.Errorf("query list tasks: %w", err)
	}

	byList := make(map[string][]Task, len(lists))
	for _, t := range tasks {
		byList[t.ListID] = append(byList[t.ListID], t)
	}
	for i := range lists {
		lists[i].Tasks = byList[lists[i].ListID]
		if lists[i].Tasks == nil {
			lists[i].Tasks = []Task{}
		}
	}
	return lists, nil
}

// Summary reports totals and completion streaks for userID. Tasks are counted
// by original date and superseded sources are excluded so a rolled forward
// task counts once.
func (r *Repository) Summary(ctx context.Context, userID string, start, end *time.Time) (Summary, error) {
	if err := validateRange(start, end); err != nil {
		return Summary{}, err
	}

	lists, err := r.storer.QueryLists(ctx, ListFilter{UserID: userID, Start: civilPtr(start), End: civilPtr(end)})
	if err != nil {
		return Summary{}, fmt.Errorf("query lists: %w", err)
	}
	tasks, err := r.storer.QueryTasks(ctx, TaskFilter{
		UserID:       &userID,
		OriginalFrom: civilPtr(start),
		OriginalTo:   civilPtr(end),
	})
	if err != nil {
		return Summary{}, fmt.Errorf("query tasks: %w", err)
	}

	var s Summary
	s.TotalLists = len(lists)
	s.TotalTasks = len(tasks)
	for _, t := range tasks {
		if t.Completed {
			s.CompletedTasks++
		}
	}
	s.CompletionPercentage = percentage(s.CompletedTasks, s.TotalTasks)
	if s.TotalLists > 0 {
		s.TasksPerDay = math.Round(float64(s.TotalTasks)/float64(s.TotalLists)*10) / 10
	}
	s.CurrentStreak, s.LongestStreak = streaks(lists)
	return s, nil
}

// streaks walks lists oldest first counting consecutive lists with at least
// one completed task.
func streaks(lists []List) (current, longest int) {
	sorted := slices.Clone(lists)
	slices.SortFunc(sorted, func(a, b List) int { return a.Date.Compare(b.Date) })

	for _, l := range sorted {
		if l.Statistics.CompletedTasks > 0 {
			current++
			longest = max(longest, current)
		} else {
			current = 0
		}
	}
	return current, longest
}
