package todossqlitestore

import (
	"database/sql"
	"time"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func formatDate(t time.Time) string {
	return todosrepo.CivilDate(t).Format(validation.DateLayout)
}

func nullableTimestamp(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(*t), Valid: true}
}

func parseTimestamp(s string) (time.Time, error) {
	return time.Parse(timestampLayout, s)
}

func parseOptionalTimestamp(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTimestamp(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseDate(s string) (time.Time, error) {
	return time.Parse(validation.DateLayout, s)
}

type scanner interface {
	Scan(dest ...any) error
}

const listColumns = `list_id, user_id, list_date, task_ids, total_tasks, completed_tasks, completion_percentage, created_at, updated_at`

func scanList(row scanner) (todosrepo.List, error) {
	var (
		l                  todosrepo.List
		date, created, upd string
		taskIDs            validation.JSONField[[]string]
	)
	err := row.Scan(&l.ListID, &l.UserID, &date, &taskIDs,
		&l.Statistics.TotalTasks, &l.Statistics.CompletedTasks, &l.Statistics.CompletionPercentage,
		&created, &upd)
	if err != nil {
		return todosrepo.List{}, err
	}

	if l.Date, err = parseDate(date); err != nil {
		return todosrepo.List{}, err
	}
	if l.CreatedAt, err = parseTimestamp(created); err != nil {
		return todosrepo.List{}, err
	}
	if l.UpdatedAt, err = parseTimestamp(upd); err != nil {
		return todosrepo.List{}, err
	}
	l.TaskIDs = taskIDs.Data
	if l.TaskIDs == nil {
		l.TaskIDs = []string{}
	}
	return l, nil
}

const taskColumns = `t.task_id, t.list_id, t.user_id, t.content, t.completed, t.completed_at, t.position, t.priority,
	t.original_date, t.is_transferred, t.is_handled, t.created_at, t.updated_at`

func scanTask(row scanner) (todosrepo.Task, error) {
	var (
		t                      todosrepo.Task
		completedAt            sql.NullString
		original, created, upd string
		priority               string
	)
	err := row.Scan(&t.TaskID, &t.ListID, &t.UserID, &t.Content, &t.Completed, &completedAt,
		&t.Position, &priority, &original, &t.IsTransferred, &t.IsHandled, &created, &upd)
	if err != nil {
		return todosrepo.Task{}, err
	}

	t.Priority = todosrepo.Priority(priority)
	if t.CompletedAt, err = parseOptionalTimestamp(completedAt); err != nil {
		return todosrepo.Task{}, err
	}
	if t.OriginalDate, err = parseDate(original); err != nil {
		return todosrepo.Task{}, err
	}
	if t.CreatedAt, err = parseTimestamp(created); err != nil {
		return todosrepo.Task{}, err
	}
	if t.UpdatedAt, err = parseTimestamp(upd); err != nil {
		return todosrepo.Task{}, err
	}
	return t, nil
}

func collectTasks(rows *sql.Rows) ([]todosrepo.Task, error) {
	defer rows.Close()

	tasks := []todosrepo.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func collectLists(rows *sql.Rows) ([]todosrepo.List, error) {
	defer rows.Close()

	lists := []todosrepo.List{}
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}
