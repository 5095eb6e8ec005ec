// Package todossqlitestore implements todosrepo.Storer on a single file
// sqlite database. Transactions start with BEGIN IMMEDIATE, so the database
// lock stands in for row locks.
package todossqlitestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/infrastructure/sqlitedb"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	log  *logger.Logger
	db   *sql.DB
	q    dbtx
	inTx bool
}

func NewStore(log *logger.Logger, db *sql.DB) *Store {
	return &Store{
		log: log,
		db:  db,
		q:   db,
	}
}

// WithinTx implements todosrepo.Storer.
func (s *Store) WithinTx(ctx context.Context, fn func(tx todosrepo.Storer) error) error {
	return s.withinTx(ctx, func(ts *Store) error {
		return fn(ts)
	})
}

func (s *Store) withinTx(ctx context.Context, fn func(ts *Store) error) error {
	if s.inTx {
		return fn(s)
	}
	err := sqlitedb.InTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(&Store{log: s.log, db: s.db, q: tx, inTx: true})
	})
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch err = sqlitedb.HandleSQLiteError(err); {
	case errors.Is(err, sqlitedb.ErrDBNotFound):
		return todosrepo.ErrNotFound
	case errors.Is(err, sqlitedb.ErrDBBusy):
		return fmt.Errorf("%w: %w", todosrepo.ErrUnavailable, err)
	}
	return err
}

// =============================================================================
// Lists

func (s *Store) InsertList(ctx context.Context, list todosrepo.List) error {
	const query = `
		INSERT INTO todo_lists (` + listColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query, listArgs(list)...)
	if err != nil {
		if errors.Is(sqlitedb.HandleSQLiteError(err), sqlitedb.ErrDBDuplicatedEntry) {
			return todosrepo.ErrDuplicateList
		}
		return mapErr(err)
	}
	return nil
}

func (s *Store) InsertListIfAbsent(ctx context.Context, list todosrepo.List) (todosrepo.List, error) {
	const query = `
		INSERT INTO todo_lists (` + listColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, list_date) DO NOTHING`

	if _, err := s.q.ExecContext(ctx, query, listArgs(list)...); err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	return s.GetListByDate(ctx, list.UserID, list.Date)
}

func listArgs(list todosrepo.List) []any {
	taskIDs := list.TaskIDs
	if taskIDs == nil {
		taskIDs = []string{}
	}
	return []any{
		list.ListID,
		list.UserID,
		formatDate(list.Date),
		validation.JSONField[[]string]{Data: taskIDs},
		list.Statistics.TotalTasks,
		list.Statistics.CompletedTasks,
		list.Statistics.CompletionPercentage,
		formatTimestamp(list.CreatedAt),
		formatTimestamp(list.UpdatedAt),
	}
}

func (s *Store) GetList(ctx context.Context, listID string) (todosrepo.List, error) {
	const query = `SELECT ` + listColumns + ` FROM todo_lists WHERE list_id = ?`

	list, err := scanList(s.q.QueryRowContext(ctx, query, listID))
	if err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	return list, nil
}

// GetListForUpdate reads the list. The enclosing BEGIN IMMEDIATE transaction
// already holds the write lock.
func (s *Store) GetListForUpdate(ctx context.Context, listID string) (todosrepo.List, error) {
	return s.GetList(ctx, listID)
}

func (s *Store) GetListByDate(ctx context.Context, userID string, date time.Time) (todosrepo.List, error) {
	const query = `SELECT ` + listColumns + ` FROM todo_lists WHERE user_id = ? AND list_date = ?`

	list, err := scanList(s.q.QueryRowContext(ctx, query, userID, formatDate(date)))
	if err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	return list, nil
}

func (s *Store) QueryLists(ctx context.Context, filter todosrepo.ListFilter) ([]todosrepo.List, error) {
	var (
		where = []string{"user_id = ?"}
		args  = []any{filter.UserID}
	)
	if filter.Start != nil {
		where = append(where, "list_date >= ?")
		args = append(args, formatDate(*filter.Start))
	}
	if filter.End != nil {
		where = append(where, "list_date <= ?")
		args = append(args, formatDate(*filter.End))
	}

	query := `SELECT ` + listColumns + ` FROM todo_lists WHERE ` + strings.Join(where, " AND ") + ` ORDER BY list_date DESC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	lists, err := collectLists(rows)
	if err != nil {
		return nil, mapErr(err)
	}
	return lists, nil
}

func (s *Store) UpdateList(ctx context.Context, list todosrepo.List) error {
	const query = `
		UPDATE todo_lists
		SET task_ids = ?, total_tasks = ?, completed_tasks = ?, completion_percentage = ?, updated_at = ?
		WHERE list_id = ?`

	taskIDs := list.TaskIDs
	if taskIDs == nil {
		taskIDs = []string{}
	}
	res, err := s.q.ExecContext(ctx, query,
		validation.JSONField[[]string]{Data: taskIDs},
		list.Statistics.TotalTasks,
		list.Statistics.CompletedTasks,
		list.Statistics.CompletionPercentage,
		formatTimestamp(list.UpdatedAt),
		list.ListID,
	)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

// DeleteList removes the tasks of the list, then the list.
func (s *Store) DeleteList(ctx context.Context, listID string) error {
	return s.withinTx(ctx, func(ts *Store) error {
		if _, err := ts.q.ExecContext(ctx, `DELETE FROM tasks WHERE list_id = ?`, listID); err != nil {
			return mapErr(err)
		}
		res, err := ts.q.ExecContext(ctx, `DELETE FROM todo_lists WHERE list_id = ?`, listID)
		if err != nil {
			return mapErr(err)
		}
		return requireRow(res)
	})
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return mapErr(err)
	}
	if n == 0 {
		return todosrepo.ErrNotFound
	}
	return nil
}

// =============================================================================
// Tasks

func (s *Store) GetTask(ctx context.Context, taskID string) (todosrepo.Task, error) {
	const query = `SELECT ` + taskColumns + ` FROM tasks t WHERE t.task_id = ?`

	task, err := scanTask(s.q.QueryRowContext(ctx, query, taskID))
	if err != nil {
		return todosrepo.Task{}, mapErr(err)
	}
	return task, nil
}

func (s *Store) QueryTasks(ctx context.Context, filter todosrepo.TaskFilter) ([]todosrepo.Task, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		where = append(where, "t.user_id = ?")
		args = append(args, *filter.UserID)
	}
	if filter.ListID != nil {
		where = append(where, "t.list_id = ?")
		args = append(args, *filter.ListID)
	}
	if filter.ListIDs != nil {
		if len(filter.ListIDs) == 0 {
			return []todosrepo.Task{}, nil
		}
		where = append(where, "t.list_id IN (?"+strings.Repeat(", ?", len(filter.ListIDs)-1)+")")
		for _, id := range filter.ListIDs {
			args = append(args, id)
		}
	}
	if filter.Completed != nil {
		where = append(where, "t.completed = ?")
		args = append(args, *filter.Completed)
	}
	if filter.Priority != nil {
		where = append(where, "t.priority = ?")
		args = append(args, string(*filter.Priority))
	}
	if filter.OriginalFrom != nil {
		where = append(where, "t.original_date >= ?")
		args = append(args, formatDate(*filter.OriginalFrom))
	}
	if filter.OriginalTo != nil {
		where = append(where, "t.original_date <= ?")
		args = append(args, formatDate(*filter.OriginalTo))
	}
	if !filter.IncludeHandled {
		where = append(where, "t.is_handled = 0")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY t.position, t.seq`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, mapErr(err)
	}
	return tasks, nil
}

func (s *Store) QueryCandidates(ctx context.Context, filter todosrepo.CandidateFilter) ([]todosrepo.Task, error) {
	cutoff := formatDate(filter.Cutoff)
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN todo_lists l ON l.list_id = t.list_id
		WHERE t.completed = 0
			AND t.is_handled = 0
			AND t.original_date < ?
			AND l.list_date < ?`
	args := []any{cutoff, cutoff}
	if filter.UserID != nil {
		query += ` AND t.user_id = ?`
		args = append(args, *filter.UserID)
	}
	query += ` ORDER BY t.user_id, t.original_date, l.list_date, t.position, t.seq`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err)
	}
	tasks, err := collectTasks(rows)
	if err != nil {
		return nil, mapErr(err)
	}
	return tasks, nil
}

func (s *Store) InsertTask(ctx context.Context, task todosrepo.Task) error {
	const query = `
		INSERT INTO tasks (task_id, list_id, user_id, content, completed, completed_at, position, priority,
			original_date, is_transferred, is_handled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.q.ExecContext(ctx, query,
		task.TaskID,
		task.ListID,
		task.UserID,
		task.Content,
		task.Completed,
		nullableTimestamp(task.CompletedAt),
		task.Position,
		string(task.Priority),
		formatDate(task.OriginalDate),
		task.IsTransferred,
		task.IsHandled,
		formatTimestamp(task.CreatedAt),
		formatTimestamp(task.UpdatedAt),
	)
	return mapErr(err)
}

func (s *Store) UpdateTask(ctx context.Context, task todosrepo.Task) error {
	const query = `
		UPDATE tasks
		SET content = ?, completed = ?, completed_at = ?, position = ?, priority = ?, updated_at = ?
		WHERE task_id = ?`

	res, err := s.q.ExecContext(ctx, query,
		task.Content,
		task.Completed,
		nullableTimestamp(task.CompletedAt),
		task.Position,
		string(task.Priority),
		formatTimestamp(task.UpdatedAt),
		task.TaskID,
	)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	res, err := s.q.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	if err != nil {
		return mapErr(err)
	}
	return requireRow(res)
}

func (s *Store) MarkHandled(ctx context.Context, taskID string, at time.Time) (bool, error) {
	const query = `
		UPDATE tasks
		SET is_handled = 1, updated_at = ?
		WHERE task_id = ? AND completed = 0 AND is_handled = 0`

	res, err := s.q.ExecContext(ctx, query, formatTimestamp(at), taskID)
	if err != nil {
		return false, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapErr(err)
	}
	return n == 1, nil
}
