// Package todospgxstore implements todosrepo.Storer on PostgreSQL. Mutating
// list operations lock the list row with SELECT ... FOR UPDATE.
package todospgxstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/infrastructure/postgresdb"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

type Store struct {
	log  *logger.Logger
	pool *postgresdb.Pool
	q    dbtx
	inTx bool
}

func NewStore(log *logger.Logger, pool *postgresdb.Pool) *Store {
	return &Store{
		log:  log,
		pool: pool,
		q:    pool,
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
	err := postgresdb.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(&Store{log: s.log, pool: s.pool, q: tx, inTx: true})
	})
	return mapErr(err)
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	switch err = postgresdb.HandlePgError(err); {
	case errors.Is(err, postgresdb.ErrDBNotFound), errors.Is(err, postgresdb.ErrDBInvalidInput):
		return todosrepo.ErrNotFound
	case errors.Is(err, postgresdb.ErrDBTxConflict):
		return fmt.Errorf("%w: %w", todosrepo.ErrTxAborted, err)
	case errors.Is(err, postgresdb.ErrDBUnavailable):
		return fmt.Errorf("%w: %w", todosrepo.ErrUnavailable, err)
	}
	return err
}

// ========================================
// LISTS
// ========================================

const listColumns = `list_id::text AS list_id, user_id, list_date, task_ids::text[] AS task_ids,
	total_tasks, completed_tasks, completion_percentage, created_at, updated_at`

type listRow struct {
	ListID               string    `db:"list_id"`
	UserID               string    `db:"user_id"`
	ListDate             time.Time `db:"list_date"`
	TaskIDs              []string  `db:"task_ids"`
	TotalTasks           int       `db:"total_tasks"`
	CompletedTasks       int       `db:"completed_tasks"`
	CompletionPercentage int       `db:"completion_percentage"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
}

func (r listRow) toList() todosrepo.List {
	ids := r.TaskIDs
	if ids == nil {
		ids = []string{}
	}
	return todosrepo.List{
		ListID:  r.ListID,
		UserID:  r.UserID,
		Date:    todosrepo.CivilDate(r.ListDate),
		TaskIDs: ids,
		Statistics: todosrepo.Statistics{
			TotalTasks:           r.TotalTasks,
			CompletedTasks:       r.CompletedTasks,
			CompletionPercentage: r.CompletionPercentage,
		},
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

func listArgs(list todosrepo.List) pgx.NamedArgs {
	ids := list.TaskIDs
	if ids == nil {
		ids = []string{}
	}
	return pgx.NamedArgs{
		"list_id":               list.ListID,
		"user_id":               list.UserID,
		"list_date":             todosrepo.CivilDate(list.Date),
		"task_ids":              ids,
		"total_tasks":           list.Statistics.TotalTasks,
		"completed_tasks":       list.Statistics.CompletedTasks,
		"completion_percentage": list.Statistics.CompletionPercentage,
		"created_at":            list.CreatedAt,
		"updated_at":            list.UpdatedAt,
	}
}

func (s *Store) collectList(ctx context.Context, query string, args pgx.NamedArgs) (todosrepo.List, error) {
	rows, err := s.q.Query(ctx, query, args)
	if err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[listRow])
	if err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	return row.toList(), nil
}

const insertList = `
	INSERT INTO todo_lists (list_id, user_id, list_date, task_ids, total_tasks, completed_tasks,
		completion_percentage, created_at, updated_at)
	VALUES (@list_id, @user_id, @list_date, @task_ids::uuid[], @total_tasks, @completed_tasks,
		@completion_percentage, @created_at, @updated_at)`

func (s *Store) InsertList(ctx context.Context, list todosrepo.List) error {
	_, err := s.q.Exec(ctx, insertList, listArgs(list))
	if err != nil {
		if errors.Is(postgresdb.HandlePgError(err), postgresdb.ErrDBDuplicatedEntry) {
			return todosrepo.ErrDuplicateList
		}
		return mapErr(err)
	}
	return nil
}

func (s *Store) InsertListIfAbsent(ctx context.Context, list todosrepo.List) (todosrepo.List, error) {
	query := insertList + ` ON CONFLICT (user_id, list_date) DO NOTHING`
	if _, err := s.q.Exec(ctx, query, listArgs(list)); err != nil {
		return todosrepo.List{}, mapErr(err)
	}
	return s.GetListByDate(ctx, list.UserID, list.Date)
}

func (s *Store) GetList(ctx context.Context, listID string) (todosrepo.List, error) {
	query := `SELECT ` + listColumns + ` FROM todo_lists WHERE list_id = @list_id`
	return s.collectList(ctx, query, pgx.NamedArgs{"list_id": listID})
}

func (s *Store) GetListForUpdate(ctx context.Context, listID string) (todosrepo.List, error) {
	query := `SELECT ` + listColumns + ` FROM todo_lists WHERE list_id = @list_id FOR UPDATE`
	return s.collectList(ctx, query, pgx.NamedArgs{"list_id": listID})
}

func (s *Store) GetListByDate(ctx context.Context, userID string, date time.Time) (todosrepo.List, error) {
	query := `SELECT ` + listColumns + ` FROM todo_lists WHERE user_id = @user_id AND list_date = @list_date`
	return s.collectList(ctx, query, pgx.NamedArgs{
		"user_id":   userID,
		"list_date": todosrepo.CivilDate(date),
	})
}

func (s *Store) QueryLists(ctx context.Context, filter todosrepo.ListFilter) ([]todosrepo.List, error) {
	var (
		where = []string{"user_id = @user_id"}
		args  = pgx.NamedArgs{"user_id": filter.UserID}
	)
	if filter.Start != nil {
		where = append(where, "list_date >= @start")
		args["start"] = todosrepo.CivilDate(*filter.Start)
	}
	if filter.End != nil {
		where = append(where, "list_date <= @end")
		args["end"] = todosrepo.CivilDate(*filter.End)
	}

	query := `SELECT ` + listColumns + ` FROM todo_lists WHERE ` + strings.Join(where, " AND ") + ` ORDER BY list_date DESC`

	rows, err := s.q.Query(ctx, query, args)
	if err != nil {
		return nil, mapErr(err)
	}
	sl, err := pgx.CollectRows(rows, pgx.RowToStructByName[listRow])
	if err != nil {
		return nil, mapErr(err)
	}

	lists := make([]todosrepo.List, len(sl))
	for i, r := range sl {
		lists[i] = r.toList()
	}
	return lists, nil
}

func (s *Store) UpdateList(ctx context.Context, list todosrepo.List) error {
	const query = `
		UPDATE todo_lists
		SET task_ids = @task_ids::uuid[],
			total_tasks = @total_tasks,
			completed_tasks = @completed_tasks,
			completion_percentage = @completion_percentage,
			updated_at = @updated_at
		WHERE list_id = @list_id`

	tag, err := s.q.Exec(ctx, query, listArgs(list))
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

// DeleteList removes the tasks of the list, then the list.
func (s *Store) DeleteList(ctx context.Context, listID string) error {
	return s.withinTx(ctx, func(ts *Store) error {
		args := pgx.NamedArgs{"list_id": listID}
		if _, err := ts.q.Exec(ctx, `DELETE FROM tasks WHERE list_id = @list_id`, args); err != nil {
			return mapErr(err)
		}
		tag, err := ts.q.Exec(ctx, `DELETE FROM todo_lists WHERE list_id = @list_id`, args)
		if err != nil {
			return mapErr(err)
		}
		return requireRow(tag)
	})
}

func requireRow(tag pgconn.CommandTag) error {
	if tag.RowsAffected() == 0 {
		return todosrepo.ErrNotFound
	}
	return nil
}

// ========================================
// TASKS
// ========================================

const taskColumns = `t.task_id::text AS task_id, t.list_id::text AS list_id, t.user_id, t.content, t.completed,
	t.completed_at, t.position, t.priority, t.original_date, t.is_transferred, t.is_handled, t.created_at, t.updated_at`

func (s *Store) collectTasks(ctx context.Context, query string, args pgx.NamedArgs) ([]todosrepo.Task, error) {
	rows, err := s.q.Query(ctx, query, args)
	if err != nil {
		return nil, mapErr(err)
	}
	tasks, err := pgx.CollectRows(rows, pgx.RowToStructByName[todosrepo.Task])
	if err != nil {
		return nil, mapErr(err)
	}
	for i := range tasks {
		tasks[i].OriginalDate = todosrepo.CivilDate(tasks[i].OriginalDate)
	}
	if tasks == nil {
		tasks = []todosrepo.Task{}
	}
	return tasks, nil
}

func (s *Store) GetTask(ctx context.Context, taskID string) (todosrepo.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks t WHERE t.task_id = @task_id`

	tasks, err := s.collectTasks(ctx, query, pgx.NamedArgs{"task_id": taskID})
	if err != nil {
		return todosrepo.Task{}, err
	}
	if len(tasks) == 0 {
		return todosrepo.Task{}, todosrepo.ErrNotFound
	}
	return tasks[0], nil
}

func (s *Store) QueryTasks(ctx context.Context, filter todosrepo.TaskFilter) ([]todosrepo.Task, error) {
	var (
		where []string
		args  = pgx.NamedArgs{}
	)
	if filter.UserID != nil {
		where = append(where, "t.user_id = @user_id")
		args["user_id"] = *filter.UserID
	}
	if filter.ListID != nil {
		where = append(where, "t.list_id = @list_id")
		args["list_id"] = *filter.ListID
	}
	if filter.ListIDs != nil {
		where = append(where, "t.list_id = ANY(@list_ids::uuid[])")
		args["list_ids"] = filter.ListIDs
	}
	if filter.Completed != nil {
		where = append(where, "t.completed = @completed")
		args["completed"] = *filter.Completed
	}
	if filter.Priority != nil {
		where = append(where, "t.priority = @priority")
		args["priority"] = string(*filter.Priority)
	}
	if filter.OriginalFrom != nil {
		where = append(where, "t.original_date >= @original_from")
		args["original_from"] = todosrepo.CivilDate(*filter.OriginalFrom)
	}
	if filter.OriginalTo != nil {
		where = append(where, "t.original_date <= @original_to")
		args["original_to"] = todosrepo.CivilDate(*filter.OriginalTo)
	}
	if !filter.IncludeHandled {
		where = append(where, "NOT t.is_handled")
	}

	query := `SELECT ` + taskColumns + ` FROM tasks t`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY t.position, t.seq`

	return s.collectTasks(ctx, query, args)
}

func (s *Store) QueryCandidates(ctx context.Context, filter todosrepo.CandidateFilter) ([]todosrepo.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks t
		JOIN todo_lists l ON l.list_id = t.list_id
		WHERE NOT t.completed
			AND NOT t.is_handled
			AND t.original_date < @cutoff
			AND l.list_date < @cutoff`
	args := pgx.NamedArgs{"cutoff": todosrepo.CivilDate(filter.Cutoff)}
	if filter.UserID != nil {
		query += ` AND t.user_id = @user_id`
		args["user_id"] = *filter.UserID
	}
	query += ` ORDER BY t.user_id, t.original_date, l.list_date, t.position, t.seq`

	return s.collectTasks(ctx, query, args)
}

func taskArgs(task todosrepo.Task) pgx.NamedArgs {
	return pgx.NamedArgs{
		"task_id":        task.TaskID,
		"list_id":        task.ListID,
		"user_id":        task.UserID,
		"content":        task.Content,
		"completed":      task.Completed,
		"completed_at":   task.CompletedAt,
		"position":       task.Position,
		"priority":       string(task.Priority),
		"original_date":  todosrepo.CivilDate(task.OriginalDate),
		"is_transferred": task.IsTransferred,
		"is_handled":     task.IsHandled,
		"created_at":     task.CreatedAt,
		"updated_at":     task.UpdatedAt,
	}
}

func (s *Store) InsertTask(ctx context.Context, task todosrepo.Task) error {
	const query = `
		INSERT INTO tasks (task_id, list_id, user_id, content, completed, completed_at, position, priority,
			original_date, is_transferred, is_handled, created_at, updated_at)
		VALUES (@task_id, @list_id, @user_id, @content, @completed, @completed_at, @position, @priority,
			@original_date, @is_transferred, @is_handled, @created_at, @updated_at)`

	_, err := s.q.Exec(ctx, query, taskArgs(task))
	return mapErr(err)
}

func (s *Store) UpdateTask(ctx context.Context, task todosrepo.Task) error {
	const query = `
		UPDATE tasks
		SET content = @content,
			completed = @completed,
			completed_at = @completed_at,
			position = @position,
			priority = @priority,
			updated_at = @updated_at
		WHERE task_id = @task_id`

	tag, err := s.q.Exec(ctx, query, taskArgs(task))
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM tasks WHERE task_id = @task_id`, pgx.NamedArgs{"task_id": taskID})
	if err != nil {
		return mapErr(err)
	}
	return requireRow(tag)
}

func (s *Store) MarkHandled(ctx context.Context, taskID string, at time.Time) (bool, error) {
	const query = `
		UPDATE tasks
		SET is_handled = TRUE, updated_at = @updated_at
		WHERE task_id = @task_id AND NOT completed AND NOT is_handled`

	tag, err := s.q.Exec(ctx, query, pgx.NamedArgs{"task_id": taskID, "updated_at": at})
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() == 1, nil
}
