package todosrepo

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// CreateTask adds a task to a list owned by userID. Without an explicit
// position the task goes after the last task of the list.
func (r *Repository) CreateTask(ctx context.Context, userID string, input NewTask) (Task, error) {
	input.Content = normalizeContent(input.Content)
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}

	var fe validation.FieldErrors
	validateContent(&fe, input.Content)
	if !input.Priority.Valid() {
		fe.Add("priority", "priority must be one of low, medium, high")
	}
	if input.ListID == "" {
		fe.Add("list", "list is required")
	}
	validatePosition(&fe, "position", input.Position)
	if err := fe.ToError(); err != nil {
		return Task{}, err
	}

	var task Task
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		list, err := lockOwnedList(ctx, tx, userID, input.ListID)
		if err != nil {
			return err
		}

		tasks, err := r.listTasks(ctx, tx, list.ListID)
		if err != nil {
			return err
		}

		position := 0
		if input.Position != nil {
			position = *input.Position
		} else {
			position, _ = nextPosition(tasks, func(Task) bool { return true })
		}

		now := r.timestamp()
		task = Task{
			TaskID:       uuid.NewString(),
			ListID:       list.ListID,
			UserID:       userID,
			Content:      input.Content,
			Position:     position,
			Priority:     input.Priority,
			OriginalDate: list.Date,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		if err := tx.InsertTask(ctx, task); err != nil {
			return fmt.Errorf("insert task: %w", err)
		}

		list.TaskIDs = append(list.TaskIDs, task.TaskID)
		return r.saveList(ctx, tx, &list, append(tasks, task), now)
	})
	if err != nil {
		return Task{}, fmt.Errorf("create task: %w", err)
	}

	r.log.InfoContext(ctx, "task created", "task_id", task.TaskID, "list_id", task.ListID)
	return task, nil
}

// GetTask returns one task owned by userID.
func (r *Repository) GetTask(ctx context.Context, userID, taskID string) (Task, error) {
	task, err := r.storer.GetTask(ctx, taskID)
	if err != nil {
		return Task{}, fmt.Errorf("get task: %w", err)
	}
	if task.UserID != userID {
		return Task{}, ErrForbidden
	}
	return task, nil
}

// UpdateTask edits the content, priority or position of a task. List
// membership and statistics are unaffected.
func (r *Repository) UpdateTask(ctx context.Context, userID, taskID string, input UpdateTask) (Task, error) {
	var fe validation.FieldErrors
	if input.Content != nil {
		c := normalizeContent(*input.Content)
		input.Content = &c
		validateContent(&fe, c)
	}
	if input.Priority != nil && !input.Priority.Valid() {
		fe.Add("priority", "priority must be one of low, medium, high")
	}
	validatePosition(&fe, "position", input.Position)
	if err := fe.ToError(); err != nil {
		return Task{}, err
	}

	var task Task
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		var err error
		task, err = tx.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		if task.UserID != userID {
			return ErrForbidden
		}

		if input.Content != nil {
			task.Content = *input.Content
		}
		if input.Priority != nil {
			task.Priority = *input.Priority
		}
		if input.Position != nil {
			task.Position = *input.Position
		}
		task.UpdatedAt = r.timestamp()

		if err := tx.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return Task{}, fmt.Errorf("update task: %w", err)
	}
	return task, nil
}

// ToggleTask flips the completion of a task. A task becoming complete moves
// after every other completed task of its list, or after the incomplete ones
// when it is the first. Statistics are recalculated in the same transaction.
func (r *Repository) ToggleTask(ctx context.Context, userID, taskID string) (Task, error) {
	var task Task
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		current, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		if current.UserID != userID {
			return ErrForbidden
		}

		list, err := lockOwnedList(ctx, tx, userID, current.ListID)
		if err != nil {
			return err
		}

		// Re-read under the list lock.
		tasks, err := r.listTasks(ctx, tx, list.ListID)
		if err != nil {
			return err
		}
		idx := -1
		for i := range tasks {
			if tasks[i].TaskID == taskID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return fmt.Errorf("task %s moved: %w", taskID, ErrTxAborted)
		}

		now := r.timestamp()
		task = tasks[idx]
		task.Completed = !task.Completed
		if task.Completed {
			task.CompletedAt = &now
			task.Position = completionPosition(tasks, task.TaskID)
		} else {
			task.CompletedAt = nil
		}
		task.UpdatedAt = now

		if err := tx.UpdateTask(ctx, task); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		tasks[idx] = task

		return r.saveList(ctx, tx, &list, tasks, now)
	})
	if err != nil {
		return Task{}, fmt.Errorf("toggle task: %w", err)
	}
	return task, nil
}

// DeleteTask physically removes a task and drops it from its list.
func (r *Repository) DeleteTask(ctx context.Context, userID, taskID string) error {
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		task, err := tx.GetTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		if task.UserID != userID {
			return ErrForbidden
		}

		list, err := lockOwnedList(ctx, tx, userID, task.ListID)
		if err != nil {
			return err
		}

		if err := tx.DeleteTask(ctx, taskID); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}

		tasks, err := r.listTasks(ctx, tx, list.ListID)
		if err != nil {
			return err
		}
		list.TaskIDs = removeID(list.TaskIDs, taskID)
		return r.saveList(ctx, tx, &list, tasks, r.timestamp())
	})
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	r.log.InfoContext(ctx, "task deleted", "task_id", taskID)
	return nil
}

// QueryTasks returns the tasks of userID matching q, ordered by position.
// Handled tasks are left out unless q.IncludeHandled is set.
func (r *Repository) QueryTasks(ctx context.Context, userID string, q TaskQuery) ([]Task, error) {
	if q.Priority != nil && !q.Priority.Valid() {
		var fe validation.FieldErrors
		fe.Add("priority", "priority must be one of low, medium, high")
		return nil, fe
	}

	tasks, err := r.storer.QueryTasks(ctx, TaskFilter{
		UserID:         &userID,
		Completed:      q.Completed,
		Priority:       q.Priority,
		IncludeHandled: q.IncludeHandled,
	})
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}

	if q.Overdue != nil {
		today := r.Today()
		filtered := tasks[:0]
		for _, t := range tasks {
			if t.IsOverdue(today) == *q.Overdue {
				filtered = append(filtered, t)
			}
		}
		tasks = filtered
	}

	if tasks == nil {
		tasks = []Task{}
	}
	return tasks, nil
}

// Reorder assigns new positions to tasks of one list. Every id must belong to
// the list or nothing is written.
func (r *Repository) Reorder(ctx context.Context, userID, listID string, positions []TaskPosition) (List, error) {
	var fe validation.FieldErrors
	if positions == nil {
		fe.Add("tasks", "tasks array is required")
	}
	for i, p := range positions {
		if p.TaskID == "" {
			fe.Add(fmt.Sprintf("tasks[%d].id", i), "id is required")
		}
		if p.Position < 0 {
			fe.Add(fmt.Sprintf("tasks[%d].position", i), "position must be a non-negative integer")
		}
	}
	if err := fe.ToError(); err != nil {
		return List{}, err
	}

	var list List
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		var err error
		list, err = lockOwnedList(ctx, tx, userID, listID)
		if err != nil {
			return err
		}

		tasks, err := r.listTasks(ctx, tx, list.ListID)
		if err != nil {
			return err
		}
		byID := make(map[string]int, len(tasks))
		for i, t := range tasks {
			byID[t.TaskID] = i
		}

		for _, p := range positions {
			if _, ok := byID[p.TaskID]; !ok {
				return fmt.Errorf("task %s: %w", p.TaskID, ErrNotFound)
			}
		}

		now := r.timestamp()
		for _, p := range positions {
			t := &tasks[byID[p.TaskID]]
			t.Position = p.Position
			t.UpdatedAt = now
			if err := tx.UpdateTask(ctx, *t); err != nil {
				return fmt.Errorf("update task %s: %w", t.TaskID, err)
			}
		}

		sortByPosition(tasks)
		list.Tasks = tasks
		return nil
	})
	if err != nil {
		return List{}, fmt.Errorf("reorder: %w", err)
	}
	return list, nil
}
