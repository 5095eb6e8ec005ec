package todosrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TransferCandidates returns the tasks eligible to roll forward past
// filter.Cutoff.
func (r *Repository) TransferCandidates(ctx context.Context, filter CandidateFilter) ([]Task, error) {
	filter.Cutoff = CivilDate(filter.Cutoff)
	tasks, err := r.storer.QueryCandidates(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	return tasks, nil
}

// TransferTasks copies the candidates of one user onto that user's list for
// target in a single transaction. Each source is marked handled only if it
// is still incomplete and unhandled; sources that lost that race, or already
// sit on the target list, are skipped. It returns the number of copies made.
func (r *Repository) TransferTasks(ctx context.Context, userID string, target time.Time, candidates []Task) (int, error) {
	var transferred int
	err := r.storer.WithinTx(ctx, func(tx Storer) error {
		transferred = 0

		list, err := tx.InsertListIfAbsent(ctx, r.newList(userID, target))
		if err != nil {
			return fmt.Errorf("resolve target list: %w", err)
		}
		list, err = lockOwnedList(ctx, tx, userID, list.ListID)
		if err != nil {
			return err
		}

		tasks, err := r.listTasks(ctx, tx, list.ListID)
		if err != nil {
			return err
		}
		position, _ := nextPosition(tasks, func(Task) bool { return true })

		now := r.timestamp()
		for _, src := range candidates {
			if src.UserID != userID {
				return fmt.Errorf("task %s belongs to another user: %w", src.TaskID, ErrForbidden)
			}
			if src.ListID == list.ListID {
				continue
			}

			ok, err := tx.MarkHandled(ctx, src.TaskID, now)
			if err != nil {
				return fmt.Errorf("mark task %s handled: %w", src.TaskID, err)
			}
			if !ok {
				continue
			}

			copied := Task{
				TaskID:        uuid.NewString(),
				ListID:        list.ListID,
				UserID:        userID,
				Content:       src.Content,
				Position:      position,
				Priority:      src.Priority,
				OriginalDate:  src.OriginalDate,
				IsTransferred: true,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			if err := tx.InsertTask(ctx, copied); err != nil {
				return fmt.Errorf("insert copy of %s: %w", src.TaskID, err)
			}

			list.TaskIDs = append(list.TaskIDs, copied.TaskID)
			tasks = append(tasks, copied)
			position++
			transferred++
		}

		if transferred == 0 {
			return nil
		}
		return r.saveList(ctx, tx, &list, tasks, now)
	})
	if err != nil {
		return 0, fmt.Errorf("transfer tasks for user %s: %w", userID, err)
	}
	return transferred, nil
}
