// Package todosrepo owns the daily list and task model: ordering, cached list
// statistics and the per user unit of work used by task transfer.
package todosrepo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// Set of errors surfaced by the repository and its stores.
var (
	ErrNotFound      = errors.New("not found")
	ErrForbidden     = errors.New("not owned by the requesting user")
	ErrDuplicateList = errors.New("a list already exists for this date")
	ErrTxAborted     = errors.New("transaction aborted")
	ErrUnavailable   = errors.New("storage unavailable")
)

// ========================================
// STORER INTERFACE
// ========================================

// Storer is the persistence contract for lists and tasks. Every method may be
// called on the Storer handed to a WithinTx callback, in which case it runs
// inside that transaction.
type Storer interface {
	// WithinTx runs fn in one transaction. Calling it on a transactional
	// Storer reuses the open transaction.
	WithinTx(ctx context.Context, fn func(tx Storer) error) error

	InsertList(ctx context.Context, list List) error
	InsertListIfAbsent(ctx context.Context, list List) (List, error)
	GetList(ctx context.Context, listID string) (List, error)
	GetListForUpdate(ctx context.Context, listID string) (List, error)
	GetListByDate(ctx context.Context, userID string, date time.Time) (List, error)
	QueryLists(ctx context.Context, filter ListFilter) ([]List, error)
	UpdateList(ctx context.Context, list List) error
	DeleteList(ctx context.Context, listID string) error

	GetTask(ctx context.Context, taskID string) (Task, error)
	QueryTasks(ctx context.Context, filter TaskFilter) ([]Task, error)
	QueryCandidates(ctx context.Context, filter CandidateFilter) ([]Task, error)
	InsertTask(ctx context.Context, task Task) error
	UpdateTask(ctx context.Context, task Task) error
	DeleteTask(ctx context.Context, taskID string) error
	// MarkHandled flags a task as superseded only while it is still
	// incomplete and unhandled, and reports whether it did.
	MarkHandled(ctx context.Context, taskID string, at time.Time) (bool, error)
}

// ========================================
// REPOSITORY
// ========================================

// Repository provides access to lists and tasks for one user at a time.
type Repository struct {
	log    *logger.Logger
	storer Storer
	now    func() time.Time
	loc    *time.Location
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithLocation sets the zone that defines "today".
func WithLocation(loc *time.Location) Option {
	return func(r *Repository) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewRepository creates a new todos repository.
func NewRepository(log *logger.Logger, storer Storer, opts ...Option) *Repository {
	r := &Repository{
		log:    log,
		storer: storer,
		now:    time.Now,
		loc:    time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Today is the current calendar day in the configured location.
func (r *Repository) Today() time.Time {
	return Today(r.now(), r.loc)
}

// Location is the zone that defines calendar days.
func (r *Repository) Location() *time.Location {
	return r.loc
}

func (r *Repository) timestamp() time.Time {
	return r.now().UTC()
}

// saveList recalculates the cached statistics of list from tasks and writes
// its references and statistics.
func (r *Repository) saveList(ctx context.Context, tx Storer, list *List, tasks []Task, now time.Time) error {
	list.Statistics = CalculateStatistics(list.TaskIDs, tasks)
	list.UpdatedAt = now
	if err := tx.UpdateList(ctx, *list); err != nil {
		return fmt.Errorf("update list: %w", err)
	}
	return nil
}

// lockOwnedList locks the list row and checks that userID owns it.
func lockOwnedList(ctx context.Context, tx Storer, userID, listID string) (List, error) {
	list, err := tx.GetListForUpdate(ctx, listID)
	if err != nil {
		return List{}, fmt.Errorf("get list: %w", err)
	}
	if list.UserID != userID {
		return List{}, ErrForbidden
	}
	return list, nil
}

func (r *Repository) listTasks(ctx context.Context, s Storer, listID string) ([]Task, error) {
	tasks, err := s.QueryTasks(ctx, TaskFilter{ListID: &listID, IncludeHandled: true})
	if err != nil {
		return nil, fmt.Errorf("query list tasks: %w", err)
	}
	return tasks, nil
}

// =============================================================================
// Validation

func validateContent(fe *validation.FieldErrors, content string) {
	switch n := utf8.RuneCountInString(content); {
	case n == 0:
		fe.Add("content", "content is required")
	case n > MaxContentLength:
		fe.Add("content", "content must be at most %d characters", MaxContentLength)
	}
}

func validatePosition(fe *validation.FieldErrors, field string, pos *int) {
	if pos != nil && *pos < 0 {
		fe.Add(field, "position must be a non-negative integer")
	}
}

func normalizeContent(s string) string {
	return strings.TrimSpace(s)
}
