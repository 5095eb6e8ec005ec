// Package transfercase rolls incomplete tasks from past days onto the
// current day's list, one transaction per user.
package transfercase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"golang.org/x/sync/errgroup"
)

// Repository is the slice of todosrepo.Repository the engine needs.
type Repository interface {
	Today() time.Time
	TransferCandidates(ctx context.Context, filter todosrepo.CandidateFilter) ([]todosrepo.Task, error)
	TransferTasks(ctx context.Context, userID string, target time.Time, candidates []todosrepo.Task) (int, error)
}

// Request scopes a run. Zero dates default to today.
type Request struct {
	UserID *string
	Cutoff time.Time
	Target time.Time
}

// Result summarizes a run. Success is false when any user group failed.
type Result struct {
	Identified   int      `json:"identified"`
	Transferred  int      `json:"transferred"`
	Success      bool     `json:"success"`
	FailedGroups []string `json:"failedGroups,omitempty"`
}

// Stats breaks down the tasks a run would pick up.
type Stats struct {
	Total      int            `json:"total"`
	ByPriority map[string]int `json:"byPriority"`
	ByAge      map[string]int `json:"byAge"`
}

// Age buckets reported by Stats.
const (
	AgeOneDay    = "1"
	AgeFewDays   = "2-3"
	AgeWeek      = "4-7"
	AgeOverAWeek = "8+"
)

const defaultGroups = 4

// Config holds engine settings.
type Config struct {
	Concurrency int `toml:"concurrency" env:"TRANSFER_CONCURRENCY" default:"4"`
}

// Engine runs transfers.
type Engine struct {
	log         *logger.Logger
	repo        Repository
	concurrency int
}

// Option configures an Engine.
type Option func(*Engine)

// WithConcurrency bounds how many user groups transfer at once.
func WithConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// NewEngine constructs an Engine.
func NewEngine(log *logger.Logger, repo Repository, opts ...Option) *Engine {
	e := &Engine{
		log:         log,
		repo:        repo,
		concurrency: defaultGroups,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type group struct {
	userID string
	tasks  []todosrepo.Task
}

// groupByUser keeps users in first seen order and tasks in fetch order.
func groupByUser(tasks []todosrepo.Task) []group {
	idx := make(map[string]int)
	var groups []group
	for _, t := range tasks {
		i, ok := idx[t.UserID]
		if !ok {
			i = len(groups)
			idx[t.UserID] = i
			groups = append(groups, group{userID: t.UserID})
		}
		groups[i].tasks = append(groups[i].tasks, t)
	}
	return groups
}

// Execute identifies incomplete, unhandled tasks dated before the cutoff and
// copies them onto each owner's target list. A failing user group is rolled
// back and recorded in the result without stopping the others. An error is
// returned only when candidates cannot be read.
func (e *Engine) Execute(ctx context.Context, req Request) (Result, error) {
	today := e.repo.Today()
	if req.Cutoff.IsZero() {
		req.Cutoff = today
	}
	if req.Target.IsZero() {
		req.Target = today
	}

	candidates, err := e.repo.TransferCandidates(ctx, todosrepo.CandidateFilter{
		UserID: req.UserID,
		Cutoff: req.Cutoff,
	})
	if err != nil {
		return Result{}, fmt.Errorf("identify candidates: %w", err)
	}

	result := Result{
		Identified: len(candidates),
		Success:    true,
	}
	if len(candidates) == 0 {
		e.log.InfoContext(ctx, "transfer: nothing to transfer", "cutoff", req.Cutoff.Format(time.DateOnly))
		return result, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(e.concurrency)

	for _, grp := range groupByUser(candidates) {
		g.Go(func() error {
			n, err := e.repo.TransferTasks(ctx, grp.userID, req.Target, grp.tasks)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				e.log.ErrorContext(ctx, "transfer: user group failed",
					"user_id", grp.userID,
					"candidates", len(grp.tasks),
					"error", err)
				result.Success = false
				result.FailedGroups = append(result.FailedGroups, grp.userID)
				return nil
			}
			result.Transferred += n
			return nil
		})
	}
	// Group failures are recorded in result, so Wait never reports one.
	_ = g.Wait()

	e.log.InfoContext(ctx, "transfer: complete",
		"identified", result.Identified,
		"transferred", result.Transferred,
		"success", result.Success,
		"target", req.Target.Format(time.DateOnly))

	return result, nil
}

// AgeBucket places an age in days into one of the Stats buckets.
func AgeBucket(days int) string {
	switch {
	case days <= 1:
		return AgeOneDay
	case days <= 3:
		return AgeFewDays
	case days <= 7:
		return AgeWeek
	default:
		return AgeOverAWeek
	}
}

// Stats reports what a transfer for userID would pick up today.
func (e *Engine) Stats(ctx context.Context, userID string) (Stats, error) {
	today := e.repo.Today()
	candidates, err := e.repo.TransferCandidates(ctx, todosrepo.CandidateFilter{
		UserID: &userID,
		Cutoff: today,
	})
	if err != nil {
		return Stats{}, fmt.Errorf("identify candidates: %w", err)
	}

	stats := Stats{
		Total:      len(candidates),
		ByPriority: make(map[string]int, len(todosrepo.Priorities)),
		ByAge: map[string]int{
			AgeOneDay:    0,
			AgeFewDays:   0,
			AgeWeek:      0,
			AgeOverAWeek: 0,
		},
	}
	for _, p := range todosrepo.Priorities {
		stats.ByPriority[string(p)] = 0
	}

	for _, t := range candidates {
		p := t.Priority
		if !p.Valid() {
			p = todosrepo.PriorityMedium
		}
		stats.ByPriority[string(p)]++
		stats.ByAge[AgeBucket(t.AgeInDays(today))]++
	}
	return stats, nil
}
