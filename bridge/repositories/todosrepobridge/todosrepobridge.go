// Package todosrepobridge exposes task and list operations over HTTP.
package todosrepobridge

import (
	"context"
	"net/http"
	"time"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

// Config holds configuration for the todo bridge
type Config struct {
	Log        *logger.Logger
	Repository *todosrepo.Repository
	Middleware []web.Middleware
}

type bridge struct {
	log        *logger.Logger
	repository *todosrepo.Repository
}

func newBridge(log *logger.Logger, repository *todosrepo.Repository) *bridge {
	return &bridge{
		log:        log,
		repository: repository,
	}
}

// AddHttpRoutes registers the todo routes on group, which is expected to be
// mounted at /api/todo behind authentication.
func AddHttpRoutes(group *web.RouteGroup, cfg Config) {
	b := newBridge(cfg.Log, cfg.Repository)

	group.POST("/tasks", b.httpCreateTask, cfg.Middleware...)
	group.GET("/tasks", b.httpQueryTasks, cfg.Middleware...)
	group.PUT("/tasks/{task_id}", b.httpUpdateTask, cfg.Middleware...)
	group.PUT("/tasks/{task_id}/toggle", b.httpToggleTask, cfg.Middleware...)
	group.DELETE("/tasks/{task_id}", b.httpDeleteTask, cfg.Middleware...)

	group.POST("/lists", b.httpCreateList, cfg.Middleware...)
	group.GET("/lists", b.httpListLists, cfg.Middleware...)
	group.GET("/lists/date/{date}", b.httpGetListByDate, cfg.Middleware...)
	group.GET("/lists/{list_id}", b.httpGetList, cfg.Middleware...)
	group.PUT("/lists/{list_id}/reorder", b.httpReorder, cfg.Middleware...)
	group.DELETE("/lists/{list_id}", b.httpDeleteList, cfg.Middleware...)

	group.GET("/stats", b.httpSummary, cfg.Middleware...)
}

func userID(ctx context.Context) (string, *errs.Error) {
	id, err := mid.GetUserID(ctx)
	if err != nil {
		return "", errs.New(errs.Unauthenticated, err)
	}
	return id, nil
}

// decodeError turns a web.Decode failure into a 400.
func decodeError(err error) *errs.Error {
	if fe := validation.GetFieldErrors(err); fe != nil {
		return errs.NewFieldErrors(fe)
	}
	return errs.Newf(errs.InvalidArgument, "decode: %s", err)
}

// parseDate reads a civil date in the repository time zone.
func (b *bridge) parseDate(field, raw string) (time.Time, error) {
	t, err := validation.ParseDate(raw, b.repository.Location())
	if err != nil {
		var fe validation.FieldErrors
		fe.Add(field, "invalid date %q, expected YYYY-MM-DD", raw)
		return time.Time{}, fe
	}
	return todosrepo.CivilDate(t), nil
}

// parseRange reads the optional startDate and endDate query parameters.
func (b *bridge) parseRange(r *http.Request) (start, end *time.Time, err error) {
	if raw := web.QueryParam(r, "startDate"); raw != "" {
		t, err := b.parseDate("startDate", raw)
		if err != nil {
			return nil, nil, err
		}
		start = &t
	}
	if raw := web.QueryParam(r, "endDate"); raw != "" {
		t, err := b.parseDate("endDate", raw)
		if err != nil {
			return nil, nil, err
		}
		end = &t
	}
	return start, end, nil
}
