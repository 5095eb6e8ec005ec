package todosrepobridge

import (
	"context"
	"net/http"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/fopbridge"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/validation"
)

func (b *bridge) httpCreateTask(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	var input CreateTaskInput
	if err := web.Decode(r, &input); err != nil {
		return decodeError(err)
	}

	task, err := b.repository.CreateTask(ctx, user, MarshalCreateToRepository(input))
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewCreatedResponse(MarshalTaskToBridge(task, b.repository.Today()))
}

func (b *bridge) httpUpdateTask(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	var input UpdateTaskInput
	if err := web.Decode(r, &input); err != nil {
		return decodeError(err)
	}

	task, err := b.repository.UpdateTask(ctx, user, web.Param(r, "task_id"), MarshalUpdateToRepository(input))
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(MarshalTaskToBridge(task, b.repository.Today()))
}

func (b *bridge) httpToggleTask(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	task, err := b.repository.ToggleTask(ctx, user, web.Param(r, "task_id"))
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(MarshalTaskToBridge(task, b.repository.Today()))
}

func (b *bridge) httpDeleteTask(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	if err := b.repository.DeleteTask(ctx, user, web.Param(r, "task_id")); err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewEmptyResponse()
}

func (b *bridge) httpQueryTasks(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	q, err := parseTaskQuery(r)
	if err != nil {
		return errs.FromCore(err)
	}

	tasks, err := b.repository.QueryTasks(ctx, user, q)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewListResponse(MarshalTasksToBridge(tasks, b.repository.Today()))
}

func parseTaskQuery(r *http.Request) (todosrepo.TaskQuery, error) {
	var (
		q  todosrepo.TaskQuery
		fe validation.FieldErrors
	)

	var err error
	if q.Completed, err = web.QueryBool(r, "completed"); err != nil {
		fe.Add("completed", "%s", err)
	}
	if q.Overdue, err = web.QueryBool(r, "overdue"); err != nil {
		fe.Add("overdue", "%s", err)
	}
	includeHandled, err := web.QueryBool(r, "includeHandled")
	if err != nil {
		fe.Add("includeHandled", "%s", err)
	} else if includeHandled != nil {
		q.IncludeHandled = *includeHandled
	}

	if raw := web.QueryParam(r, "priority"); raw != "" {
		p, err := todosrepo.ParsePriority(raw)
		if err != nil {
			fe.Add("priority", "priority must be one of low, medium, high")
		} else {
			q.Priority = &p
		}
	}

	return q, fe.ToError()
}
