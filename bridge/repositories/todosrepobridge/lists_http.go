package todosrepobridge

import (
	"context"
	"net/http"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/fopbridge"
	"github.com/jrazmi/allmyducks/infrastructure/web"
)

func (b *bridge) httpCreateList(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	var input CreateListInput
	if err := web.Decode(r, &input); err != nil {
		return decodeError(err)
	}

	date, err := b.parseDate("date", input.Date)
	if err != nil {
		return errs.FromCore(err)
	}

	list, err := b.repository.CreateList(ctx, user, date)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewCreatedResponse(MarshalListToBridge(list, b.repository.Today()))
}

func (b *bridge) httpListLists(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	start, end, err := b.parseRange(r)
	if err != nil {
		return errs.FromCore(err)
	}

	lists, err := b.repository.ListLists(ctx, user, start, end)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewListResponse(MarshalListsToBridge(lists, b.repository.Today()))
}

func (b *bridge) httpGetList(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	list, err := b.repository.GetList(ctx, user, web.Param(r, "list_id"))
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(MarshalListToBridge(list, b.repository.Today()))
}

func (b *bridge) httpGetListByDate(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	date, err := b.parseDate("date", web.Param(r, "date"))
	if err != nil {
		return errs.FromCore(err)
	}

	list, err := b.repository.GetListByDate(ctx, user, date)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(MarshalListToBridge(list, b.repository.Today()))
}

func (b *bridge) httpReorder(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	var input ReorderInput
	if err := web.Decode(r, &input); err != nil {
		return decodeError(err)
	}

	list, err := b.repository.Reorder(ctx, user, web.Param(r, "list_id"), input.Tasks)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(MarshalListToBridge(list, b.repository.Today()))
}

func (b *bridge) httpDeleteList(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	if err := b.repository.DeleteList(ctx, user, web.Param(r, "list_id")); err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewEmptyResponse()
}

func (b *bridge) httpSummary(ctx context.Context, r *http.Request) web.Encoder {
	user, appErr := userID(ctx)
	if appErr != nil {
		return appErr
	}

	start, end, err := b.parseRange(r)
	if err != nil {
		return errs.FromCore(err)
	}

	summary, err := b.repository.Summary(ctx, user, start, end)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(summary)
}
