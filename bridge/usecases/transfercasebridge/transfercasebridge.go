// Package transfercasebridge exposes manual transfers, transfer statistics
// and the daily schedule over HTTP.
package transfercasebridge

import (
	"context"
	"net/http"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/fopbridge"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/core/usecases/transfercase"
	"github.com/jrazmi/allmyducks/infrastructure/scheduler"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// ScheduleStatus reports the daily transfer job.
type ScheduleStatus func() (scheduler.Status, error)

// Config holds configuration for the transfer bridge
type Config struct {
	Log        *logger.Logger
	Engine     *transfercase.Engine
	Schedule   ScheduleStatus
	Middleware []web.Middleware
}

// RunResult is the body of a successful manual transfer.
type RunResult struct {
	Identified  int `json:"identified"`
	Transferred int `json:"transferred"`
}

type bridge struct {
	log      *logger.Logger
	engine   *transfercase.Engine
	schedule ScheduleStatus
}

// AddHttpRoutes registers the transfer routes on group, which is expected to
// be mounted at /api/transfer behind authentication.
func AddHttpRoutes(group *web.RouteGroup, cfg Config) {
	b := &bridge{
		log:      cfg.Log,
		engine:   cfg.Engine,
		schedule: cfg.Schedule,
	}

	group.POST("", b.httpExecute, cfg.Middleware...)
	group.GET("/stats", b.httpStats, cfg.Middleware...)
	group.GET("/schedule", b.httpSchedule, cfg.Middleware...)
}

// httpExecute runs a transfer for the caller only. Any failure is reported
// as a generic 500.
func (b *bridge) httpExecute(ctx context.Context, r *http.Request) web.Encoder {
	user, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	result, err := b.engine.Execute(ctx, transfercase.Request{UserID: &user})
	if err != nil {
		return errs.New(errs.InternalOnlyLog, err)
	}
	if !result.Success {
		return errs.Newf(errs.InternalOnlyLog, "transfer failed for user %s", user)
	}

	return fopbridge.NewRecordResponse(RunResult{
		Identified:  result.Identified,
		Transferred: result.Transferred,
	})
}

func (b *bridge) httpStats(ctx context.Context, r *http.Request) web.Encoder {
	user, err := mid.GetUserID(ctx)
	if err != nil {
		return errs.New(errs.Unauthenticated, err)
	}

	stats, err := b.engine.Stats(ctx, user)
	if err != nil {
		return errs.FromCore(err)
	}

	return fopbridge.NewRecordResponse(stats)
}

func (b *bridge) httpSchedule(ctx context.Context, r *http.Request) web.Encoder {
	if b.schedule == nil {
		return errs.Newf(errs.Unavailable, "transfer schedule is not running")
	}

	status, err := b.schedule()
	if err != nil {
		return errs.New(errs.Unavailable, err)
	}

	return fopbridge.NewRecordResponse(status)
}
