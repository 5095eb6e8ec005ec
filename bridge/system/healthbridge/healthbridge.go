// Package healthbridge serves the liveness and API status routes.
package healthbridge

import (
	"context"
	"net/http"
	"time"

	"github.com/jrazmi/allmyducks/bridge/scaffolding/errs"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/fopbridge"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// StatusCheck pings a dependency.
type StatusCheck func(ctx context.Context) error

// Config holds configuration for the health bridge
type Config struct {
	Log      *logger.Logger
	Service  string
	Build    string
	Database StatusCheck
	Timeout  time.Duration
}

// Health is the body of GET /api/health.
type Health struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Time     string `json:"time"`
}

// Info is the body of GET /api.
type Info struct {
	Service  string             `json:"service"`
	Build    string             `json:"build"`
	Status   string             `json:"status"`
	Requests mid.RequestMetrics `json:"requests"`
}

type bridge struct {
	log     *logger.Logger
	cfg     Config
	timeout time.Duration
}

// AddHttpRoutes registers the unauthenticated status routes under /api.
func AddHttpRoutes(group *web.RouteGroup, cfg Config) {
	b := &bridge{log: cfg.Log, cfg: cfg, timeout: cfg.Timeout}
	if b.timeout <= 0 {
		b.timeout = 2 * time.Second
	}

	group.GET("/health", b.httpHealth)
	group.GET("", b.httpInfo)
}

func (b *bridge) httpHealth(ctx context.Context, r *http.Request) web.Encoder {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	h := Health{Status: "ok", Database: "up", Time: time.Now().UTC().Format(time.RFC3339)}
	if b.cfg.Database != nil {
		if err := b.cfg.Database(ctx); err != nil {
			b.log.WarnContext(ctx, "health check failed", "error", err)
			return errs.Newf(errs.Unavailable, "database unavailable")
		}
	}

	return fopbridge.NewRecordResponse(h)
}

func (b *bridge) httpInfo(ctx context.Context, r *http.Request) web.Encoder {
	return fopbridge.NewRecordResponse(Info{
		Service:  b.cfg.Service,
		Build:    b.cfg.Build,
		Status:   "running",
		Requests: mid.Snapshot(),
	})
}
