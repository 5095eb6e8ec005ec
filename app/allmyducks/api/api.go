// Package api mounts every bridge on the web handler.
package api

import (
	"github.com/jrazmi/allmyducks/app/allmyducks/config"
	"github.com/jrazmi/allmyducks/bridge/repositories/todosrepobridge"
	"github.com/jrazmi/allmyducks/bridge/scaffolding/mid"
	"github.com/jrazmi/allmyducks/bridge/system/healthbridge"
	"github.com/jrazmi/allmyducks/bridge/usecases/transfercasebridge"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/usecases/transfercase"
	"github.com/jrazmi/allmyducks/infrastructure/jwtauth"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// Config carries the dependencies shared by the route groups.
type Config struct {
	Service    string
	Build      string
	Log        *logger.Logger
	Auth       *jwtauth.Auth
	Database   healthbridge.StatusCheck
	Repository *todosrepo.Repository
	Engine     *transfercase.Engine
	Schedule   transfercasebridge.ScheduleStatus
}

// AddHandlers registers the public status routes and the authenticated todo
// and transfer routes under /api.
func AddHandlers(app *web.WebHandler, cfg Config) *web.WebHandler {
	api := app.Group(config.ApiRoute)

	healthbridge.AddHttpRoutes(api, healthbridge.Config{
		Log:      cfg.Log,
		Service:  cfg.Service,
		Build:    cfg.Build,
		Database: cfg.Database,
	})

	authed := api.Group("", mid.Authenticate(cfg.Auth, jwtauth.ParseBearer))

	todosrepobridge.AddHttpRoutes(authed.Group(config.TodoRoute), todosrepobridge.Config{
		Log:        cfg.Log,
		Repository: cfg.Repository,
	})

	transfercasebridge.AddHttpRoutes(authed.Group(config.TransferRoute), transfercasebridge.Config{
		Log:      cfg.Log,
		Engine:   cfg.Engine,
		Schedule: cfg.Schedule,
	})

	return app
}
