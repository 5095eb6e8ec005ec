// Package config layers the service configuration from an optional TOML file
// and the environment, and opens the configured todo store.
package config

import (
	"fmt"
	"time"

	"github.com/jrazmi/allmyducks/core/usecases/transfercase"
	"github.com/jrazmi/allmyducks/infrastructure/jwtauth"
	"github.com/jrazmi/allmyducks/infrastructure/postgresdb"
	"github.com/jrazmi/allmyducks/infrastructure/sqlitedb"
	"github.com/jrazmi/allmyducks/infrastructure/web"
	"github.com/jrazmi/allmyducks/sdk/environment"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// site wide globals.
const (
	ApiRoute      = "/api"
	TodoRoute     = "/todo"
	TransferRoute = "/transfer"
	TransferJob   = "daily-transfer"
)

// Database drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Service holds settings that span components.
type Service struct {
	Timezone string `toml:"timezone" env:"TIMEZONE" default:"UTC"`
}

// Database selects the store backing the repositories.
type Database struct {
	Driver         string `toml:"driver" env:"DB_DRIVER" default:"sqlite"`
	SkipMigrations bool   `toml:"skip_migrations" env:"DB_SKIP_MIGRATIONS"`
}

// Transfer configures the daily job and the engine.
type Transfer struct {
	Schedule         string `toml:"schedule" env:"TRANSFER_SCHEDULE" default:"1 0 * * *"`
	ScheduleDisabled bool   `toml:"schedule_disabled" env:"TRANSFER_SCHEDULE_DISABLED"`
	transfercase.Config
}

// Config is the full service configuration. Each section is parsed with the
// same prefix so every variable reads ALLMYDUCKS_<NAME>.
type Config struct {
	Service  Service            `toml:"service"`
	Log      logger.Options     `toml:"log"`
	Web      web.ServerConfig   `toml:"web"`
	HTTP     web.HandlerOptions `toml:"http"`
	Database Database           `toml:"database"`
	Postgres postgresdb.Options `toml:"postgres"`
	SQLite   sqlitedb.Options   `toml:"sqlite"`
	Auth     jwtauth.Options    `toml:"auth"`
	Transfer Transfer           `toml:"transfer"`
}

// Load reads .env, then the TOML file named by <prefix>_CONFIG_FILE, then the
// prefixed environment. Environment values win over the file.
func Load(prefix string) (Config, error) {
	_ = environment.LoadEnv()

	var cfg Config
	path := environment.GetNamespaceEnvOrDefault(prefix, "CONFIG_FILE", "")
	if err := environment.LoadFile(path, &cfg); err != nil {
		return Config{}, err
	}

	sections := []struct {
		name string
		dst  any
	}{
		{"service", &cfg.Service},
		{"log", &cfg.Log},
		{"web", &cfg.Web},
		{"http", &cfg.HTTP},
		{"database", &cfg.Database},
		{"postgres", &cfg.Postgres},
		{"sqlite", &cfg.SQLite},
		{"auth", &cfg.Auth},
		{"transfer", &cfg.Transfer},
		{"transfer engine", &cfg.Transfer.Config},
	}
	for _, s := range sections {
		if err := environment.ParseEnvTags(prefix, s.dst); err != nil {
			return Config{}, fmt.Errorf("parsing %s config: %w", s.name, err)
		}
	}

	switch cfg.Database.Driver {
	case DriverPostgres, DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	return cfg, nil
}

// Location resolves the configured time zone.
func (c Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Service.Timezone)
	if err != nil {
		return nil, fmt.Errorf("loading timezone %q: %w", c.Service.Timezone, err)
	}
	return loc, nil
}
