package config

import (
	"context"
	"fmt"

	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo/stores/todospgxstore"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo/stores/todossqlitestore"
	"github.com/jrazmi/allmyducks/infrastructure/postgresdb"
	"github.com/jrazmi/allmyducks/infrastructure/sqlitedb"
	"github.com/jrazmi/allmyducks/sdk/logger"
)

// Store is an opened todo store with its lifecycle hooks.
type Store struct {
	Driver  string
	Storer  todosrepo.Storer
	Check   func(ctx context.Context) error
	Migrate func(ctx context.Context) error
	Close   func()
}

// OpenStore connects to the configured database. Callers must call Close.
func OpenStore(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	switch cfg.Database.Driver {
	case DriverPostgres:
		pool, err := postgresdb.New(ctx, cfg.Postgres, postgresdb.WithLogger(log.Logger))
		if err != nil {
			return Store{}, fmt.Errorf("configuring postgres support: %w", err)
		}
		return Store{
			Driver: DriverPostgres,
			Storer: todospgxstore.NewStore(log, pool),
			Check: func(ctx context.Context) error {
				return postgresdb.StatusCheck(ctx, pool)
			},
			Migrate: func(ctx context.Context) error {
				return postgresdb.Migrate(ctx, pool, log.Logger)
			},
			Close: pool.Close,
		}, nil

	default:
		db, err := sqlitedb.Open(ctx, cfg.SQLite, sqlitedb.WithLogger(log.Logger))
		if err != nil {
			return Store{}, fmt.Errorf("configuring sqlite support: %w", err)
		}
		return Store{
			Driver: DriverSQLite,
			Storer: todossqlitestore.NewStore(log, db),
			Check: func(ctx context.Context) error {
				return sqlitedb.StatusCheck(ctx, db)
			},
			Migrate: func(ctx context.Context) error {
				if err := sqlitedb.Migrate(ctx, db); err != nil {
					return err
				}
				v, err := sqlitedb.Version(ctx, db)
				if err != nil {
					return err
				}
				log.InfoContext(ctx, "migrations complete", "driver", DriverSQLite, "version", v)
				return nil
			},
			Close: func() { db.Close() },
		}, nil
	}
}
