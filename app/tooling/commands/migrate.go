// Package commands implements the tooling subcommands.
package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/jrazmi/allmyducks/app/allmyducks/config"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/spf13/cobra"
)

// Env is filled by the root command before any subcommand runs.
type Env struct {
	Config config.Config
	Log    *logger.Logger
}

// MigrateCmd creates or upgrades the schema of the configured database.
func MigrateCmd(env *Env) *cobra.Command {
	var driver string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long: `Apply the embedded migrations to the configured database.

Examples:
  tooling migrate
  tooling migrate --driver postgres`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if driver != "" {
				env.Config.Database.Driver = driver
			}
			return Migrate(cmd.Context(), env)
		},
	}

	cmd.Flags().StringVar(&driver, "driver", "", "database driver to migrate (postgres or sqlite), defaults to the configured one")

	return cmd
}

// Migrate opens the store, checks it answers and runs its migrations.
func Migrate(ctx context.Context, env *Env) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	switch env.Config.Database.Driver {
	case config.DriverPostgres, config.DriverSQLite:
	default:
		return fmt.Errorf("unknown database driver %q", env.Config.Database.Driver)
	}

	store, err := config.OpenStore(ctx, env.Log, env.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	env.Log.InfoContext(ctx, "migration started", "driver", store.Driver, "step", "checking database status")
	if err := store.Check(ctx); err != nil {
		return fmt.Errorf("database status check failed: %w", err)
	}

	env.Log.InfoContext(ctx, "database status check successful", "step", "running migrations")
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}

	env.Log.InfoContext(ctx, "migrations completed successfully", "driver", store.Driver)
	return nil
}
