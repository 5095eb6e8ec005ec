package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/jrazmi/allmyducks/app/allmyducks/config"
	"github.com/jrazmi/allmyducks/app/tooling/commands"
	"github.com/jrazmi/allmyducks/sdk/logger"
	"github.com/spf13/cobra"
)

var build = "develop"
var appName = "ALLMYDUCKS"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	env := &commands.Env{}

	root := &cobra.Command{
		Use:           "tooling",
		Short:         "Maintenance commands for the allmyducks service",
		Version:       build,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(appName)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			env.Config = cfg
			env.Log = logger.New(cfg.Log, logger.WithService(appName+"_TOOLING"))
			env.Log.InfoContext(cmd.Context(), "startup", "GOMAXPROCS", runtime.GOMAXPROCS(0), "command", cmd.Name())
			return nil
		},
	}

	root.AddCommand(commands.MigrateCmd(env))
	root.AddCommand(commands.TransferCmd(env))
	root.AddCommand(commands.TokenCmd(env))

	return root
}
