package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jrazmi/allmyducks/app/allmyducks/config"
	"github.com/jrazmi/allmyducks/core/repositories/todosrepo"
	"github.com/jrazmi/allmyducks/core/usecases/transfercase"
	"github.com/jrazmi/allmyducks/sdk/validation"
	"github.com/spf13/cobra"
)

// TransferFlags scope a one-off transfer run.
type TransferFlags struct {
	User   string
	Cutoff string
	Target string
	Stats  bool
}

// TransferCmd runs the transfer engine once against the configured database.
func TransferCmd(env *Env) *cobra.Command {
	var flags TransferFlags

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Roll incomplete tasks from past days onto a target day",
		Long: `Run the daily transfer once, outside the service scheduler.

Dates are YYYY-MM-DD and default to today in the configured time zone.

Examples:
  tooling transfer
  tooling transfer --user 42 --target 2024-05-02
  tooling transfer --user 42 --stats`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Transfer(cmd.Context(), env, flags, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&flags.User, "user", "", "only transfer tasks owned by this user id")
	cmd.Flags().StringVar(&flags.Cutoff, "cutoff", "", "transfer tasks dated before this day")
	cmd.Flags().StringVar(&flags.Target, "target", "", "day whose list receives the tasks")
	cmd.Flags().BoolVar(&flags.Stats, "stats", false, "print the candidate breakdown for --user instead of transferring")

	return cmd
}

// Transfer executes one run and writes its result as JSON to out.
func Transfer(ctx context.Context, env *Env, flags TransferFlags, out io.Writer) error {
	req, err := flags.request()
	if err != nil {
		return err
	}
	if flags.Stats && req.UserID == nil {
		return errors.New("--stats requires --user")
	}

	loc, err := env.Config.Location()
	if err != nil {
		return err
	}

	store, err := config.OpenStore(ctx, env.Log, env.Config)
	if err != nil {
		return err
	}
	defer store.Close()

	repo := todosrepo.NewRepository(env.Log, store.Storer, todosrepo.WithLocation(loc))
	engine := transfercase.NewEngine(env.Log, repo, transfercase.WithConcurrency(env.Config.Transfer.Concurrency))

	var result any
	if flags.Stats {
		result, err = engine.Stats(ctx, *req.UserID)
	} else {
		result, err = engine.Execute(ctx, req)
	}
	if err != nil {
		return fmt.Errorf("transfer: %w", err)
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("writing result: %w", err)
	}

	if res, ok := result.(transfercase.Result); ok && !res.Success {
		return fmt.Errorf("transfer failed for %d user groups", len(res.FailedGroups))
	}
	return nil
}

func (f TransferFlags) request() (transfercase.Request, error) {
	var req transfercase.Request
	if f.User != "" {
		user := f.User
		req.UserID = &user
	}

	var err error
	if req.Cutoff, err = parseDay("cutoff", f.Cutoff); err != nil {
		return req, err
	}
	if req.Target, err = parseDay("target", f.Target); err != nil {
		return req, err
	}
	return req, nil
}

// parseDay leaves an empty value as the zero time so the engine uses today.
func parseDay(name, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := validation.ParseDate(raw, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s: %w", name, err)
	}
	return todosrepo.CivilDate(t), nil
}
