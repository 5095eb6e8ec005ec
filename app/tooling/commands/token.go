package commands

import (
	"fmt"
	"io"

	"github.com/jrazmi/allmyducks/infrastructure/jwtauth"
	"github.com/spf13/cobra"
)

// TokenCmd mints a bearer token for local development.
func TokenCmd(env *Env) *cobra.Command {
	var user string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a development bearer token",
		Long: `Sign a token with the configured JWT secret so the API can be called
without an identity provider.

Examples:
  tooling token --user 42
  curl -H "Authorization: Bearer $(tooling token --user 42)" localhost:8080/api/todo/lists`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return Token(env, user, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&user, "user", "", "user id placed in the sub claim")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

// Token writes a signed token for user to out.
func Token(env *Env, user string, out io.Writer) error {
	auth, err := jwtauth.New(env.Config.Auth)
	if err != nil {
		return fmt.Errorf("configuring auth: %w", err)
	}

	token, err := auth.Issue(user)
	if err != nil {
		return fmt.Errorf("issuing token: %w", err)
	}

	_, err = fmt.Fprintln(out, token)
	return err
}
