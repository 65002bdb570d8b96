package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newTokenCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue and inspect access tokens",
	}

	issue := &cobra.Command{
		Use:   "issue <user-id>",
		Short: "Issue an access token for an existing user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.GetUser(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			token, err := e.tokens().Issue(u.ID, u.Email)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	verify := &cobra.Command{
		Use:   "verify <token>",
		Short: "Validate a token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			claims, err := e.tokens().Validate(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "User:     %s\n", claims.UserID())
			fmt.Fprintf(out, "Email:    %s\n", claims.Email)
			if claims.ExpiresAt != nil {
				fmt.Fprintf(out, "Expires:  %s\n", claims.ExpiresAt.Time.UTC().Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.AddCommand(issue, verify)
	return cmd
}
