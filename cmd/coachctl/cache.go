package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCacheCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the summary cache",
	}

	sweep := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired cache entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := e.openCache()
			if err != nil {
				return err
			}
			defer release()

			n, err := store.Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d expired entries\n", n)
			return nil
		},
	}

	clearCmd := &cobra.Command{
		Use:   "clear <subject>",
		Short: "Delete every cache entry of a user or company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := e.openCache()
			if err != nil {
				return err
			}
			defer release()

			if err := store.DeleteAll(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "cleared cache of %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(sweep, clearCmd)
	return cmd
}
