package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachly/backend/internal/storage/models"
)

func newCompanyCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "company",
		Short: "Manage companies",
	}

	create := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("company name must not be empty")
			}
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			c := &models.Company{Name: name, CreatedAt: time.Now()}
			if prompt, _ := cmd.Flags().GetString("prompt"); strings.TrimSpace(prompt) != "" {
				c.CorporatePrompt = &prompt
			}
			if err := store.CreateCompany(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		},
	}
	create.Flags().String("prompt", "", "corporate prompt added to every conversation of the company")

	members := &cobra.Command{
		Use:   "members <company-id>",
		Short: "List the users of a company",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if _, err := store.GetCompany(cmd.Context(), args[0]); err != nil {
				return err
			}
			users, err := store.ListCompanyUsers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, u := range users {
				role := "member"
				if u.IsAdmin {
					role = "admin"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", u.ID, u.Email, role)
			}
			return nil
		},
	}

	cmd.AddCommand(create, members)
	return cmd
}
