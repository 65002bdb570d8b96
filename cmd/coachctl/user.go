package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/coachly/backend/internal/storage/models"
)

func newUserCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	create := &cobra.Command{
		Use:   "create <email>",
		Short: "Create a user and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := strings.TrimSpace(args[0])
			if !strings.Contains(email, "@") {
				return fmt.Errorf("invalid email %q", email)
			}
			companyID, _ := cmd.Flags().GetString("company")
			admin, _ := cmd.Flags().GetBool("admin")
			language, _ := cmd.Flags().GetString("language")
			if admin && companyID == "" {
				return errors.New("--admin needs --company")
			}

			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			u := &models.User{Email: email, AuthProvider: "local", IsAdmin: admin, CreatedAt: time.Now()}
			if companyID != "" {
				if _, err := store.GetCompany(cmd.Context(), companyID); err != nil {
					return err
				}
				u.CompanyID = &companyID
			}
			if err := store.CreateUser(cmd.Context(), u, language); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), u.ID)
			return nil
		},
	}
	create.Flags().String("company", "", "company id the user belongs to")
	create.Flags().Bool("admin", false, "make the user an admin of the company")
	create.Flags().String("language", "de", "preferred language of the user")

	show := &cobra.Command{
		Use:   "show <email>",
		Short: "Show a user by email",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := e.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			u, err := store.GetUserByEmail(cmd.Context(), strings.TrimSpace(args[0]))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:       %s\n", u.ID)
			fmt.Fprintf(out, "Email:    %s\n", u.Email)
			if u.CompanyID != nil {
				fmt.Fprintf(out, "Company:  %s\n", *u.CompanyID)
			}
			fmt.Fprintf(out, "Admin:    %t\n", u.IsAdmin)
			fmt.Fprintf(out, "Created:  %s\n", u.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	cmd.AddCommand(create, show)
	return cmd
}
