package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/auth"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage guest and admin accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserAdminCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var nu auth.NewUser

	c := &cobra.Command{
		Use:   "add",
		Short: "Add an account (email/password)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.users.CreateUser(ctx, nu)
			if err != nil {
				return err
			}
			role := "guest"
			if u.Admin {
				role = "admin"
			}
			fmt.Fprintf(os.Stdout, "created %s %q (id %d)\n", role, u.Email, u.ID)
			return nil
		},
	}

	c.Flags().StringVar(&nu.Email, "email", "", "login email")
	c.Flags().StringVar(&nu.Password, "password", "", "password")
	c.Flags().StringVar(&nu.Name, "name", "", "display name")
	c.Flags().StringVar(&nu.Phone, "phone", "", "contact phone")
	c.Flags().BoolVar(&nu.Admin, "admin", false, "grant admin access")
	_ = c.MarkFlagRequired("email")
	_ = c.MarkFlagRequired("password")
	return c
}

func newUserAdminCmd() *cobra.Command {
	var email string
	var revoke bool

	c := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke admin access for an existing account",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.users.SetAdmin(ctx, email, !revoke); err != nil {
				return err
			}
			verb := "granted"
			if revoke {
				verb = "revoked"
			}
			fmt.Fprintf(os.Stdout, "admin %s for %q\n", verb, email)
			return nil
		},
	}

	c.Flags().StringVar(&email, "email", "", "account email")
	c.Flags().BoolVar(&revoke, "revoke", false, "remove admin access instead")
	_ = c.MarkFlagRequired("email")
	return c
}
