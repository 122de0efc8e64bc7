package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/seed"
)

func newSeedCmd() *cobra.Command {
	admin := seed.DefaultAdmin

	c := &cobra.Command{
		Use:   "seed",
		Short: "Load the tables, menu and admin account; safe to run repeatedly",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			s := &seed.Seeder{Tables: a.tables, Menu: a.menu, Users: a.users, Log: a.log}
			res, err := s.Run(ctx, admin)
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "tables +%d, dishes +%d, beverages +%d\n", res.Tables, res.Dishes, res.Beverages)
			if res.Admin {
				fmt.Fprintf(os.Stdout, "created admin %q\n", admin.Email)
			}
			return nil
		},
	}

	c.Flags().StringVar(&admin.Email, "admin-email", admin.Email, "admin account email")
	c.Flags().StringVar(&admin.Password, "admin-password", admin.Password, "admin account password")
	return c
}
