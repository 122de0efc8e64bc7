package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/reservations"
)

func newReservationCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reservation",
		Aliases: []string{"reservations", "res"},
		Short:   "Inspect and manage reservations",
	}
	cmd.AddCommand(newReservationListCmd())
	cmd.AddCommand(newReservationCancelCmd())
	cmd.AddCommand(newReservationAvailabilityCmd())
	return cmd
}

func newReservationListCmd() *cobra.Command {
	var email, date string
	var recent int

	c := &cobra.Command{
		Use:   "list",
		Short: "List reservations for a guest, a date, or the most recent ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			var rs []reservations.Reservation
			switch {
			case email != "":
				u, err := a.users.ByEmail(ctx, email)
				if err != nil {
					return fmt.Errorf("%s: %w", email, err)
				}
				rs, err = a.reservations.ListForUser(ctx, u.ID)
				if err != nil {
					return err
				}
			case date != "":
				d, err := time.Parse(time.DateOnly, date)
				if err != nil {
					return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
				}
				rs, err = a.reservations.ConfirmedOn(ctx, d)
				if err != nil {
					return err
				}
			default:
				rs, err = a.reservations.Recent(ctx, recent)
				if err != nil {
					return err
				}
			}
			return printReservations(os.Stdout, rs)
		},
	}

	c.Flags().StringVar(&email, "email", "", "only this guest's reservations")
	c.Flags().StringVar(&date, "date", "", "confirmed reservations on YYYY-MM-DD")
	c.Flags().IntVar(&recent, "recent", 20, "how many of the latest reservations to show")
	c.MarkFlagsMutuallyExclusive("email", "date")
	return c
}

func printReservations(out io.Writer, rs []reservations.Reservation) error {
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTIME\tTABLE\tPARTY\tSTATUS\tUSER")
	for _, r := range rs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%d\n",
			r.ID, r.Date.Format(time.DateOnly), r.Time, r.TableNumber, r.PartySize, r.Status, r.UserID)
	}
	return w.Flush()
}

func newReservationCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a reservation as the administrator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimPrefix(args[0], "#"), 10, 64)
			if err != nil {
				return fmt.Errorf("invalid reservation id %q", args[0])
			}
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			r, err := a.reservations.Cancel(ctx, id, reservations.Actor{Admin: true})
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "cancelled #%d (%s %s, mesa %d)\n", r.ID, r.Date.Format(time.DateOnly), r.Time, r.TableNumber)
			return nil
		},
	}
}

func newReservationAvailabilityCmd() *cobra.Command {
	var date, hhmm string

	c := &cobra.Command{
		Use:   "availability",
		Short: "Show the free tables for a date and slot",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			if !a.cfg.Slots.IsSlot(hhmm) {
				return fmt.Errorf("--time must be one of %s", strings.Join(a.cfg.Slots.Starts(), ", "))
			}
			tables, err := a.reservations.TablesAvailable(ctx, d, hhmm)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTABLE\tCAPACITY")
			for _, t := range tables {
				fmt.Fprintf(w, "%d\t%d\t%d\n", t.ID, t.Number, t.Capacity)
			}
			return w.Flush()
		},
	}

	c.Flags().StringVar(&date, "date", "", "YYYY-MM-DD")
	c.Flags().StringVar(&hhmm, "time", "", "slot start, HH:MM")
	_ = c.MarkFlagRequired("date")
	_ = c.MarkFlagRequired("time")
	return c
}
