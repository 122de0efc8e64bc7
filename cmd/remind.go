package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/scheduler"
)

func newRemindCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remind",
		Short: "Send tomorrow's reminders now, once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.usePublisher(); err != nil {
				return err
			}

			s := &scheduler.Scheduler{
				Reservations: a.reservations,
				Notifier:     a.notifier,
				Clock:        a.clock,
				Timeout:      a.cfg.NotifyTimeout,
				Log:          a.log,
			}
			fmt.Fprintf(os.Stdout, "sent %d reminders\n", s.Sweep(ctx))
			return nil
		},
	}
}
