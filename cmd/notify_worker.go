package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/notify"
)

func newNotifyWorkerCmd() *cobra.Command {
	var prefetch int

	c := &cobra.Command{
		Use:   "notify-worker",
		Short: "Consume queued notification jobs and send the emails",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx, nil, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is required")
			}

			w := &notify.Worker{
				Deliverer: a.mailer,
				Prefetch:  prefetch,
				Timeout:   a.cfg.NotifyTimeout,
				Log:       a.log,
			}
			err = w.Run(ctx, a.cfg.AMQPURL)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	c.Flags().IntVar(&prefetch, "prefetch", 10, "unacknowledged jobs in flight")
	return c
}
