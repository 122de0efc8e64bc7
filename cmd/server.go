package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/sabores-reservas/internal/metrics"
	"github.com/example/sabores-reservas/internal/scheduler"
	"github.com/example/sabores-reservas/internal/telegram"
	"github.com/example/sabores-reservas/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp, reminders bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the web UI, chat assistant, reminder scheduler and Telegram bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			m := metrics.New()
			a, err := loadApp(ctx, m, migrateUp)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.cfg.RequireCookieKeys(); err != nil {
				return err
			}
			if err := a.usePublisher(); err != nil {
				return err
			}
			asst, err := a.assistant()
			if err != nil {
				return err
			}

			g, ctx := errgroup.WithContext(ctx)

			if reminders {
				s := &scheduler.Scheduler{
					Reservations: a.reservations,
					Notifier:     a.notifier,
					Clock:        a.clock,
					Hour:         a.cfg.ReminderHour,
					Interval:     a.cfg.ReminderPoll,
					Timeout:      a.cfg.NotifyTimeout,
					Log:          a.log,
				}
				g.Go(func() error { return s.Run(ctx) })
			}

			if a.cfg.TelegramToken != "" {
				g.Go(func() error {
					err := telegram.Start(ctx, a.cfg.TelegramToken, a.users, a.reservations, asst, a.cfg.Restaurant.Name, a.log)
					if err != nil && !errors.Is(err, context.Canceled) {
						// the web app keeps serving without the bot
						a.log.Error("Telegram:Start:Failed", "error", err)
					}
					return nil
				})
			} else {
				a.log.Info("Telegram:Start:Disabled")
			}

			ws := &web.Server{
				Sessions:      a.users,
				Users:         a.users,
				Reservations:  a.reservations,
				Menu:          a.menu,
				Assistant:     asst,
				Notifier:      a.notifier,
				Slots:         a.cfg.Slots,
				Clock:         a.clock,
				Metrics:       m,
				Restaurant:    a.cfg.Restaurant.Name,
				Log:           a.log,
				NotifyTimeout: a.cfg.NotifyTimeout,
			}
			g.Go(func() error { return web.Start(ctx, a.cfg.ListenAddr, ws.Routes(), a.log) })

			err = g.Wait()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")
	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	cmd.Flags().BoolVar(&reminders, "reminders", true, "run the day-before reminder scheduler in-process")
	return cmd
}
