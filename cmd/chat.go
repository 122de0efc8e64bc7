package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/assistant"
	"github.com/example/sabores-reservas/internal/chatui"
)

func newChatCmd() *cobra.Command {
	var email string
	var plain bool

	c := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the reservation assistant from the terminal as a guest",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := loadApp(ctx, nil, true)
			if err != nil {
				return err
			}
			defer a.Close()

			u, err := a.users.ByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("%s: %w", email, err)
			}
			if err := a.usePublisher(); err != nil {
				return err
			}
			asst, err := a.assistant()
			if err != nil {
				return err
			}

			if !plain {
				return chatui.Run(ctx, asst, u.ID, u.Name, a.cfg.Restaurant.Name)
			}

			fmt.Fprintf(os.Stdout, "Hola %s, escribe tu mensaje (Ctrl-D para salir).\n", u.Name)
			in := bufio.NewScanner(os.Stdin)
			for {
				fmt.Fprint(os.Stdout, "> ")
				if !in.Scan() {
					fmt.Fprintln(os.Stdout)
					return in.Err()
				}
				msg := assistant.Sanitize(in.Text())
				if msg == "" {
					continue
				}
				fmt.Fprintln(os.Stdout, asst.HandleUtterance(ctx, u.ID, msg))
				if ctx.Err() != nil {
					return nil
				}
			}
		},
	}

	c.Flags().StringVar(&email, "email", "", "guest account to act as")
	c.Flags().BoolVar(&plain, "plain", false, "line mode without the terminal UI, for pipes and scripts")
	_ = c.MarkFlagRequired("email")
	return c
}
