package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/sabores-reservas/internal/notify"
)

func newPingCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "ping [db|llm|amqp]",
		Short:     "Check that a backing service answers",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"db", "llm", "amqp"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			a, err := loadApp(ctx, nil, false)
			if err != nil {
				return err
			}
			defer a.Close()

			switch args[0] {
			case "db":
				err = a.db.Ping(ctx)
			case "llm":
				c, cerr := a.llmClient()
				if cerr != nil {
					return cerr
				}
				err = c.Ping(ctx)
			case "amqp":
				if a.cfg.AMQPURL == "" {
					return errors.New("AMQP_URL is not set")
				}
				p, perr := notify.DialPublisher(a.cfg.AMQPURL, a.log)
				if perr != nil {
					return perr
				}
				defer p.Close()
				err = p.Ping()
			}
			if err != nil {
				return fmt.Errorf("%s: %w", args[0], err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", args[0])
			return nil
		},
	}
}
