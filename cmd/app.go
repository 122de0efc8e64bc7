package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/example/sabores-reservas/internal/assistant"
	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/config"
	"github.com/example/sabores-reservas/internal/db"
	"github.com/example/sabores-reservas/internal/llm"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/metrics"
	"github.com/example/sabores-reservas/internal/migrate"
	"github.com/example/sabores-reservas/internal/notify"
	"github.com/example/sabores-reservas/internal/reservations"
)

// notifier is what the booking paths and the reminder sweep send through:
// a Mailer, or a Publisher when AMQP_URL is set.
type notifier interface {
	Confirmation(ctx context.Context, id int64) error
	Reminder(ctx context.Context, id int64) error
}

// app is the wired set of stores and services every command draws from.
type app struct {
	cfg     config.Config
	log     *slog.Logger
	metrics *metrics.Metrics
	clock   clock.Clock

	db           *db.DB
	users        *auth.Store
	tables       *reservations.Repo
	menu         *menu.Repo
	reservations *reservations.Service
	mailer       *notify.Mailer
	notifier     notifier

	closers []func()
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// loadApp reads the environment and connects to Postgres, applying
// migrations when migrateUp is set. A nil m leaves metrics off.
func loadApp(ctx context.Context, m *metrics.Metrics, migrateUp bool) (*app, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, err
	}
	return newApp(ctx, cfg, m, migrateUp)
}

func newApp(ctx context.Context, cfg config.Config, m *metrics.Metrics, migrateUp bool) (*app, error) {
	a := &app{cfg: cfg, log: newLogger(cfg.LogLevel), metrics: m, clock: clock.NewSystem(cfg.Location)}
	slog.SetDefault(a.log)

	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, d.Close)
	if err := d.Ping(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if migrateUp {
		if err := migrate.Up(ctx, d); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.db = d

	a.users = auth.NewStore(d, cfg.CookieHashKey, cfg.CookieBlockKey)
	a.tables = reservations.NewRepo(d)
	a.menu = menu.NewRepo(d)
	a.reservations = reservations.NewService(a.tables,
		reservations.WithClock(a.clock),
		reservations.WithLogger(a.log),
		reservations.WithMetrics(m),
	)

	var sender notify.Sender = notify.LogSender{Log: a.log}
	if cfg.MailEnabled() {
		sender = notify.NewSMTPSender(notify.SMTPConfig{
			Host: cfg.SMTPHost, Port: cfg.SMTPPort,
			User: cfg.SMTPUser, Password: cfg.SMTPPassword,
			From: cfg.MailFrom,
		})
	} else {
		a.log.Warn("Notify:Setup:NoSMTP", "msg", "SMTP_HOST unset, emails are only logged")
	}
	a.mailer = &notify.Mailer{
		Sender:       sender,
		Reservations: a.reservations,
		Users:        a.users,
		Restaurant: notify.Restaurant{
			Name: cfg.Restaurant.Name, Address: cfg.Restaurant.Address,
			Phone: cfg.Restaurant.Phone, Email: cfg.Restaurant.Email,
		},
		BaseURL: cfg.BaseURL,
		Log:     a.log,
		Metrics: m,
	}
	a.notifier = a.mailer
	return a, nil
}

// usePublisher routes notifications through RabbitMQ when AMQP_URL is set.
func (a *app) usePublisher() error {
	if a.cfg.AMQPURL == "" {
		return nil
	}
	p, err := notify.DialPublisher(a.cfg.AMQPURL, a.log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, p.Close)
	a.notifier = p
	a.log.Info("Notify:Setup:Queue", "exchange", notify.Exchange)
	return nil
}

func (a *app) llmClient() (*llm.Client, error) {
	opts := llm.DefaultOptions()
	opts.Provider = a.cfg.LLMProvider
	opts.BaseURL = a.cfg.LLMBaseURL
	opts.Model = a.cfg.LLMModel
	opts.APIKey = a.cfg.OpenAIAPIKey
	opts.Timeout = a.cfg.LLMTimeout
	return llm.New(opts)
}

func (a *app) assistant() (*assistant.Assistant, error) {
	client, err := a.llmClient()
	if err != nil {
		return nil, err
	}

	acfg, err := assistant.LoadConfig(a.cfg.AssistantConfig)
	if err != nil {
		return nil, err
	}
	return assistant.New(client, a.reservations, a.menu,
		assistant.WithConfig(acfg),
		assistant.WithSchedule(a.cfg.Slots),
		assistant.WithRestaurant(a.cfg.Restaurant.Name),
		assistant.WithClock(a.clock),
		assistant.WithLogger(a.log),
		assistant.WithMetrics(a.metrics),
		assistant.WithNotifier(a.notifier),
		assistant.WithCompletionTimeout(a.cfg.LLMTimeout),
		assistant.WithNotifyTimeout(a.cfg.NotifyTimeout),
	)
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
