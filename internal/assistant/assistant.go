// Package assistant answers a guest's free-text message, booking a table
// when the language model reads it as a reservation request.
package assistant

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/intent"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/metrics"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/slots"
)

// Completer is the language model: a prompt in, free text out.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Reservations is the booking side the assistant drives.
type Reservations interface {
	TablesAvailable(ctx context.Context, date time.Time, hhmm string) ([]reservations.Table, error)
	Validate(ctx context.Context, req reservations.Request) (reservations.Decision, error)
	Create(ctx context.Context, b reservations.Booking) (reservations.Reservation, error)
}

type Notifier interface {
	Confirmation(ctx context.Context, reservationID int64) error
}

type Assistant struct {
	completer    Completer
	reservations Reservations
	catalog      menu.Catalog
	notifier     Notifier

	parser   *intent.Parser
	prompt   *template.Template
	msgs     Messages
	schedule slots.Schedule

	restaurant        string
	clock             clock.Clock
	log               *slog.Logger
	metrics           *metrics.Metrics
	completionTimeout time.Duration
	notifyTimeout     time.Duration

	cfg Config
}

type Option func(*Assistant)

func WithConfig(c Config) Option               { return func(a *Assistant) { a.cfg = c } }
func WithSchedule(s slots.Schedule) Option     { return func(a *Assistant) { a.schedule = s } }
func WithRestaurant(name string) Option        { return func(a *Assistant) { a.restaurant = name } }
func WithClock(c clock.Clock) Option           { return func(a *Assistant) { a.clock = c } }
func WithLogger(l *slog.Logger) Option         { return func(a *Assistant) { a.log = l } }
func WithMetrics(m *metrics.Metrics) Option    { return func(a *Assistant) { a.metrics = m } }
func WithNotifier(n Notifier) Option           { return func(a *Assistant) { a.notifier = n } }
func WithCompletionTimeout(d time.Duration) Option {
	return func(a *Assistant) { a.completionTimeout = d }
}
func WithNotifyTimeout(d time.Duration) Option { return func(a *Assistant) { a.notifyTimeout = d } }

func New(c Completer, r Reservations, cat menu.Catalog, opts ...Option) (*Assistant, error) {
	a := &Assistant{
		completer:         c,
		reservations:      r,
		catalog:           cat,
		schedule:          slots.Default(),
		restaurant:        "Sabores y Raíces",
		clock:             clock.NewSystem(nil),
		log:               slog.Default(),
		completionTimeout: 30 * time.Second,
		notifyTimeout:     10 * time.Second,
		cfg:               DefaultConfig(),
	}
	for _, opt := range opts {
		opt(a)
	}

	tmpl, err := template.New("prompt").Option("missingkey=error").Parse(a.cfg.Template)
	if err != nil {
		return nil, fmt.Errorf("assistant prompt template: %w", err)
	}
	a.prompt = tmpl
	a.msgs = a.cfg.Messages
	a.parser = intent.NewParser(a.clock, a.cfg.Parser)
	return a, nil
}

type promptData struct {
	Restaurant string
	Today      string
	Tomorrow   string
	Year       int
	Slots      string
	Message    string
}

func (a *Assistant) render(message string) (string, error) {
	today := clock.Date(a.clock.Now())
	var buf bytes.Buffer
	err := a.prompt.Execute(&buf, promptData{
		Restaurant: a.restaurant,
		Today:      today.Format(time.DateOnly),
		Tomorrow:   today.AddDate(0, 0, 1).Format(time.DateOnly),
		Year:       today.Year(),
		Slots:      strings.Join(a.schedule.Starts(), ", "),
		Message:    message,
	})
	return buf.String(), err
}

// HandleUtterance is the single entry point for the web chat and the bot.
// It always returns a non-empty reply.
func (a *Assistant) HandleUtterance(ctx context.Context, userID int64, text string) (reply string) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Error("Assistant:HandleUtterance:Panic", "user_id", userID, "panic", r)
			reply = a.msgs.Retry
		}
	}()

	prompt, err := a.render(strings.TrimSpace(text))
	if err != nil {
		a.log.Error("Assistant:HandleUtterance:Prompt", "error", err)
		return a.msgs.Unavailable
	}

	cctx, cancel := context.WithTimeout(ctx, a.completionTimeout)
	start := time.Now()
	raw, err := a.completer.Complete(cctx, prompt)
	cancel()
	a.metrics.Completion(time.Since(start), err)
	if err != nil {
		a.log.Error("Assistant:HandleUtterance:CompletionFailed", "user_id", userID, "error", err)
		return a.msgs.Unavailable
	}

	parsed := a.parser.Parse(raw)
	a.metrics.Intent(string(parsed.Kind()))

	switch v := parsed.(type) {
	case intent.General:
		return a.nonEmpty(v.Response)
	case intent.Unparseable:
		a.log.Warn("Assistant:HandleUtterance:Unparseable", "user_id", userID, "raw", v.Raw)
		return a.nonEmpty(v.Raw)
	case intent.ReservationRequest:
		return a.reserve(ctx, userID, v)
	}
	return a.msgs.NoResponse
}

func (a *Assistant) reserve(ctx context.Context, userID int64, req intent.ReservationRequest) string {
	if !req.Ready() {
		return req.Clarification
	}
	if req.Date.Before(clock.Date(a.clock.Now())) {
		return fill(a.msgs.PastDate, "date", req.Date.Format(time.DateOnly))
	}
	if !a.schedule.IsSlot(req.Time) {
		return fill(a.msgs.UnknownSlot, "slots", strings.Join(a.schedule.Starts(), ", "))
	}

	date := req.Date.Format(time.DateOnly)
	logger := a.log.With("user_id", userID, "date", date, "time", req.Time, "party_size", req.PartySize)

	tables, err := a.reservations.TablesAvailable(ctx, req.Date, req.Time)
	if err != nil {
		logger.Error("Assistant:Reserve:Availability", "error", err)
		return a.msgs.Retry
	}
	if len(tables) == 0 {
		if strings.TrimSpace(req.Response) != "" {
			return req.Response
		}
		return fill(a.msgs.NoTables, "date", date, "time", req.Time)
	}
	table := tables[0]

	d, err := a.reservations.Validate(ctx, reservations.Request{
		UserID: userID, TableID: table.ID, Date: req.Date, Time: req.Time, PartySize: req.PartySize,
	})
	if err != nil {
		logger.Error("Assistant:Reserve:Validate", "table_id", table.ID, "error", err)
		return a.msgs.Retry
	}
	if !d.Accepted() {
		return fill(a.msgs.Rejected, "reason", d.Reason.Message())
	}

	lines, unmatched, err := menu.ResolveNames(ctx, a.catalog, req.Dishes, req.Beverages)
	if err != nil {
		logger.Error("Assistant:Reserve:Menu", "error", err)
		return a.msgs.Retry
	}
	if len(unmatched) > 0 {
		logger.Info("Assistant:Reserve:UnmatchedItems", "names", unmatched)
	}

	r, err := a.reservations.Create(ctx, reservations.Booking{
		Request: reservations.Request{
			UserID: userID, TableID: table.ID, Date: req.Date, Time: req.Time, PartySize: req.PartySize,
		},
		Lines: lines,
	})
	if reason, ok := reservations.Rejection(err); ok {
		return fill(a.msgs.Rejected, "reason", reason.Message())
	}
	if err != nil {
		logger.Error("Assistant:Reserve:Create", "table_id", table.ID, "error", err)
		return a.msgs.Retry
	}

	reply := strings.TrimSpace(req.Response)
	if reply == "" {
		reply = fill(a.msgs.Confirmed, "id", strconv.FormatInt(r.ID, 10), "date", date, "time", r.Time)
	}

	if a.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, a.notifyTimeout)
		err := a.notifier.Confirmation(nctx, r.ID)
		cancel()
		if err != nil {
			logger.Error("Assistant:Reserve:Notify", "reservation_id", r.ID, "error", err)
			reply += " " + a.msgs.EmailFailed
		}
	}
	return reply
}

func (a *Assistant) nonEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return a.msgs.NoResponse
	}
	return s
}
