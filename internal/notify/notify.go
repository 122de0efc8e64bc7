// Package notify sends the reservation emails: the guest's confirmation,
// the restaurant's copy and the day-before reminder. Mail goes out directly
// through a Sender, or through RabbitMQ to a worker that owns the Sender.
package notify

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"strconv"
	"time"

	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/metrics"
	"github.com/example/sabores-reservas/internal/reservations"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templates = template.Must(template.New("").Funcs(template.FuncMap{
	"date":  func(t time.Time) string { return t.Format("02/01/2006") },
	"money": menu.FormatCents,
}).ParseFS(templatesFS, "templates/*.html"))

type Kind string

const (
	KindConfirmation Kind = "confirmation"
	KindReminder     Kind = "reminder"
)

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, m Message) error
}

type Reservations interface {
	Get(ctx context.Context, id int64) (reservations.Reservation, error)
	OrderSummary(ctx context.Context, id int64) ([]reservations.SummaryLine, error)
}

type Users interface {
	Get(ctx context.Context, id int64) (auth.User, error)
}

type Restaurant struct {
	Name    string
	Address string
	Phone   string
	Email   string
}

// Mailer renders and sends the emails for a reservation id.
type Mailer struct {
	Sender       Sender
	Reservations Reservations
	Users        Users
	Restaurant   Restaurant
	// BaseURL prefixes the cancel link in the guest's confirmation.
	BaseURL string

	Log     *slog.Logger
	Metrics *metrics.Metrics
}

type mailData struct {
	Restaurant  Restaurant
	Reservation reservations.Reservation
	User        auth.User
	Summary     []string
	CancelURL   string
}

func (m *Mailer) logger() *slog.Logger {
	if m.Log == nil {
		return slog.Default()
	}
	return m.Log
}

func (m *Mailer) load(ctx context.Context, id int64) (mailData, error) {
	r, err := m.Reservations.Get(ctx, id)
	if err != nil {
		return mailData{}, fmt.Errorf("reservation %d: %w", id, err)
	}
	u, err := m.Users.Get(ctx, r.UserID)
	if err != nil {
		return mailData{}, fmt.Errorf("user %d: %w", r.UserID, err)
	}
	return mailData{
		Restaurant:  m.Restaurant,
		Reservation: r,
		User:        u,
		CancelURL:   m.BaseURL + "/reservas/" + strconv.FormatInt(r.ID, 10) + "/cancelar",
	}, nil
}

// Summary renders order lines as "2 x Carne asada - $36.00".
func Summary(lines []reservations.SummaryLine) []string {
	if len(lines) == 0 {
		return []string{"No se han agregado pedidos."}
	}
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		out = append(out, fmt.Sprintf("%d x %s - %s", l.Quantity, l.Name, menu.FormatCents(l.TotalCents())))
	}
	return out
}

func render(name string, data mailData) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

// ConfirmationMessages builds the guest's confirmation and the admin copy.
func (m *Mailer) ConfirmationMessages(ctx context.Context, id int64) ([]Message, error) {
	data, err := m.load(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := m.Reservations.OrderSummary(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("order summary %d: %w", id, err)
	}
	data.Summary = Summary(lines)

	user, err := render("confirmation_user.html", data)
	if err != nil {
		return nil, err
	}
	admin, err := render("notification_admin.html", data)
	if err != nil {
		return nil, err
	}
	return []Message{
		{To: data.User.Email, Subject: fmt.Sprintf("Confirmación de Reserva #%d - %s", id, m.Restaurant.Name), HTML: user},
		{To: m.Restaurant.Email, Subject: fmt.Sprintf("Nueva Reserva #%d - %s", id, m.Restaurant.Name), HTML: admin},
	}, nil
}

func (m *Mailer) ReminderMessage(ctx context.Context, id int64) (Message, error) {
	data, err := m.load(ctx, id)
	if err != nil {
		return Message{}, err
	}
	body, err := render("reminder.html", data)
	if err != nil {
		return Message{}, err
	}
	return Message{To: data.User.Email, Subject: "Recordatorio: Tu reserva en " + m.Restaurant.Name, HTML: body}, nil
}

// Confirmation sends both confirmation emails. Each is attempted even if
// the other fails.
func (m *Mailer) Confirmation(ctx context.Context, id int64) error {
	msgs, err := m.ConfirmationMessages(ctx, id)
	if err != nil {
		m.Metrics.Notification(string(KindConfirmation), err)
		return err
	}
	var errs []error
	for _, msg := range msgs {
		if msg.To == "" {
			continue
		}
		if err := m.Sender.Send(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", msg.To, err))
		}
	}
	err = errors.Join(errs...)
	m.Metrics.Notification(string(KindConfirmation), err)
	if err == nil {
		m.logger().Info("Notify:Confirmation:Sent", "reservation_id", id)
	}
	return err
}

func (m *Mailer) Reminder(ctx context.Context, id int64) error {
	msg, err := m.ReminderMessage(ctx, id)
	if err == nil {
		err = m.Sender.Send(ctx, msg)
	}
	m.Metrics.Notification(string(KindReminder), err)
	if err == nil {
		m.logger().Info("Notify:Reminder:Sent", "reservation_id", id)
	}
	return err
}

// Deliver dispatches on kind.
func (m *Mailer) Deliver(ctx context.Context, kind Kind, id int64) error {
	switch kind {
	case KindConfirmation:
		return m.Confirmation(ctx, id)
	case KindReminder:
		return m.Reminder(ctx, id)
	}
	return fmt.Errorf("unknown notification kind %q", kind)
}
