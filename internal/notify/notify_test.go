package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/sabores-reservas/internal/auth"
	"github.com/example/sabores-reservas/internal/notify"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	sent []notify.Message
	fail map[string]error
}

func (s *recordingSender) Send(ctx context.Context, m notify.Message) error {
	if err := s.fail[m.To]; err != nil {
		return err
	}
	s.sent = append(s.sent, m)
	return nil
}

type users map[int64]auth.User

func (u users) Get(ctx context.Context, id int64) (auth.User, error) {
	if x, ok := u[id]; ok {
		return x, nil
	}
	return auth.User{}, auth.ErrNotFound
}

func newMailer(t *testing.T) (*notify.Mailer, *recordingSender, int64) {
	t.Helper()
	store := testutil.NewReservations()
	store.AddTable(reservations.Table{ID: 3, Number: 3, Capacity: 4})
	store.NameItem(reservations.KindDish, 1, "Carne asada", 1800)
	r := store.Seed(reservations.Reservation{
		UserID: 7, TableID: 3, Date: time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC), Time: "20:00", PartySize: 2,
	})
	require.NoError(t, store.InsertOrderLines(context.Background(), r.ID, []reservations.OrderLine{
		{Kind: reservations.KindDish, ItemID: 1, Quantity: 2},
	}))

	sender := &recordingSender{}
	m := &notify.Mailer{
		Sender:       sender,
		Reservations: store,
		Users:        users{7: {ID: 7, Email: "ana@example.com", Name: "Ana"}},
		Restaurant:   notify.Restaurant{Name: "Sabores y Raíces", Email: "info@example.com"},
		BaseURL:      "http://localhost:8080",
		Log:          testutil.Logger(),
	}
	return m, sender, r.ID
}

func TestSummary(t *testing.T) {
	assert.Equal(t, []string{"No se han agregado pedidos."}, notify.Summary(nil))
	assert.Equal(t, []string{"2 x Carne asada - $36.00", "1 x Vino tinto - $6.00"}, notify.Summary([]reservations.SummaryLine{
		{Name: "Carne asada", Quantity: 2, UnitCents: 1800},
		{Name: "Vino tinto", Quantity: 1, UnitCents: 600},
	}))
}

func TestConfirmationSendsUserAndAdmin(t *testing.T) {
	m, sender, id := newMailer(t)
	require.NoError(t, m.Confirmation(context.Background(), id))
	require.Len(t, sender.sent, 2)

	user, admin := sender.sent[0], sender.sent[1]
	assert.Equal(t, "ana@example.com", user.To)
	assert.Contains(t, user.Subject, "Confirmación de Reserva #1")
	assert.Contains(t, user.HTML, "2 x Carne asada - $36.00")
	assert.Contains(t, user.HTML, "http://localhost:8080/reservas/1/cancelar")
	assert.Contains(t, user.HTML, "04/10/2025")

	assert.Equal(t, "info@example.com", admin.To)
	assert.Contains(t, admin.Subject, "Nueva Reserva #1")
	assert.Contains(t, admin.HTML, "ana@example.com")
}

func TestConfirmationPartialFailure(t *testing.T) {
	m, sender, id := newMailer(t)
	sender.fail = map[string]error{"ana@example.com": errors.New("mailbox full")}
	err := m.Confirmation(context.Background(), id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mailbox full")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "info@example.com", sender.sent[0].To)
}

func TestReminder(t *testing.T) {
	m, sender, id := newMailer(t)
	require.NoError(t, m.Deliver(context.Background(), notify.KindReminder, id))
	require.Len(t, sender.sent, 1)
	assert.True(t, strings.HasPrefix(sender.sent[0].Subject, "Recordatorio"))
	assert.Contains(t, sender.sent[0].HTML, "20:00")
}

func TestUnknownReservation(t *testing.T) {
	m, sender, _ := newMailer(t)
	assert.ErrorIs(t, m.Confirmation(context.Background(), 99), reservations.ErrNotFound)
	assert.Empty(t, sender.sent)
	assert.Error(t, m.Deliver(context.Background(), "sms", 1))
}

func TestEncode(t *testing.T) {
	raw := string(notify.Encode("a@example.com", notify.Message{To: "b@example.com", Subject: "Confirmación", HTML: "<p>hola</p>"},
		time.Date(2025, 10, 4, 9, 0, 0, 0, time.UTC)))
	assert.Contains(t, raw, "To: b@example.com\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?Confirmaci=C3=B3n?=\r\n")
	assert.Contains(t, raw, "Content-Type: text/html; charset=UTF-8\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\n<p>hola</p>"))
}

type mockDeliverer struct {
	mock.Mock
}

func (m *mockDeliverer) Deliver(ctx context.Context, kind notify.Kind, id int64) error {
	return m.Called(kind, id).Error(0)
}

func TestWorkerHandle(t *testing.T) {
	d := new(mockDeliverer)
	w := &notify.Worker{Deliverer: d, Log: testutil.Logger()}

	body, err := json.Marshal(notify.Job{ID: "x", Kind: notify.KindConfirmation, ReservationID: 4})
	require.NoError(t, err)
	d.On("Deliver", notify.KindConfirmation, int64(4)).Return(nil).Once()
	require.NoError(t, w.Handle(context.Background(), body))

	d.On("Deliver", notify.KindReminder, int64(5)).Return(errors.New("smtp down")).Once()
	body, _ = json.Marshal(notify.Job{Kind: notify.KindReminder, ReservationID: 5})
	err = w.Handle(context.Background(), body)
	require.Error(t, err)
	assert.NotErrorIs(t, err, notify.ErrDLQ)

	assert.ErrorIs(t, w.Handle(context.Background(), []byte("{not json")), notify.ErrDLQ)
	assert.ErrorIs(t, w.Handle(context.Background(), []byte(`{"kind":"confirmation"}`)), notify.ErrDLQ)
	assert.ErrorIs(t, w.Handle(context.Background(), []byte(`{"kind":"sms","reservation_id":1}`)), notify.ErrDLQ)
	d.AssertExpectations(t)
}
