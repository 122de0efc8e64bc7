package assistant_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/example/sabores-reservas/internal/assistant"
	"github.com/example/sabores-reservas/internal/clock"
	"github.com/example/sabores-reservas/internal/menu"
	"github.com/example/sabores-reservas/internal/reservations"
	"github.com/example/sabores-reservas/internal/slots"
	"github.com/example/sabores-reservas/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	args := m.Called(ctx, prompt)
	return args.String(0), args.Error(1)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) Confirmation(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

var now = time.Date(2025, time.October, 3, 17, 0, 0, 0, time.UTC)

type fixture struct {
	llm      *mockCompleter
	notifier *mockNotifier
	store    *testutil.Reservations
	menu     *testutil.Menu
	bot      *assistant.Assistant
}

func newFixture(t *testing.T, opts ...assistant.Option) *fixture {
	t.Helper()
	f := &fixture{
		llm:      new(mockCompleter),
		notifier: new(mockNotifier),
		store:    testutil.NewReservations(),
		menu: testutil.NewMenu(
			menu.Item{Kind: reservations.KindDish, ID: 1, Name: "Carne asada", PriceCents: 1800, Available: true},
			menu.Item{Kind: reservations.KindBeverage, ID: 1, Name: "Vino tinto", PriceCents: 600, Available: true},
		),
	}
	f.store.AddTable(reservations.Table{ID: 3, Capacity: 4})
	f.store.AddTable(reservations.Table{ID: 5, Capacity: 8})

	c := clock.NewFixed(now)
	svc := reservations.NewService(f.store, reservations.WithClock(c), reservations.WithLogger(testutil.Logger()))
	schedule, err := slots.Parse("12:00=Almuerzo,20:00=Cena,21:00=Cena")
	require.NoError(t, err)

	base := []assistant.Option{
		assistant.WithClock(c),
		assistant.WithLogger(testutil.Logger()),
		assistant.WithSchedule(schedule),
		assistant.WithNotifier(f.notifier),
	}
	f.bot, err = assistant.New(f.llm, svc, f.menu, append(base, opts...)...)
	require.NoError(t, err)
	return f
}

func (f *fixture) replies(raw string) {
	f.llm.On("Complete", mock.Anything, mock.Anything).Return(raw, nil).Once()
}

func TestGeneralReply(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"general","response":"Abrimos a las 12:00."}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "¿A qué hora abren?")
	assert.Equal(t, "Abrimos a las 12:00.", got)
	f.llm.AssertExpectations(t)
	assert.Empty(t, f.store.All())
}

func TestPromptCarriesMessageAndDates(t *testing.T) {
	f := newFixture(t)
	f.llm.On("Complete", mock.Anything, mock.MatchedBy(func(p string) bool {
		return strings.Contains(p, "MENSAJE A ANALIZAR: hola") &&
			strings.Contains(p, "Hoy es 2025-10-03") &&
			strings.Contains(p, `"mañana" es 2025-10-04`) &&
			strings.Contains(p, "12:00, 20:00, 21:00")
	})).Return(`{"intent":"general","response":"hola"}`, nil).Once()

	assert.Equal(t, "hola", f.bot.HandleUtterance(context.Background(), 7, "  hola "))
	f.llm.AssertExpectations(t)
}

func TestUnparseableReturnsRawText(t *testing.T) {
	f := newFixture(t)
	f.replies("Claro, ¿para cuántas personas?")

	got := f.bot.HandleUtterance(context.Background(), 7, "quiero reservar")
	assert.Equal(t, "Claro, ¿para cuántas personas?", got)
}

func TestEmptyCompletion(t *testing.T) {
	f := newFixture(t)
	f.replies("   ")

	got := f.bot.HandleUtterance(context.Background(), 7, "hola")
	assert.Equal(t, assistant.DefaultConfig().Messages.NoResponse, got)
}

func TestCompletionFailure(t *testing.T) {
	f := newFixture(t)
	f.llm.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("connection refused")).Once()

	got := f.bot.HandleUtterance(context.Background(), 7, "hola")
	assert.Equal(t, assistant.DefaultConfig().Messages.Unavailable, got)
}

func TestCompletionDeadline(t *testing.T) {
	f := newFixture(t, assistant.WithCompletionTimeout(50*time.Millisecond))
	f.llm.On("Complete", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Run(func(args mock.Arguments) {
		ctx := args.Get(0).(context.Context)
		_, ok := ctx.Deadline()
		assert.True(t, ok, "completion must run under a deadline")
	}).Once()

	got := f.bot.HandleUtterance(context.Background(), 7, "hola")
	assert.Equal(t, assistant.DefaultConfig().Messages.Unavailable, got)
	f.llm.AssertExpectations(t)
}

func TestReservationCreated(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00","partySize":2,
		"dishes":["Carne asada","Carne asada","Paella"],"beverages":["Vino tinto"],"response":""}`)
	f.notifier.On("Confirmation", mock.Anything, int64(1)).Return(nil).Once()

	got := f.bot.HandleUtterance(context.Background(), 7, "mesa para 2 mañana a las 20:00 con carne asada")
	assert.Equal(t, "Reserva #1 confirmada para el 2025-10-04 a las 20:00.", got)

	all := f.store.All()
	require.Len(t, all, 1)
	assert.Equal(t, int64(3), all[0].TableID, "lowest id table first")
	assert.Equal(t, int64(7), all[0].UserID)
	assert.Equal(t, []reservations.OrderLine{
		{ID: 1, ReservationID: 1, Kind: reservations.KindDish, ItemID: 1, Quantity: 2},
		{ID: 2, ReservationID: 1, Kind: reservations.KindBeverage, ItemID: 1, Quantity: 1},
	}, f.store.Lines(1))
	f.notifier.AssertExpectations(t)
}

func TestReservationUsesModelConfirmation(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"reserva","fecha":"4 de octubre","hora":"8 : 00 pm","num_comensales":3,"response":"¡Listo! Te esperamos."}`)

	// "8 : 00 pm" normalizes to 08:00, which is not a service slot.
	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, "Solo reservamos en estos horarios: 12:00, 20:00, 21:00. ¿Cuál prefieres?", got)

	f.replies(`{"intent":"reserva","fecha":"4 de octubre","hora":"21:00","num_comensales":3,"response":"¡Listo! Te esperamos."}`)
	f.notifier.On("Confirmation", mock.Anything, mock.Anything).Return(nil).Once()
	got = f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, "¡Listo! Te esperamos.", got)
	require.Len(t, f.store.All(), 1)
	assert.Equal(t, 3, f.store.All()[0].PartySize)
}

func TestReservationClarification(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"por la noche","response":"Reserva confirmada"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva esta noche")
	assert.Contains(t, got, `No pude extraer la hora de "por la noche"`)
	assert.Empty(t, f.store.All())
	f.notifier.AssertNotCalled(t, "Confirmation", mock.Anything, mock.Anything)
}

func TestPastDateIsNotBooked(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"reservation","date":"2020-01-01","time":"20:00"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva el 1 de enero de 2020")
	assert.Equal(t, "El 2020-01-01 ya pasó. ¿Para qué día quieres la reserva?", got)
	assert.Empty(t, f.store.All())
	f.notifier.AssertNotCalled(t, "Confirmation", mock.Anything, mock.Anything)
}

func TestTodayIsBookable(t *testing.T) {
	f := newFixture(t)
	f.notifier.On("Confirmation", mock.Anything, mock.Anything).Return(nil)
	f.replies(`{"intent":"reservation","date":"hoy","time":"20:00"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva hoy")
	assert.Contains(t, got, "confirmada")
	require.Len(t, f.store.All(), 1)
	assert.Equal(t, clock.Date(now), f.store.All()[0].Date)
}

func TestNoTablesAvailable(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(reservations.Reservation{UserID: 1, TableID: 3, Date: day("2025-10-04"), Time: "20:00", PartySize: 2})
	f.store.Seed(reservations.Reservation{UserID: 2, TableID: 5, Date: day("2025-10-04"), Time: "20:00", PartySize: 2})

	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00"}`)
	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, "No hay mesas disponibles para el 2025-10-04 a las 20:00.", got)

	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00","response":"Lo sentimos, estamos completos."}`)
	got = f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, "Lo sentimos, estamos completos.", got)
}

func TestRejectedFirstTableIsNotRetried(t *testing.T) {
	f := newFixture(t)
	// Table 3 seats four; table 5 would fit six but only the first is tried.
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00","partySize":6}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "mesa para 6")
	assert.Equal(t, "No se pudo reservar: La mesa no tiene capacidad suficiente.", got)
	assert.Empty(t, f.store.All())
}

func TestDuplicateUserSlot(t *testing.T) {
	f := newFixture(t)
	f.store.Seed(reservations.Reservation{UserID: 7, TableID: 5, Date: day("2025-10-04"), Time: "20:00", PartySize: 2})
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "otra mesa")
	assert.Equal(t, "No se pudo reservar: Ya tienes una reserva en ese horario.", got)
}

func TestStorageFailureIsRetryMessage(t *testing.T) {
	f := newFixture(t)
	f.store.FailInsert = errors.New("connection reset by peer")
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, assistant.DefaultConfig().Messages.Retry, got)
	f.notifier.AssertNotCalled(t, "Confirmation", mock.Anything, mock.Anything)
}

func TestRaceLostAtWriteIsRejection(t *testing.T) {
	f := newFixture(t)
	f.store.FailInsert = reservations.ErrTableSlotTaken
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00"}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, "No se pudo reservar: La mesa no está disponible en ese horario.", got)
}

func TestMenuFailureIsRetryMessage(t *testing.T) {
	f := newFixture(t)
	f.menu.Fail = errors.New("menu store down")
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"20:00","dishes":["Carne asada"]}`)

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	assert.Equal(t, assistant.DefaultConfig().Messages.Retry, got)
	assert.Empty(t, f.store.All())
}

func TestNotifierFailureKeepsReservation(t *testing.T) {
	f := newFixture(t)
	f.replies(`{"intent":"reservation","date":"2025-10-04","time":"12:00"}`)
	f.notifier.On("Confirmation", mock.Anything, int64(1)).Return(errors.New("smtp timeout")).Once()

	got := f.bot.HandleUtterance(context.Background(), 7, "reserva")
	msgs := assistant.DefaultConfig().Messages
	assert.Equal(t, "Reserva #1 confirmada para el 2025-10-04 a las 12:00. "+msgs.EmailFailed, got)
	assert.Len(t, f.store.All(), 1)
}

func TestCustomConfig(t *testing.T) {
	cfg := assistant.DefaultConfig()
	cfg.Messages.Unavailable = "down"
	f := newFixture(t, assistant.WithConfig(cfg))
	f.llm.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("x")).Once()

	assert.Equal(t, "down", f.bot.HandleUtterance(context.Background(), 1, "hola"))
}

func TestBadTemplate(t *testing.T) {
	cfg := assistant.DefaultConfig()
	cfg.Template = "{{.Nope"
	_, err := assistant.New(new(mockCompleter), nil, nil, assistant.WithConfig(cfg))
	assert.Error(t, err)
}

func day(s string) time.Time {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return d
}
